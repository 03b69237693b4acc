package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"care-planner/internal/model"
)

// CaregiverRepository manages the caregivers attached to care plans.
type CaregiverRepository struct {
	db *gorm.DB
}

func NewCaregiverRepository(db *gorm.DB) *CaregiverRepository {
	return &CaregiverRepository{db: db}
}

func (r *CaregiverRepository) Create(ctx context.Context, caregiver *model.Caregiver) error {
	if caregiver.Notes == nil {
		caregiver.Notes = []model.CaregiverNote{}
	}
	if caregiver.Status == "" {
		caregiver.Status = model.CaregiverInvited
	}
	if err := r.db.WithContext(ctx).Create(caregiver).Error; err != nil {
		return fmt.Errorf("create caregiver: %w", err)
	}
	return nil
}

func (r *CaregiverRepository) FindByInviteCode(ctx context.Context, code string) (*model.Caregiver, error) {
	var caregiver model.Caregiver
	if err := r.db.WithContext(ctx).Where("invite_code = ?", code).First(&caregiver).Error; err != nil {
		return nil, notFound(err)
	}
	return &caregiver, nil
}

func (r *CaregiverRepository) FindByPlanAndUser(ctx context.Context, planID string, userID uint) (*model.Caregiver, error) {
	var caregiver model.Caregiver
	if err := r.db.WithContext(ctx).Where("care_plan_id = ? AND user_id = ?", planID, userID).First(&caregiver).Error; err != nil {
		return nil, notFound(err)
	}
	return &caregiver, nil
}

// Accept binds the caregiver row to userID.
func (r *CaregiverRepository) Accept(ctx context.Context, caregiver *model.Caregiver, userID uint) error {
	caregiver.UserID = &userID
	caregiver.Status = model.CaregiverAccepted
	if err := r.db.WithContext(ctx).Model(caregiver).Select("user_id", "status", "updated_at").Updates(caregiver).Error; err != nil {
		return fmt.Errorf("accept invite: %w", err)
	}
	return nil
}

// UpdateNotes replaces the caregiver's notes list.
func (r *CaregiverRepository) UpdateNotes(ctx context.Context, caregiver *model.Caregiver, notes []model.CaregiverNote) error {
	caregiver.Notes = notes
	if err := r.db.WithContext(ctx).Model(caregiver).Select("notes", "updated_at").Updates(caregiver).Error; err != nil {
		return fmt.Errorf("update notes: %w", err)
	}
	return nil
}

func (r *CaregiverRepository) ListByCarePlan(ctx context.Context, planID string) ([]model.Caregiver, error) {
	var caregivers []model.Caregiver
	if err := r.db.WithContext(ctx).Where("care_plan_id = ?", planID).Order("id ASC").Find(&caregivers).Error; err != nil {
		return nil, err
	}
	return caregivers, nil
}

// ListAcceptedForDate returns accepted caregivers of every plan on date.
func (r *CaregiverRepository) ListAcceptedForDate(ctx context.Context, date string) ([]model.Caregiver, error) {
	db := r.db.WithContext(ctx)
	plans := db.Model(&model.CarePlan{}).Select("id").Where("date = ?", date)

	var caregivers []model.Caregiver
	if err := db.Where("status = ? AND care_plan_id IN (?)", model.CaregiverAccepted, plans).
		Order("care_plan_id ASC, id ASC").
		Find(&caregivers).Error; err != nil {
		return nil, err
	}
	return caregivers, nil
}
