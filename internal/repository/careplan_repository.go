package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"care-planner/internal/model"
)

// CarePlanRepository handles CRUD for care plans. Task and question lists are
// always written whole.
type CarePlanRepository struct {
	db *gorm.DB
}

func NewCarePlanRepository(db *gorm.DB) *CarePlanRepository {
	return &CarePlanRepository{db: db}
}

// Create stores a new plan, assigning an ID when it has none.
func (r *CarePlanRepository) Create(ctx context.Context, plan *model.CarePlan) error {
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	if plan.Tasks == nil {
		plan.Tasks = []model.Task{}
	}
	if plan.Questions == nil {
		plan.Questions = []model.Question{}
	}
	if err := r.db.WithContext(ctx).Omit("Caregivers").Create(plan).Error; err != nil {
		return fmt.Errorf("create care plan: %w", err)
	}
	return nil
}

// FindByID loads a plan with its caregivers.
func (r *CarePlanRepository) FindByID(ctx context.Context, id string) (*model.CarePlan, error) {
	var plan model.CarePlan
	if err := r.db.WithContext(ctx).Preload("Caregivers").Where("id = ?", id).First(&plan).Error; err != nil {
		return nil, notFound(err)
	}
	return &plan, nil
}

func (r *CarePlanRepository) ListByGuardian(ctx context.Context, guardianID uint) ([]model.CarePlan, error) {
	var plans []model.CarePlan
	if err := r.db.WithContext(ctx).Preload("Caregivers").Where("guardian_id = ?", guardianID).
		Order("date DESC, created_at DESC").
		Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

// ListByCaregiverUser returns the plans userID has accepted an invite to.
func (r *CarePlanRepository) ListByCaregiverUser(ctx context.Context, userID uint) ([]model.CarePlan, error) {
	db := r.db.WithContext(ctx)
	accepted := db.Model(&model.Caregiver{}).Select("care_plan_id").
		Where("user_id = ? AND status = ?", userID, model.CaregiverAccepted)

	var plans []model.CarePlan
	if err := db.Preload("Caregivers").Where("id IN (?)", accepted).
		Order("date DESC, created_at DESC").
		Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

// ListByDate returns all plans for a calendar day ("2006-01-02").
func (r *CarePlanRepository) ListByDate(ctx context.Context, date string) ([]model.CarePlan, error) {
	var plans []model.CarePlan
	if err := r.db.WithContext(ctx).Preload("Caregivers").Where("date = ?", date).
		Order("created_at ASC").
		Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

// UpdateCarePlan replaces the task list, the question list, or both. A nil
// list is left as stored. The returned plan is the stored record after the
// write.
func (r *CarePlanRepository) UpdateCarePlan(ctx context.Context, id string, tasks []model.Task, questions []model.Question) (*model.CarePlan, error) {
	columns := []string{"updated_at"}
	values := model.CarePlan{}
	if tasks != nil {
		columns = append(columns, "tasks")
		values.Tasks = tasks
	}
	if questions != nil {
		columns = append(columns, "questions")
		values.Questions = questions
	}

	var updated *model.CarePlan
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.CarePlan{ID: id}).Select(columns).Updates(&values)
		if res.Error != nil {
			return fmt.Errorf("update care plan: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		var plan model.CarePlan
		if err := tx.Preload("Caregivers").Where("id = ?", id).First(&plan).Error; err != nil {
			return fmt.Errorf("reload care plan: %w", notFound(err))
		}
		updated = &plan
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a plan together with its caregivers.
func (r *CarePlanRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("care_plan_id = ?", id).Delete(&model.Caregiver{}).Error; err != nil {
			return fmt.Errorf("delete caregivers: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&model.CarePlan{})
		if res.Error != nil {
			return fmt.Errorf("delete care plan: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
