package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	nanoid "github.com/jaevor/go-nanoid"
	"go.uber.org/zap"

	"care-planner/internal/model"
	"care-planner/internal/reconcile"
	"care-planner/internal/repository"
)

const (
	inviteAlphabet   = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	inviteCodeLength = 10
)

// CaregiverService handles inviting caregivers to a plan and the notes they
// leave on it.
type CaregiverService struct {
	caregivers *repository.CaregiverRepository
	plans      *CarePlanService
	log        *zap.SugaredLogger
	newCode    func() string
}

func NewCaregiverService(caregivers *repository.CaregiverRepository, plans *CarePlanService, log *zap.SugaredLogger) (*CaregiverService, error) {
	gen, err := nanoid.CustomASCII(inviteAlphabet, inviteCodeLength)
	if err != nil {
		return nil, fmt.Errorf("invite code generator: %w", err)
	}
	return &CaregiverService{caregivers: caregivers, plans: plans, log: log, newCode: gen}, nil
}

// Invite creates a caregiver slot on the plan with a fresh invite code.
func (s *CaregiverService) Invite(ctx context.Context, guardian *model.User, planID, name string) (*model.Caregiver, error) {
	plan, role, err := s.plans.Get(ctx, guardian, planID)
	if err != nil {
		return nil, err
	}
	if role != model.RoleGuardian {
		return nil, ErrForbidden
	}
	if plan.IsPast(s.plans.Today()) {
		return nil, reconcile.ErrPlanLocked
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &reconcile.ValidationError{Reason: "caregiver name is required"}
	}

	caregiver := &model.Caregiver{
		CarePlanID: planID,
		Name:       name,
		Status:     model.CaregiverInvited,
		InviteCode: s.newCode(),
	}
	if err := s.caregivers.Create(ctx, caregiver); err != nil {
		return nil, external("create caregiver", err)
	}
	s.plans.invalidate(ctx, planID)
	s.log.Infow("caregiver invited", "plan_id", planID, "caregiver_id", caregiver.ID)
	return caregiver, nil
}

// Accept redeems an invite code for user. Accepting the same code twice is a
// no-op; a code redeemed by someone else is rejected.
func (s *CaregiverService) Accept(ctx context.Context, user *model.User, code string) (*model.Caregiver, error) {
	caregiver, err := s.caregivers.FindByInviteCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, external("find invite", err)
	}
	if caregiver.Status == model.CaregiverAccepted {
		if caregiver.UserID != nil && *caregiver.UserID == user.ID {
			return caregiver, nil
		}
		return nil, ErrInviteUsed
	}

	plan, err := s.plans.load(ctx, caregiver.CarePlanID)
	if err != nil {
		return nil, err
	}
	if plan.GuardianID == user.ID {
		return nil, &reconcile.ValidationError{Reason: "the guardian cannot be a caregiver on their own plan"}
	}
	if _, err := s.caregivers.FindByPlanAndUser(ctx, plan.ID, user.ID); err == nil {
		return nil, &reconcile.ValidationError{Reason: "already a caregiver on this plan"}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, external("find caregiver", err)
	}

	if err := s.caregivers.Accept(ctx, caregiver, user.ID); err != nil {
		return nil, external("accept invite", err)
	}
	s.plans.invalidate(ctx, caregiver.CarePlanID)
	s.log.Infow("invite accepted", "plan_id", caregiver.CarePlanID, "caregiver_id", caregiver.ID, "user_id", user.ID)
	return caregiver, nil
}

// AddNote appends a note to the caregiver's notes on the plan.
func (s *CaregiverService) AddNote(ctx context.Context, user *model.User, planID, text string) (*model.Caregiver, error) {
	plan, role, err := s.plans.Get(ctx, user, planID)
	if err != nil {
		return nil, err
	}
	if role != model.RoleCaregiver {
		return nil, ErrForbidden
	}
	if plan.IsPast(s.plans.Today()) {
		return nil, reconcile.ErrPlanLocked
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &reconcile.ValidationError{Reason: "note is required"}
	}

	caregiver, err := s.caregivers.FindByPlanAndUser(ctx, planID, user.ID)
	if err != nil {
		return nil, external("find caregiver", err)
	}
	notes := append(append([]model.CaregiverNote{}, caregiver.Notes...), model.CaregiverNote{Note: text, CreatedAt: s.plans.now()})
	if err := s.caregivers.UpdateNotes(ctx, caregiver, notes); err != nil {
		return nil, external("add note", err)
	}
	s.plans.invalidate(ctx, planID)
	return caregiver, nil
}

// List returns the caregivers of a plan the actor can see.
func (s *CaregiverService) List(ctx context.Context, actor *model.User, planID string) ([]model.Caregiver, error) {
	if _, _, err := s.plans.Get(ctx, actor, planID); err != nil {
		return nil, err
	}
	caregivers, err := s.caregivers.ListByCarePlan(ctx, planID)
	if err != nil {
		return nil, external("list caregivers", err)
	}
	return caregivers, nil
}
