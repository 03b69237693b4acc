package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"care-planner/internal/cache"
	"care-planner/internal/model"
	"care-planner/internal/reconcile"
	"care-planner/internal/repository"
	"care-planner/internal/transcribe"
)

// Transcriber extracts care plan rows and answers from audio.
type Transcriber interface {
	ExtractTasksAndQuestions(ctx context.Context, audio []byte, mime string) ([]transcribe.Task, []string, error)
	TranscribeAnswer(ctx context.Context, audio []byte, mime, question string) (string, error)
}

// Option configures CarePlanService.
type Option func(*CarePlanService)

// WithClock sets the clock used for "today" and for row timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *CarePlanService) { s.now = now }
}

// WithLocation sets the zone calendar dates are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *CarePlanService) { s.loc = loc }
}

// CarePlanService wraps care plan business logic: access checks, row
// reconciliation, voice import and persistence.
type CarePlanService struct {
	plans       *repository.CarePlanRepository
	cache       *cache.Cache
	transcriber Transcriber
	log         *zap.SugaredLogger
	reconciler  *reconcile.Reconciler
	now         func() time.Time
	loc         *time.Location
	loads       singleflight.Group
}

// NewCarePlanService builds the service. c and transcriber may be nil.
func NewCarePlanService(plans *repository.CarePlanRepository, c *cache.Cache, transcriber Transcriber, log *zap.SugaredLogger, opts ...Option) *CarePlanService {
	s := &CarePlanService{
		plans:       plans,
		cache:       c,
		transcriber: transcriber,
		log:         log,
		now:         time.Now,
		loc:         time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reconciler = reconcile.New(reconcile.WithClock(s.now))
	return s
}

// Today returns the current calendar day in the service's zone.
func (s *CarePlanService) Today() time.Time {
	return s.now().In(s.loc)
}

// Create starts a new plan owned by guardian. date is "YYYY-MM-DD" and may
// not be in the past.
func (s *CarePlanService) Create(ctx context.Context, guardian *model.User, date, patientName string) (*model.CarePlan, error) {
	day, err := time.ParseInLocation(model.DateLayout, strings.TrimSpace(date), s.loc)
	if err != nil {
		return nil, &reconcile.ValidationError{Reason: fmt.Sprintf("date %q is not YYYY-MM-DD", date)}
	}
	plan := &model.CarePlan{
		GuardianID:  guardian.ID,
		Date:        day.Format(model.DateLayout),
		PatientName: strings.TrimSpace(patientName),
	}
	if plan.IsPast(s.Today()) {
		return nil, &reconcile.ValidationError{Reason: "date is in the past"}
	}
	if err := s.plans.Create(ctx, plan); err != nil {
		return nil, external("create care plan", err)
	}
	s.log.Infow("care plan created", "plan_id", plan.ID, "guardian_id", guardian.ID, "date", plan.Date)
	return plan, nil
}

// Get returns the plan and the actor's role on it.
func (s *CarePlanService) Get(ctx context.Context, actor *model.User, id string) (*model.CarePlan, model.Role, error) {
	plan, err := s.load(ctx, id)
	if err != nil {
		return nil, "", err
	}
	role, ok := plan.RoleOf(actor.ID)
	if !ok {
		return nil, "", ErrForbidden
	}
	return plan, role, nil
}

// ListForUser returns the plans user owns or has accepted an invite to,
// newest date first.
func (s *CarePlanService) ListForUser(ctx context.Context, user *model.User) ([]model.CarePlan, error) {
	owned, err := s.plans.ListByGuardian(ctx, user.ID)
	if err != nil {
		return nil, external("list care plans", err)
	}
	shared, err := s.plans.ListByCaregiverUser(ctx, user.ID)
	if err != nil {
		return nil, external("list care plans", err)
	}

	seen := make(map[string]bool, len(owned))
	plans := make([]model.CarePlan, 0, len(owned)+len(shared))
	for _, plan := range append(owned, shared...) {
		if seen[plan.ID] {
			continue
		}
		seen[plan.ID] = true
		plans = append(plans, plan)
	}
	sort.SliceStable(plans, func(i, j int) bool {
		return plans[i].Date > plans[j].Date
	})
	return plans, nil
}

// Delete removes a plan. Only its guardian may do so.
func (s *CarePlanService) Delete(ctx context.Context, guardian *model.User, id string) error {
	_, role, err := s.Get(ctx, guardian, id)
	if err != nil {
		return err
	}
	if role != model.RoleGuardian {
		return ErrForbidden
	}
	if err := s.plans.Delete(ctx, id); err != nil {
		return external("delete care plan", err)
	}
	s.invalidate(ctx, id)
	s.log.Infow("care plan deleted", "plan_id", id, "guardian_id", guardian.ID)
	return nil
}

// ApplyTaskRows reconciles a row batch against the plan's task list and
// persists the result.
func (s *CarePlanService) ApplyTaskRows(ctx context.Context, actor *model.User, id string, batch reconcile.RowBatch) (*model.CarePlan, error) {
	session, err := s.session(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	next, err := s.reconciler.ApplyTasks(session, batch)
	if err != nil {
		return nil, err
	}
	return s.persist(ctx, id, next.Plan.Tasks, nil)
}

// ApplyQuestionRows reconciles a row batch against the plan's question list
// and persists the result.
func (s *CarePlanService) ApplyQuestionRows(ctx context.Context, actor *model.User, id string, batch reconcile.RowBatch) (*model.CarePlan, error) {
	session, err := s.session(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	next, err := s.reconciler.ApplyQuestions(session, batch)
	if err != nil {
		return nil, err
	}
	return s.persist(ctx, id, nil, next.Plan.Questions)
}

// ImportVoiceMemo transcribes a guardian's memo and appends the tasks and
// questions found in it.
func (s *CarePlanService) ImportVoiceMemo(ctx context.Context, guardian *model.User, id string, audio []byte, mime string) (*model.CarePlan, error) {
	session, err := s.session(ctx, guardian, id)
	if err != nil {
		return nil, err
	}
	if session.Locked() {
		return nil, reconcile.ErrPlanLocked
	}
	if session.Role != model.RoleGuardian {
		return nil, &reconcile.FieldLockedError{Role: session.Role, Field: "add"}
	}
	if s.transcriber == nil {
		return nil, &ExternalServiceError{Op: "transcribe voice memo", Err: ErrTranscriptionDisabled}
	}

	tasks, questions, err := s.transcriber.ExtractTasksAndQuestions(ctx, audio, mime)
	if err != nil {
		return nil, external("transcribe voice memo", err)
	}

	var taskChanges reconcile.TaskChanges
	for _, t := range tasks {
		add := reconcile.NewTask{Content: t.Content}
		if t.StartTime != nil {
			add.StartTime = t.StartTime.String()
		}
		if t.EndTime != nil && !t.EndImplied {
			add.EndTime = t.EndTime.String()
		}
		taskChanges.Added = append(taskChanges.Added, add)
	}
	var questionChanges reconcile.QuestionChanges
	for _, q := range questions {
		questionChanges.Added = append(questionChanges.Added, reconcile.NewQuestion{Question: q})
	}

	next, err := s.reconciler.ApplyTaskChanges(session, taskChanges)
	if err != nil {
		return nil, err
	}
	next, err = s.reconciler.ApplyQuestionChanges(next, questionChanges)
	if err != nil {
		return nil, err
	}
	s.log.Infow("voice memo imported", "plan_id", id, "tasks", len(tasks), "questions", len(questions))
	return s.persist(ctx, id, next.Plan.Tasks, next.Plan.Questions)
}

// AnswerByVoice transcribes a caregiver's spoken answer to one question.
func (s *CarePlanService) AnswerByVoice(ctx context.Context, caregiver *model.User, id, questionID string, audio []byte, mime string) (*model.CarePlan, error) {
	session, err := s.session(ctx, caregiver, id)
	if err != nil {
		return nil, err
	}
	if session.Locked() {
		return nil, reconcile.ErrPlanLocked
	}
	if session.Role != model.RoleCaregiver {
		return nil, &reconcile.FieldLockedError{Role: session.Role, Field: "answer"}
	}
	var question *model.Question
	for i := range session.Plan.Questions {
		if session.Plan.Questions[i].ID == questionID {
			question = &session.Plan.Questions[i]
			break
		}
	}
	if question == nil {
		return nil, &reconcile.ValidationError{Reason: fmt.Sprintf("unknown question %q", questionID)}
	}
	if s.transcriber == nil {
		return nil, &ExternalServiceError{Op: "transcribe answer", Err: ErrTranscriptionDisabled}
	}

	answer, err := s.transcriber.TranscribeAnswer(ctx, audio, mime, question.Question)
	if err != nil {
		return nil, external("transcribe answer", err)
	}
	next, err := s.reconciler.ApplyQuestionChanges(session, reconcile.QuestionChanges{
		Edited: map[string]reconcile.QuestionPatch{questionID: {Answer: &answer}},
	})
	if err != nil {
		return nil, err
	}
	return s.persist(ctx, id, nil, next.Plan.Questions)
}

func (s *CarePlanService) session(ctx context.Context, actor *model.User, id string) (reconcile.Session, error) {
	plan, role, err := s.Get(ctx, actor, id)
	if err != nil {
		return reconcile.Session{}, err
	}
	return reconcile.Session{Plan: *plan, Actor: actor.ID, Role: role, Today: s.Today()}, nil
}

func (s *CarePlanService) persist(ctx context.Context, id string, tasks []model.Task, questions []model.Question) (*model.CarePlan, error) {
	updated, err := s.plans.UpdateCarePlan(ctx, id, tasks, questions)
	if err != nil {
		return nil, external("update care plan", err)
	}
	s.invalidate(ctx, id)
	return updated, nil
}

// load reads a plan through the cache. Concurrent misses for the same plan
// share one store query.
func (s *CarePlanService) load(ctx context.Context, id string) (*model.CarePlan, error) {
	var cached model.CarePlan
	found, err := s.cache.Get(ctx, cache.PlanKey(id), &cached)
	if err != nil {
		s.log.Warnw("cache read failed", "plan_id", id, "error", err)
	}
	if found {
		return &cached, nil
	}

	// The query is shared by every caller waiting on id, so one caller
	// cancelling must not fail the rest.
	shared := context.WithoutCancel(ctx)
	val, err, _ := s.loads.Do(id, func() (any, error) {
		return s.plans.FindByID(shared, id)
	})
	if err != nil {
		return nil, external("load care plan", err)
	}
	plan := val.(*model.CarePlan)
	if err := s.cache.Set(ctx, cache.PlanKey(id), plan); err != nil {
		s.log.Warnw("cache write failed", "plan_id", id, "error", err)
	}
	// Callers may modify the plan; singleflight shares one pointer.
	copied := *plan
	return &copied, nil
}

func (s *CarePlanService) invalidate(ctx context.Context, id string) {
	if err := s.cache.Delete(ctx, cache.PlanKey(id)); err != nil {
		s.log.Warnw("cache invalidation failed", "plan_id", id, "error", err)
	}
}

// IsNotFound reports whether err means the plan or invite does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
