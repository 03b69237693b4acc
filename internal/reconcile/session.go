package reconcile

import (
	"time"

	"care-planner/internal/model"
)

// Session is the state of one actor's interaction with a care plan. It is
// passed into Apply* and returned with the reconciled lists; callers persist
// Plan and replace it with what the store returns.
type Session struct {
	Plan  model.CarePlan
	Actor uint
	Role  model.Role
	Today time.Time
}

// Fields each role may change while the plan is open.
var (
	taskFields = map[model.Role]map[string]bool{
		model.RoleGuardian:  {"content": true, "start_time": true, "end_time": true, "add": true, "delete": true},
		model.RoleCaregiver: {"status": true},
	}
	questionFields = map[model.Role]map[string]bool{
		model.RoleGuardian:  {"question": true, "add": true, "delete": true},
		model.RoleCaregiver: {"answer": true},
	}
)

// Locked reports whether the plan no longer accepts changes.
func (s Session) Locked() bool {
	return s.Plan.IsPast(s.Today)
}

// ApplyTasks translates a row batch against the session's task list and
// reconciles it.
func (r *Reconciler) ApplyTasks(s Session, batch RowBatch) (Session, error) {
	if s.Locked() {
		return s, ErrPlanLocked
	}
	changes, err := TranslateTasks(s.Plan.Tasks, batch)
	if err != nil {
		return s, err
	}
	return r.ApplyTaskChanges(s, changes)
}

// ApplyTaskChanges checks the edit policy and reconciles ID-based changes.
func (r *Reconciler) ApplyTaskChanges(s Session, changes TaskChanges) (Session, error) {
	if s.Locked() {
		return s, ErrPlanLocked
	}
	if err := allowTasks(s.Role, changes); err != nil {
		return s, err
	}
	tasks, err := r.Tasks(s.Plan.Tasks, changes)
	if err != nil {
		return s, err
	}
	s.Plan.Tasks = tasks
	return s, nil
}

// ApplyQuestions translates a row batch against the session's question list
// and reconciles it.
func (r *Reconciler) ApplyQuestions(s Session, batch RowBatch) (Session, error) {
	if s.Locked() {
		return s, ErrPlanLocked
	}
	changes, err := TranslateQuestions(s.Plan.Questions, batch)
	if err != nil {
		return s, err
	}
	return r.ApplyQuestionChanges(s, changes)
}

// ApplyQuestionChanges checks the edit policy and reconciles ID-based changes.
func (r *Reconciler) ApplyQuestionChanges(s Session, changes QuestionChanges) (Session, error) {
	if s.Locked() {
		return s, ErrPlanLocked
	}
	if err := allowQuestions(s.Role, changes); err != nil {
		return s, err
	}
	questions, err := r.Questions(s.Plan.Questions, changes)
	if err != nil {
		return s, err
	}
	s.Plan.Questions = questions
	return s, nil
}

func allowTasks(role model.Role, changes TaskChanges) error {
	allowed := taskFields[role]
	check := func(field string) error {
		if !allowed[field] {
			return &FieldLockedError{Role: role, Field: field}
		}
		return nil
	}
	if len(changes.Deleted) > 0 {
		if err := check("delete"); err != nil {
			return err
		}
	}
	if len(changes.Added) > 0 {
		if err := check("add"); err != nil {
			return err
		}
	}
	for _, patch := range changes.Edited {
		touched := []struct {
			field   string
			present bool
		}{
			{"content", patch.Content != nil},
			{"status", patch.Status != nil},
			{"start_time", patch.StartTime != nil},
			{"end_time", patch.EndTime != nil},
		}
		for _, t := range touched {
			if t.present {
				if err := check(t.field); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func allowQuestions(role model.Role, changes QuestionChanges) error {
	allowed := questionFields[role]
	check := func(field string) error {
		if !allowed[field] {
			return &FieldLockedError{Role: role, Field: field}
		}
		return nil
	}
	if len(changes.Deleted) > 0 {
		if err := check("delete"); err != nil {
			return err
		}
	}
	if len(changes.Added) > 0 {
		if err := check("add"); err != nil {
			return err
		}
	}
	for _, patch := range changes.Edited {
		if patch.Question != nil {
			if err := check("question"); err != nil {
				return err
			}
		}
		if patch.Answer != nil {
			if err := check("answer"); err != nil {
				return err
			}
		}
	}
	return nil
}
