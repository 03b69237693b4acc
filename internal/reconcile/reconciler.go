// Package reconcile turns a batch of row edits against a care plan's task or
// question list into the next list to persist. It performs no I/O: the result
// is written back to the store as a whole list by the caller.
package reconcile

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"care-planner/internal/model"
	"care-planner/internal/timeofday"
)

// defaultDurationMinutes is the length of a task that only has a start time.
const defaultDurationMinutes = 30

// Reconciler applies TaskChanges and QuestionChanges. The zero value is not
// usable; construct it with New.
type Reconciler struct {
	now   func() time.Time
	newID func() string
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock sets the source of updated_at timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// WithIDGenerator sets how IDs for appended rows are minted.
func WithIDGenerator(gen func() string) Option {
	return func(r *Reconciler) { r.newID = gen }
}

func New(opts ...Option) *Reconciler {
	r := &Reconciler{now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Tasks returns the list that results from applying changes to current.
// Deletions win over edits of the same row, edits keep list order and new
// rows are appended. current is never modified; on error nothing is applied.
func (r *Reconciler) Tasks(current []model.Task, changes TaskChanges) ([]model.Task, error) {
	known := make(map[string]bool, len(current))
	for _, task := range current {
		known[task.ID] = true
	}
	deleted, err := idSet(known, changes.Deleted, "task")
	if err != nil {
		return nil, err
	}
	for id := range changes.Edited {
		if !known[id] {
			return nil, &ValidationError{Reason: fmt.Sprintf("unknown task %q", id)}
		}
	}

	now := r.now()
	next := make([]model.Task, 0, len(current)+len(changes.Added))
	for row, task := range current {
		if deleted[task.ID] {
			continue
		}
		if patch, ok := changes.Edited[task.ID]; ok && !patch.empty() {
			edited, field, err := editTask(task, patch)
			if err != nil {
				return nil, &FieldError{Row: row, ID: task.ID, Field: field, Err: err}
			}
			edited.UpdatedAt = now
			task = edited
		}
		next = append(next, task)
	}

	for row, add := range changes.Added {
		task, ok, field, err := r.newTask(add, now)
		if err != nil {
			return nil, &FieldError{Row: row, Added: true, Field: field, Err: err}
		}
		if ok {
			next = append(next, task)
		}
	}
	return next, nil
}

// Questions is Tasks for the question list, without time handling.
func (r *Reconciler) Questions(current []model.Question, changes QuestionChanges) ([]model.Question, error) {
	known := make(map[string]bool, len(current))
	for _, q := range current {
		known[q.ID] = true
	}
	deleted, err := idSet(known, changes.Deleted, "question")
	if err != nil {
		return nil, err
	}
	for id := range changes.Edited {
		if !known[id] {
			return nil, &ValidationError{Reason: fmt.Sprintf("unknown question %q", id)}
		}
	}

	now := r.now()
	next := make([]model.Question, 0, len(current)+len(changes.Added))
	for row, q := range current {
		if deleted[q.ID] {
			continue
		}
		if patch, ok := changes.Edited[q.ID]; ok && !patch.empty() {
			if patch.Question != nil {
				text := strings.TrimSpace(*patch.Question)
				if text == "" {
					return nil, &FieldError{Row: row, ID: q.ID, Field: "question", Err: required("question")}
				}
				q.Question = text
			}
			if patch.Answer != nil {
				q.Answer = strings.TrimSpace(*patch.Answer)
			}
			q.UpdatedAt = now
		}
		next = append(next, q)
	}

	for _, add := range changes.Added {
		text := strings.TrimSpace(add.Question)
		if text == "" {
			continue
		}
		next = append(next, model.Question{ID: r.newID(), Question: text, UpdatedAt: now})
	}
	return next, nil
}

// editTask applies patch to task and returns the name of the offending field
// on error.
func editTask(task model.Task, patch TaskPatch) (model.Task, string, error) {
	if patch.Content != nil {
		content := strings.TrimSpace(*patch.Content)
		if content == "" {
			return task, "content", required("content")
		}
		task.Content = content
	}
	if patch.Status != nil {
		task.Status = *patch.Status
	}
	if patch.StartTime != nil {
		start, err := timeofday.ParseOptional(*patch.StartTime)
		if err != nil {
			return task, "start_time", err
		}
		if start == nil {
			task.StartTime = nil
		} else {
			hours, minutes := 0, defaultDurationMinutes
			if task.StartTime != nil && task.EndTime != nil {
				if h, m, err := timeofday.Diff(*task.StartTime, *task.EndTime); err == nil {
					hours, minutes = h, m
				}
			}
			snapped := start.SnapHalfHour()
			end := snapped.AddClamped(hours, minutes)
			task.StartTime, task.EndTime = &snapped, &end
		}
	}
	if patch.EndTime != nil {
		end, err := timeofday.ParseOptional(*patch.EndTime)
		if err != nil {
			return task, "end_time", err
		}
		task.EndTime = end
	}
	if patch.StartTime != nil || patch.EndTime != nil {
		if err := checkRange(task.StartTime, task.EndTime); err != nil {
			return task, "end_time", err
		}
	}
	return task, "", nil
}

// newTask builds an appended task. ok is false for rows without content,
// which are dropped without error.
func (r *Reconciler) newTask(add NewTask, now time.Time) (task model.Task, ok bool, field string, err error) {
	content := strings.TrimSpace(add.Content)
	if content == "" {
		return model.Task{}, false, "", nil
	}
	start, err := timeofday.ParseOptional(add.StartTime)
	if err != nil {
		return model.Task{}, false, "start_time", err
	}
	end, err := timeofday.ParseOptional(add.EndTime)
	if err != nil {
		return model.Task{}, false, "end_time", err
	}
	if start != nil {
		snapped := start.SnapHalfHour()
		start = &snapped
		if end == nil {
			implied := snapped.AddClamped(0, defaultDurationMinutes)
			end = &implied
		}
	}
	if err := checkRange(start, end); err != nil {
		return model.Task{}, false, "end_time", err
	}
	return model.Task{
		ID:        r.newID(),
		Content:   content,
		StartTime: start,
		EndTime:   end,
		UpdatedAt: now,
	}, true, "", nil
}

func checkRange(start, end *timeofday.Time) error {
	if start == nil || end == nil {
		return nil
	}
	_, _, err := timeofday.Diff(*start, *end)
	return err
}

func idSet(known map[string]bool, ids []string, kind string) (map[string]bool, error) {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !known[id] {
			return nil, &ValidationError{Reason: fmt.Sprintf("unknown %s %q", kind, id)}
		}
		set[id] = true
	}
	return set, nil
}
