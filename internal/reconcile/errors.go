package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"care-planner/internal/model"
)

// ErrPlanLocked is returned for any change to a care plan whose date has passed.
var ErrPlanLocked = errors.New("care plan date has passed, it is read-only")

// ValidationError reports a missing required value or a row that no longer
// exists in the list the actor is looking at.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// FieldError locates a failure inside a batch. Row is the position of the row
// in the list the batch addressed, or in the added rows when Added is set.
type FieldError struct {
	Row   int
	Added bool
	ID    string
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	where := fmt.Sprintf("row %d", e.Row)
	if e.Added {
		where = fmt.Sprintf("added row %d", e.Row)
	}
	return fmt.Sprintf("%s %s: %v", where, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// FieldLockedError reports a change the actor's role may not make.
type FieldLockedError struct {
	Role  model.Role
	Field string
}

func (e *FieldLockedError) Error() string {
	return fmt.Sprintf("%s may not change %s", strings.ToLower(string(e.Role)), e.Field)
}

func required(field string) error {
	return &ValidationError{Reason: field + " is required"}
}
