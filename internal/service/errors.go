package service

import (
	"context"
	"errors"
	"fmt"

	"care-planner/internal/repository"
)

var (
	// ErrForbidden is returned when the actor has no role on the plan, or the
	// wrong one for the operation.
	ErrForbidden = errors.New("not allowed on this care plan")
	// ErrTranscriptionDisabled is returned by voice operations when no
	// transcription backend is configured.
	ErrTranscriptionDisabled = errors.New("voice transcription is not configured")
	// ErrInviteUsed is returned when an invite code was already redeemed by
	// someone else.
	ErrInviteUsed = errors.New("invite code was already used")
)

// ExternalServiceError reports a failure of the record store or the
// transcription backend. The caller's state is unchanged and the request may
// be retried.
type ExternalServiceError struct {
	Op  string
	Err error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same request may succeed later.
func (e *ExternalServiceError) Retryable() bool {
	return true
}

// external wraps backend failures. Not-found and cancellation are passed
// through unchanged.
func external(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, context.Canceled) {
		return err
	}
	return &ExternalServiceError{Op: op, Err: err}
}
