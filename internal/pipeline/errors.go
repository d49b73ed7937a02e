package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Error taxonomy shared by every pipeline component. Callers wrap these with
// fmt.Errorf("%w: ...") and classify with errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("version conflict")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrExternalService   = errors.New("external service error")
	ErrPersistence       = errors.New("persistence error")
	ErrDuplicate         = errors.New("already exists")
	ErrForbidden         = errors.New("forbidden")
	ErrDuplicateEvent    = errors.New("event already applied")
)

const (
	ErrorCodeValidation        = "validation_error"
	ErrorCodeNotFound          = "not_found"
	ErrorCodeVersionConflict   = "version_conflict"
	ErrorCodeInvalidTransition = "invalid_transition"
	ErrorCodeExternalService   = "external_service_error"
	ErrorCodePersistence       = "persistence_error"
	ErrorCodeDuplicate         = "duplicate"
	ErrorCodeForbidden         = "forbidden"
	ErrorCodeInternal          = "internal_error"
)

// Classify maps an error onto its taxonomy code.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return ErrorCodeValidation
	case errors.Is(err, ErrNotFound):
		return ErrorCodeNotFound
	case errors.Is(err, ErrConflict):
		return ErrorCodeVersionConflict
	case errors.Is(err, ErrInvalidTransition):
		return ErrorCodeInvalidTransition
	case errors.Is(err, ErrExternalService):
		return ErrorCodeExternalService
	case errors.Is(err, ErrPersistence):
		return ErrorCodePersistence
	case errors.Is(err, ErrDuplicate):
		return ErrorCodeDuplicate
	case errors.Is(err, ErrForbidden):
		return ErrorCodeForbidden
	default:
		return ErrorCodeInternal
	}
}

// Bounded runs fn under a deadline of timeout. A store call that runs out of
// time fails with ErrPersistence so callers treat it as transient. A zero
// timeout leaves ctx unchanged.
func Bounded(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	bounded, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := fn(bounded)
	if err == nil || errors.Is(err, ErrPersistence) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(bounded.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return err
}
