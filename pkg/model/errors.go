package model

import (
	"fmt"
	"time"
)

// StageError is the single concrete error type a TaskExecutor returns. Go
// has no tagged-union error hierarchy, so classification lives in the Kind
// field rather than in the type of the error value (mirrors the services
// package's ValidationError / sentinel-error split, generalized to a
// closed Kind enum instead of distinct types per error).
type StageError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int           // set for ErrorServerError
	RetryAfter time.Duration // set for ErrorRateLimit when the origin supplied one
}

func (e *StageError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewStageError builds a StageError of the given kind.
func NewStageError(kind ErrorKind, message string) *StageError {
	return &StageError{Kind: kind, Message: message}
}

// IsFatal reports whether this error terminates the owning session rather
// than being absorbed as a partial-success failure. Cancelled is always
// fatal; ErrorDatabase and ErrorValidation are fatal only when the
// corresponding abort flag is set, everything else is recoverable.
func (e *StageError) IsFatal(abortOnDatabaseError, abortOnValidationError bool) bool {
	switch e.Kind {
	case ErrorCancelled:
		return true
	case ErrorDatabase:
		return abortOnDatabaseError
	case ErrorValidation:
		return abortOnValidationError
	default:
		return false
	}
}
