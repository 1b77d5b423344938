package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/slot-booking/internal/lock"
)

var (
	// ErrValidation classifies bad caller input.  Match it with errors.Is;
	// the concrete error is a *ValidationError carrying the message.
	ErrValidation = errors.New("validation failed")

	// ErrLockTimeout is returned when the engine lock could not be taken
	// within the configured wait.  Nothing was changed.
	ErrLockTimeout = lock.ErrLockTimeout

	// ErrBatchIncomplete is returned with a BatchReport when one or more
	// steps failed.  The report lists them.
	ErrBatchIncomplete = errors.New("batch finished with failed steps")
)

// ValidationError describes one invalid input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Is makes errors.Is(err, ErrValidation) hold.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
