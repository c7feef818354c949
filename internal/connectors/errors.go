package connectors

import (
	"errors"
	"fmt"
	"time"
)

// ErrTransient маркирует временные сбои транспорта/зависимости,
// которые имеет смысл повторять через retry.Executor.
var ErrTransient = errors.New("transient connector failure")

// ThrottleError — зависимость сама сообщила, когда приходить снова
// (например, прочитан Retry-After заголовок).
type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}

func (e *ThrottleError) Unwrap() error {
	return e.Cause
}

// IsTransient — классификатор для retry.Policy.Retryable.
func IsTransient(err error) bool {
	var tErr *ThrottleError
	return errors.Is(err, ErrTransient) || errors.As(err, &tErr)
}
