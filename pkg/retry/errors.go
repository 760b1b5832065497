package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// TransientError marks a failure worth retrying: network errors, throttling
// and server-side faults.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string {
	return e.err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.err
}

// Transient wraps err as retryable.
func Transient(err error) error {
	return &TransientError{err: err}
}

// FatalError marks a failure that no retry will fix, such as a rejected request
// or a malformed payload.
type FatalError struct {
	err error
}

func (e *FatalError) Error() string {
	return e.err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.err
}

// Fatal wraps err as non-retryable.
func Fatal(err error) error {
	return &FatalError{err: err}
}

// IsTransient reports whether err is marked transient.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsFatal reports whether err is marked fatal.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// Retryable reports whether the guard should try again after err. Errors
// marked transient are retried even when they wrap a deadline, as a
// per-request client timeout does. Unmarked errors are treated as network
// failures and retried; fatal errors and caller cancellation are not.
func Retryable(err error) bool {
	if err == nil || IsFatal(err) {
		return false
	}
	if IsTransient(err) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// ClassifyStatus turns a non-2xx HTTP status into a transient or fatal error.
func ClassifyStatus(status int, body string) error {
	err := fmt.Errorf("status %d: %s", status, body)
	switch {
	case status == http.StatusTooManyRequests:
		return Transient(err)
	case status == http.StatusRequestTimeout:
		return Transient(err)
	case status >= 500:
		return Transient(err)
	default:
		return Fatal(err)
	}
}
