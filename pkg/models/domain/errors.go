package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned before any remote call for an empty or malformed target.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnknownDriver is returned when no driver is registered under the requested name.
	ErrUnknownDriver = errors.New("unknown driver")
	// ErrTimeout is returned when a remote call exceeds its deadline.
	ErrTimeout = errors.New("remote call timed out")
)

// RemoteError is a failed remote call. Body carries the raw response for diagnostics.
type RemoteError struct {
	Service    string
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode == 0:
		return fmt.Sprintf("%s request failed: %v", e.Service, e.Err)
	case e.Body != "":
		return fmt.Sprintf("%s request failed with status %d: %s", e.Service, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("%s request failed with status %d", e.Service, e.StatusCode)
	}
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// InvalidInputf wraps ErrInvalidInput with a formatted reason.
func InvalidInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
