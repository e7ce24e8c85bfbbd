package gate

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Gate.Authorize.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

// DeniedError wraps ErrForbidden with the action and the reason shown to the caller.
type DeniedError struct {
	Action Action
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s denied: %s", e.Action, e.Reason)
}

func (e *DeniedError) Unwrap() error { return ErrForbidden }
