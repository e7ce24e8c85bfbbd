package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/diewo77/go-archive/gate"
	"github.com/diewo77/go-archive/internal/models"
	"github.com/diewo77/go-archive/internal/storage"
)

// ErrInvalidCredentials is returned by UserService.Authenticate.
var ErrInvalidCredentials = &StatusError{Status: http.StatusUnauthorized, Code: "invalid_credentials"}

// StatusError is a domain error with a fixed HTTP representation.
type StatusError struct {
	Status  int
	Code    string
	Details any
	Err     error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *StatusError) Unwrap() error     { return e.Err }
func (e *StatusError) StatusCode() int   { return e.Status }
func (e *StatusError) ErrorCode() string { return e.Code }
func (e *StatusError) ErrorDetails() any { return e.Details }

func conflictf(code, format string, args ...any) *StatusError {
	return &StatusError{Status: http.StatusConflict, Code: code, Err: fmt.Errorf(format, args...)}
}

// Blocker names a record that keeps a plan alive.
type Blocker struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// PlanInUseError is returned when deleting a plan that is still referenced.
type PlanInUseError struct {
	PlanID    uint      `json:"plan_id"`
	Companies []Blocker `json:"companies,omitempty"`
	Clients   []Blocker `json:"clients,omitempty"`
}

func (e *PlanInUseError) Error() string {
	return fmt.Sprintf("plan %d is used by %d companies and %d clients", e.PlanID, len(e.Companies), len(e.Clients))
}

func (e *PlanInUseError) StatusCode() int   { return http.StatusConflict }
func (e *PlanInUseError) ErrorCode() string { return "plan_in_use" }
func (e *PlanInUseError) ErrorDetails() any { return e }

// translate maps model sentinels to their HTTP representation.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, models.ErrInvoiceImmutable):
		return &StatusError{Status: http.StatusConflict, Code: "invoice_immutable", Err: err}
	case errors.Is(err, models.ErrDisputeResolved):
		return &StatusError{Status: http.StatusConflict, Code: "dispute_resolved", Err: err}
	case errors.Is(err, storage.ErrDisabled):
		return &StatusError{Status: http.StatusServiceUnavailable, Code: "storage_unavailable", Err: err}
	default:
		return err
	}
}

func gateDenied(action gate.Action, reason string) error {
	return &gate.DeniedError{Action: action, Reason: reason}
}
