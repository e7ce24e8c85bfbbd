package httpx

import (
	"errors"
	"net/http"

	"gorm.io/gorm"

	"github.com/diewo77/go-archive/gate"
	"github.com/diewo77/go-archive/validation"
)

// StatusError lets domain errors choose their HTTP representation.
type StatusError interface {
	error
	StatusCode() int
	ErrorCode() string
	ErrorDetails() any
}

// Error writes err as JSON and returns the status it chose. Unknown errors
// become a bare 500 so internals never leak.
func Error(w http.ResponseWriter, err error) int {
	status, code, details := Classify(err)
	JSONError(w, status, code, details)
	return status
}

// Classify maps err to a status, a snake_case code and optional details.
func Classify(err error) (int, string, any) {
	var se StatusError
	var verr *validation.Error
	var denied *gate.DeniedError
	switch {
	case errors.As(err, &se):
		return se.StatusCode(), se.ErrorCode(), se.ErrorDetails()
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, "validation_failed", verr.Violations
	case errors.As(err, &denied):
		return http.StatusForbidden, "forbidden", map[string]string{"action": string(denied.Action), "reason": denied.Reason}
	case errors.Is(err, gate.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthorized", nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, "not_found", nil
	default:
		return http.StatusInternalServerError, "internal_error", nil
	}
}
