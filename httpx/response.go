// Package httpx holds the JSON plumbing shared by every handler.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
)

// MaxBodyBytes caps request bodies read by Decode.
const MaxBodyBytes = 1 << 20

var errTrailingData = errors.New("unexpected data after JSON body")

var encodeFailure = []byte(`{"error":"encode_error"}`)

// ErrorBody is the envelope of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func writeHeaders(w http.ResponseWriter, status int) {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
}

// JSON writes payload with status. The payload is marshalled before any
// header goes out, so a failure still produces a well-formed 500.
func JSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		status, body = http.StatusInternalServerError, encodeFailure
	}
	writeHeaders(w, status)
	_, _ = w.Write(body)
}

// JSONError writes an ErrorBody.
func JSONError(w http.ResponseWriter, status int, code string, details any) {
	JSON(w, status, ErrorBody{Error: code, Details: details})
}

// NoContent answers 204.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Decode reads a JSON body of at most MaxBodyBytes into dst, rejecting
// unknown fields and trailing data.
func Decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errTrailingData
	}
	return nil
}
