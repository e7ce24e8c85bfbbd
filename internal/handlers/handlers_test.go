package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-archive/gate"
	"github.com/diewo77/go-archive/internal/services"
	"github.com/diewo77/go-archive/validation"
)

func quietResponder() responder {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return newResponder(log)
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return body.Error
}

func TestDecode(t *testing.T) {
	rs := quietResponder()
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed", `{"title":`, http.StatusBadRequest, "invalid_json"},
		{"unknown field", `{"title":"a","extra":1}`, http.StatusBadRequest, "invalid_json"},
		{"too large", `{"title":"` + strings.Repeat("x", 1<<20) + `"}`, http.StatusRequestEntityTooLarge, "body_too_large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("POST", "/documents", strings.NewReader(tt.body))
			var dst services.DocumentInput
			if rs.decode(rec, req, &dst) {
				t.Fatal("decode should fail")
			}
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if code := errorCode(t, rec); code != tt.code {
				t.Errorf("code = %q, want %q", code, tt.code)
			}
		})
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/documents", strings.NewReader(`{"title":"Lease"}`))
	var dst services.DocumentInput
	if !rs.decode(rec, req, &dst) || dst.Title != "Lease" {
		t.Fatalf("valid body rejected: %+v", dst)
	}
}

func TestIDRejectsNonNumeric(t *testing.T) {
	rs := quietResponder()
	req := httptest.NewRequest("GET", "/documents/abc", nil)
	req.SetPathValue("id", "abc")
	rec := httptest.NewRecorder()
	if _, ok := rs.id(rec, req); ok {
		t.Fatal("id should fail")
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}

	req.SetPathValue("id", "42")
	if id, ok := rs.id(httptest.NewRecorder(), req); !ok || id != 42 {
		t.Errorf("id = %d, %v", id, ok)
	}
}

func TestFailMapsErrors(t *testing.T) {
	rs := quietResponder()
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{gate.ErrUnauthenticated, http.StatusUnauthorized, "unauthorized"},
		{validation.Field("title", "required"), http.StatusUnprocessableEntity, "validation_failed"},
		{services.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		rs.fail(rec, httptest.NewRequest("GET", "/x", nil), tt.err)
		if rec.Code != tt.status {
			t.Errorf("%v: status = %d, want %d", tt.err, rec.Code, tt.status)
		}
		if code := errorCode(t, rec); code != tt.code {
			t.Errorf("%v: code = %q, want %q", tt.err, code, tt.code)
		}
	}
}

func TestListOfNeverNull(t *testing.T) {
	out, err := json.Marshal(listOf[int](nil, 0, services.Page{Limit: 20}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `"items":[]`) {
		t.Errorf("got %s", out)
	}
}

func TestSinceParam(t *testing.T) {
	req := httptest.NewRequest("GET", "/activity-logs?since=2024-03-01", nil)
	since, err := sinceParam(req)
	if err != nil {
		t.Fatal(err)
	}
	if since.Year() != 2024 || since.Month() != 3 || since.Day() != 1 {
		t.Errorf("since = %v", since)
	}

	req = httptest.NewRequest("GET", "/activity-logs?since=yesterday-ish", nil)
	var verr *validation.Error
	if _, err := sinceParam(req); !errors.As(err, &verr) {
		t.Fatalf("want validation error, got %v", err)
	}

	req = httptest.NewRequest("GET", "/activity-logs", nil)
	if since, err := sinceParam(req); err != nil || !since.IsZero() {
		t.Errorf("empty since = %v, %v", since, err)
	}
}
