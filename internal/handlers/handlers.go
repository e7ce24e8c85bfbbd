// Package handlers exposes the services as JSON over HTTP. Every handler
// expects the route to have resolved the actor through policy.AuthGate.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/shockerli/cvt"
	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-archive/httpx"
	"github.com/diewo77/go-archive/internal/middleware"
	"github.com/diewo77/go-archive/internal/policy"
	"github.com/diewo77/go-archive/internal/services"
	"github.com/diewo77/go-archive/validation"
)

// responder writes errors and decodes bodies the same way for every handler.
type responder struct {
	log logrus.FieldLogger
}

func newResponder(log logrus.FieldLogger) responder {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return responder{log: log}
}

// fail writes err. Server errors are logged and reported.
func (rs responder) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status := httpx.Error(w, err); status >= http.StatusInternalServerError {
		rs.log.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
		middleware.CaptureError(r, err, nil)
	}
}

// decode reads a JSON body, answering 400 on malformed input.
func (rs responder) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.Decode(w, r, dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.JSONError(w, http.StatusRequestEntityTooLarge, "body_too_large", nil)
			return false
		}
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

// id reads the {id} path value, answering 404 when it is not a number.
func (rs responder) id(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, ok := httpx.PathID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
	}
	return id, ok
}

func actorOf(r *http.Request) policy.Actor {
	a, _ := policy.ActorFromContext(r.Context())
	return a
}

func pageOf(r *http.Request) services.Page {
	limit, offset := httpx.Page(r)
	return services.Page{Limit: limit, Offset: offset}
}

// List is the envelope of paged collections.
type List[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

func listOf[T any](items []T, total int64, p services.Page) List[T] {
	if items == nil {
		items = []T{}
	}
	return List[T]{Items: items, Total: total, Limit: p.Limit, Offset: p.Offset}
}

// sinceParam reads an RFC 3339 or date-only "since" query value.
func sinceParam(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := cvt.TimeE(raw)
	if err != nil {
		return time.Time{}, validation.Field("since", "invalid_format")
	}
	return t, nil
}
