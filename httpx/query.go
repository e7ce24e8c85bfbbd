package httpx

import (
	"net/http"
	"strconv"

	"github.com/shockerli/cvt"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Page reads limit and offset from the query string, clamped to sane bounds.
func Page(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	limit = cvt.Int(q.Get("limit"), DefaultLimit)
	offset = cvt.Int(q.Get("offset"), 0)
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// QueryBool reads a boolean query parameter. Absent or malformed values are nil.
func QueryBool(r *http.Request, key string) *bool {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil
	}
	b, err := cvt.BoolE(raw)
	if err != nil {
		return nil
	}
	return &b
}

// PathID parses a numeric path value such as {id}.
func PathID(r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
