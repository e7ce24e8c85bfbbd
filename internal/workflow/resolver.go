// Package workflow derives a document's status and progress from its pipeline
// markers. It never reads a stored progress or status value; those are caches
// that Audit compares against the derived result.
package workflow

import (
	"errors"
	"fmt"
)

// Status is the canonical document state shown to every role.
type Status string

const (
	StatusPending     Status = "pending"
	StatusInProgress  Status = "in_progress"
	StatusComplete    Status = "complete"
	StatusUnpublished Status = "unpublished"
)

// Progress stages. ProgressUntouched is only produced when the resolver floor is 0.
const (
	ProgressUntouched = 0
	ProgressUploaded  = 1
	ProgressRouted    = 2
	ProgressReviewed  = 3
)

// DefaultFloor is the progress of an uploaded document nobody has touched yet.
const DefaultFloor = ProgressUploaded

var ErrInvalidFloor = errors.New("workflow: progress floor must be 0 or 1")

// Markers are the pipeline fields the status is derived from.
// An empty PassedTo means the document has not been routed.
type Markers struct {
	IndexerPassed bool
	QAPassed      bool
	PassedTo      string
	Published     bool
}

// Result is the derived status and progress of a document.
type Result struct {
	Status   Status `json:"status"`
	Progress int    `json:"progress"`
}

// Resolver is a pure function of Markers parameterised by the untouched floor.
// The zero value uses a floor of 0; use NewResolver or Default for 1.
type Resolver struct {
	floor int
}

// NewResolver returns a resolver whose untouched documents report floor.
func NewResolver(floor int) (Resolver, error) {
	if floor != ProgressUntouched && floor != ProgressUploaded {
		return Resolver{}, fmt.Errorf("%w: got %d", ErrInvalidFloor, floor)
	}
	return Resolver{floor: floor}, nil
}

// Default returns a resolver with DefaultFloor.
func Default() Resolver { return Resolver{floor: DefaultFloor} }

// Floor reports the progress assigned to pending documents.
func (r Resolver) Floor() int { return r.floor }

// Resolve applies the rules in precedence order: both reviews passed, then
// routed, then pending. A QA pass without an indexer pass is not complete.
func (r Resolver) Resolve(m Markers) Result {
	switch {
	case m.IndexerPassed && m.QAPassed:
		if m.Published {
			return Result{Status: StatusComplete, Progress: ProgressReviewed}
		}
		return Result{Status: StatusUnpublished, Progress: ProgressReviewed}
	case m.PassedTo != "":
		return Result{Status: StatusInProgress, Progress: ProgressRouted}
	default:
		return Result{Status: StatusPending, Progress: r.floor}
	}
}

// InconsistentState describes a cached progress or status that disagrees with
// the derived one. It is advisory: callers log it and keep the derived value.
type InconsistentState struct {
	CachedProgress int
	CachedStatus   Status
	Derived        Result
}

func (e *InconsistentState) Error() string {
	return fmt.Sprintf("workflow: cached progress=%d status=%q, derived progress=%d status=%q",
		e.CachedProgress, e.CachedStatus, e.Derived.Progress, e.Derived.Status)
}

// Audit resolves m and compares the result with the cached values. An empty
// cachedStatus is not compared. The returned Result is always the derived one.
func (r Resolver) Audit(m Markers, cachedProgress int, cachedStatus Status) (Result, *InconsistentState) {
	res := r.Resolve(m)
	if cachedProgress == res.Progress && (cachedStatus == "" || cachedStatus == res.Status) {
		return res, nil
	}
	return res, &InconsistentState{CachedProgress: cachedProgress, CachedStatus: cachedStatus, Derived: res}
}

// ParseStatus validates a status name, e.g. from a query string.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPending, StatusInProgress, StatusComplete, StatusUnpublished:
		return st, true
	}
	return "", false
}
