package gate

import "fmt"

// Decision is the outcome of an authorization check. A denied decision carries
// a human readable reason; denial is a value, never a panic or an error.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Allow returns a positive decision.
func Allow() Decision { return Decision{Allowed: true} }

// Deny returns a negative decision with a formatted reason.
func Deny(format string, args ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

// Err converts a negative decision into a *DeniedError. It returns nil when allowed.
func (d Decision) Err(action Action) error {
	if d.Allowed {
		return nil
	}
	return &DeniedError{Action: action, Reason: d.Reason}
}
