package gate

import "strings"

// Action names an operation as "resource:verb" (for example "dispute:resolve").
// The same shape is used for grants, which may contain wildcards.
type Action string

// Resource returns the part before the colon, or "" when the action is malformed.
func (a Action) Resource() string {
	res, _, ok := strings.Cut(string(a), ":")
	if !ok {
		return ""
	}
	return res
}

// Verb returns the part after the colon, or "" when the action is malformed.
func (a Action) Verb() string {
	_, verb, ok := strings.Cut(string(a), ":")
	if !ok {
		return ""
	}
	return verb
}
