package gate

import "strings"

// Wildcard matches any resource or any verb inside a Permission.
const Wildcard = "*"

// PermissionAll grants every action.
const PermissionAll Permission = "*:*"

// Permission is a grant pattern in "resource:verb" form. Either side may be "*".
type Permission string

// Allows reports whether the pattern covers the requested action.
func (p Permission) Allows(a Action) bool {
	if p == PermissionAll || string(p) == string(a) {
		return true
	}
	res, verb, ok := strings.Cut(string(p), ":")
	if !ok {
		return false
	}
	if res != Wildcard && res != a.Resource() {
		return false
	}
	return verb == Wildcard || verb == a.Verb()
}

// PermissionSet is an unordered collection of grants.
type PermissionSet []Permission

// Allows reports whether any grant in the set covers the action.
func (s PermissionSet) Allows(a Action) bool {
	for _, p := range s {
		if p.Allows(a) {
			return true
		}
	}
	return false
}
