// Package gate is a small authorization kernel. A Gate resolves the subject's
// Profile, checks that one of its grants covers the requested action, then
// runs the policy registered for that action, if any. Every check produces a
// Decision with a reason so callers can show why something is not allowed.
//
// The package has no dependency on domain models; S is whatever the caller
// uses to describe "who is asking" (a role plus plan flags, a user id, claims).
package gate

import "context"

// Gate is the central authorization checkpoint. The zero value of S is
// treated as an anonymous subject and always denied.
type Gate[S comparable] struct {
	profiles Resolver[S, Profile]
	policies map[Action]Policy[S]
}

// New creates a gate that looks up profiles through resolver.
func New[S comparable](profiles Resolver[S, Profile]) *Gate[S] {
	return &Gate[S]{profiles: profiles, policies: make(map[Action]Policy[S])}
}

// Register attaches a policy to an action, replacing any previous one.
func (g *Gate[S]) Register(action Action, p Policy[S]) {
	g.policies[action] = p
}

// Registered reports whether a policy is attached to action.
func (g *Gate[S]) Registered(action Action) bool {
	_, ok := g.policies[action]
	return ok
}

// Check runs the full decision for subject performing action on resource.
// resource may be nil for actions that do not target a specific record.
func (g *Gate[S]) Check(ctx context.Context, subject S, action Action, resource any) Decision {
	var zero S
	if subject == zero {
		return Deny("authentication required")
	}
	profile, err := g.profiles.Resolve(ctx, subject)
	if err != nil || profile == nil {
		return Deny("no profile for subject")
	}
	if !profile.Grants().Allows(action) {
		return Deny("role %s may not %s %s", profile.Name(), action.Verb(), action.Resource())
	}
	if p, ok := g.policies[action]; ok {
		return p.Decide(ctx, subject, action, resource)
	}
	return Allow()
}

// Can is Check reduced to a boolean.
func (g *Gate[S]) Can(ctx context.Context, subject S, action Action, resource any) bool {
	return g.Check(ctx, subject, action, resource).Allowed
}

// Authorize returns nil when allowed, ErrUnauthenticated for the zero subject
// and a *DeniedError (wrapping ErrForbidden) otherwise.
func (g *Gate[S]) Authorize(ctx context.Context, subject S, action Action, resource any) error {
	var zero S
	if subject == zero {
		return ErrUnauthenticated
	}
	return g.Check(ctx, subject, action, resource).Err(action)
}
