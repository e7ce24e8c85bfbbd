package gate

import "context"

// Profile is a named set of grants, typically one per role.
type Profile interface {
	Name() string
	Grants() PermissionSet
}

// Resolver loads a value for a key. Profiles are resolved per subject; the
// same interface backs CachedResolver.
type Resolver[K any, V any] interface {
	Resolve(ctx context.Context, key K) (V, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc[K any, V any] func(ctx context.Context, key K) (V, error)

func (f ResolverFunc[K, V]) Resolve(ctx context.Context, key K) (V, error) { return f(ctx, key) }

// StaticProfile is an in-memory Profile.
type StaticProfile struct {
	name   string
	grants PermissionSet
}

// NewStaticProfile builds a profile from a name and its grants.
func NewStaticProfile(name string, grants ...Permission) *StaticProfile {
	return &StaticProfile{name: name, grants: grants}
}

func (p *StaticProfile) Name() string          { return p.name }
func (p *StaticProfile) Grants() PermissionSet { return p.grants }
