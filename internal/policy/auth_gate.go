package policy

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/diewo77/go-archive/auth"
	"github.com/diewo77/go-archive/gate"
	"github.com/diewo77/go-archive/httpx"
	"github.com/diewo77/go-archive/internal/metrics"
	"github.com/diewo77/go-archive/internal/permission"
)

type ctxKey struct{}

// WithActor stores a resolved actor in ctx.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// ActorFromContext returns the actor stored by AuthGate.Require.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(Actor)
	return a, ok && a.UserID != 0
}

// AuthGate puts the permission gate in front of handlers. Actors are cached
// per user; call Invalidate after changing a user, its plan or its clients.
type AuthGate struct {
	Gate   *permission.Gate
	Actors *gate.CachedResolver[uint, Actor]

	metrics *metrics.Metrics
	log     logrus.FieldLogger
}

// NewAuthGate builds the gate with a TTL actor cache over db.
func NewAuthGate(db *gorm.DB, ttl time.Duration, m *metrics.Metrics, log logrus.FieldLogger) *AuthGate {
	store := NewActorStore(db)
	return &AuthGate{
		Gate:    permission.New(),
		Actors:  gate.NewCachedResolver[uint, Actor](gate.ResolverFunc[uint, Actor](store.Resolve), ttl),
		metrics: m,
		log:     log,
	}
}

// Actor returns the actor of the request, resolving it from the credentials
// when the middleware has not done so yet.
func (g *AuthGate) Actor(ctx context.Context) (Actor, error) {
	if a, ok := ActorFromContext(ctx); ok {
		return a, nil
	}
	creds, ok := auth.FromContext(ctx)
	if !ok {
		return Actor{}, gate.ErrUnauthenticated
	}
	a, err := g.Actors.Resolve(ctx, creds.UserID)
	if errors.Is(err, ErrUnknownUser) {
		return Actor{}, gate.ErrUnauthenticated
	}
	return a, err
}

// Check decides action for a against resource and records the outcome.
func (g *AuthGate) Check(ctx context.Context, a Actor, action gate.Action, resource any) gate.Decision {
	d := g.Gate.Check(ctx, action, a.Subject, resource)
	if g.metrics != nil {
		g.metrics.ObserveDecision(string(action), d.Allowed)
	}
	if !d.Allowed && g.log != nil {
		g.log.WithFields(logrus.Fields{
			"user_id": a.UserID,
			"role":    a.Role,
			"action":  action,
			"reason":  d.Reason,
		}).Debug("permission denied")
	}
	return d
}

// Authorize is Check returning a *gate.DeniedError on denial.
func (g *AuthGate) Authorize(ctx context.Context, a Actor, action gate.Action, resource any) error {
	if a.UserID == 0 {
		return gate.ErrUnauthenticated
	}
	return g.Check(ctx, a, action, resource).Err(action)
}

// Require resolves the actor and rejects the request unless action is
// allowed without a specific record. Record-level checks happen in services.
func (g *AuthGate) Require(action gate.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a, err := g.Actor(r.Context())
			if err == nil {
				err = g.Authorize(r.Context(), a, action, nil)
			}
			if err != nil {
				httpx.Error(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), a)))
		})
	}
}

// Authenticated resolves the actor without checking any action.
func (g *AuthGate) Authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, err := g.Actor(r.Context())
		if err != nil {
			httpx.Error(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), a)))
	})
}

// Invalidate drops a cached actor.
func (g *AuthGate) Invalidate(userID uint) {
	g.Actors.Invalidate(userID)
}

// InvalidateAll drops every cached actor, e.g. after a plan changes.
func (g *AuthGate) InvalidateAll() {
	g.Actors.InvalidateAll()
}
