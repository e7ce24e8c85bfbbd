// Package auth turns a bearer token into the request's Credentials and keeps
// them on the context. Handlers read credentials only through FromContext.
package auth

import (
	"context"
	"net/http"
	"strings"
	"time"
)

type ctxKey string

const credentialsCtxKey = ctxKey("credentials")

// Credentials identify the caller of a request.
type Credentials struct {
	UserID    uint      `json:"user_id"`
	Name      string    `json:"name,omitempty"`
	Role      string    `json:"role"`
	CompanyID *uint     `json:"company_id,omitempty"`
	ClientID  *uint     `json:"client_id,omitempty"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

// WithCredentials stores credentials in ctx.
func WithCredentials(ctx context.Context, c Credentials) context.Context {
	return context.WithValue(ctx, credentialsCtxKey, c)
}

// FromContext extracts credentials stored by the middleware.
func FromContext(ctx context.Context) (Credentials, bool) {
	c, ok := ctx.Value(credentialsCtxKey).(Credentials)
	if !ok || c.UserID == 0 {
		return Credentials{}, false
	}
	return c, true
}

// UserVerifier is an optional check that the token's user still exists.
type UserVerifier func(ctx context.Context, uid uint) bool

// Authenticator reads bearer tokens.
type Authenticator struct {
	issuer  *Issuer
	revoker Revoker
	verify  UserVerifier
}

// NewAuthenticator builds an Authenticator. revoker and verify may be nil.
func NewAuthenticator(issuer *Issuer, revoker Revoker, verify UserVerifier) *Authenticator {
	return &Authenticator{issuer: issuer, revoker: revoker, verify: verify}
}

// BearerToken returns the token of an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Authenticate resolves the request's credentials.
func (a *Authenticator) Authenticate(r *http.Request) (Credentials, bool) {
	token, ok := BearerToken(r)
	if !ok {
		return Credentials{}, false
	}
	c, err := a.issuer.Parse(token)
	if err != nil {
		return Credentials{}, false
	}
	if a.revoker != nil {
		revoked, err := a.revoker.Revoked(r.Context(), c.TokenID)
		if err != nil || revoked {
			return Credentials{}, false
		}
	}
	if a.verify != nil && !a.verify(r.Context(), c.UserID) {
		return Credentials{}, false
	}
	return c, true
}

// Middleware attaches credentials to the request context when the token is valid.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, ok := a.Authenticate(r); ok {
			r = r.WithContext(WithCredentials(r.Context(), c))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth answers 401 when no credentials were attached.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", `Bearer realm="archive"`)
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
