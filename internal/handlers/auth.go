package handlers

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-archive/auth"
	"github.com/diewo77/go-archive/gate"
	"github.com/diewo77/go-archive/httpx"
	"github.com/diewo77/go-archive/internal/models"
	"github.com/diewo77/go-archive/internal/permission"
	"github.com/diewo77/go-archive/internal/policy"
	"github.com/diewo77/go-archive/internal/services"
	"github.com/diewo77/go-archive/validation"
)

type AuthHandler struct {
	responder
	users   *services.UserService
	issuer  *auth.Issuer
	revoker auth.Revoker
	gate    *policy.AuthGate
}

func NewAuthHandler(users *services.UserService, issuer *auth.Issuer, revoker auth.Revoker, g *policy.AuthGate, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{responder: newResponder(log), users: users, issuer: issuer, revoker: revoker, gate: g}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

// Login exchanges credentials for a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	v := make(validation.Violations)
	validation.Required("email", req.Email, v)
	validation.Required("password", req.Password, v)
	if err := v.Err(); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.log.WithField("email", req.Email).Info("login rejected")
		h.fail(w, r, err)
		return
	}
	token, exp, err := h.issuer.Issue(auth.Credentials{
		UserID:    u.ID,
		Name:      u.Name,
		Role:      string(u.Role),
		CompanyID: u.CompanyID,
		ClientID:  u.ClientID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.gate.Invalidate(u.ID)
	httpx.JSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: exp, User: u})
}

// Logout revokes the presented token until it expires.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	creds, ok := auth.FromContext(r.Context())
	if !ok {
		h.fail(w, r, gate.ErrUnauthenticated)
		return
	}
	if h.revoker != nil {
		if err := h.revoker.Revoke(r.Context(), creds.TokenID, creds.ExpiresAt); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	httpx.NoContent(w)
}

type meResponse struct {
	UserID        uint                          `json:"user_id"`
	Name          string                        `json:"name,omitempty"`
	Role          models.Role                   `json:"role"`
	CompanyID     *uint                         `json:"company_id,omitempty"`
	ClientID      *uint                         `json:"client_id,omitempty"`
	CreateDispute bool                          `json:"create_dispute"`
	Plan          models.PlanFlags              `json:"plan"`
	ClientCount   int                           `json:"client_count"`
	Capabilities  map[gate.Action]gate.Decision `json:"capabilities"`
}

// Me describes the caller and what it may do.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	a := actorOf(r)
	httpx.JSON(w, http.StatusOK, meResponse{
		UserID:        a.UserID,
		Name:          a.Name,
		Role:          a.Role,
		CompanyID:     a.Tenant.CompanyID,
		ClientID:      a.Tenant.ClientID,
		CreateDispute: a.Subject.CreateDispute,
		Plan:          a.Subject.Plan,
		ClientCount:   a.Subject.ClientCount,
		Capabilities:  h.gate.Gate.Capabilities(r.Context(), a.Subject),
	})
}

type permissionResponse struct {
	Action      gate.Action `json:"action"`
	Allowed     bool        `json:"allowed"`
	Reason      string      `json:"reason,omitempty"`
	Explanation string      `json:"explanation,omitempty"`
}

// Permissions answers whether the caller may perform ?action=, with the
// reason and a longer explanation when it may not.
func (h *AuthHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	a := actorOf(r)
	raw := r.URL.Query().Get("action")
	if raw == "" {
		httpx.JSON(w, http.StatusOK, h.gate.Gate.Capabilities(r.Context(), a.Subject))
		return
	}
	action := gate.Action(raw)
	if !permission.Known(action) {
		h.fail(w, r, validation.Field("action", "invalid_choice"))
		return
	}
	d := h.gate.Check(r.Context(), a, action, nil)
	resp := permissionResponse{Action: action, Allowed: d.Allowed, Reason: d.Reason}
	if !d.Allowed {
		resp.Explanation = permission.Explain(action)
	}
	httpx.JSON(w, http.StatusOK, resp)
}
