package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/go-archive/auth"
	"github.com/diewo77/go-archive/internal/models"
	"github.com/diewo77/go-archive/internal/permission"
	"github.com/diewo77/go-archive/internal/policy"
	"github.com/diewo77/go-archive/validation"
)

// UserService manages accounts and the per-user dispute flag.
type UserService struct {
	*core
}

// UserInput creates a user. CompanyID is read from platform actors only.
type UserInput struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	CompanyID *uint  `json:"company_id,omitempty"`
	ClientID  *uint  `json:"client_id,omitempty"`
}

// Authenticate checks an email and password pair.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, err
	}
	if !auth.CheckPassword(u.Password, password) {
		return models.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// Exists reports whether a user id is still valid.
func (s *UserService) Exists(ctx context.Context, id uint) bool {
	var n int64
	s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&n)
	return n > 0
}

func (s *UserService) scope(db *gorm.DB, a policy.Actor) *gorm.DB {
	if a.Platform() {
		return db
	}
	if a.Tenant.CompanyID == nil {
		return db.Where("1 = 0")
	}
	return db.Where("company_id = ?", *a.Tenant.CompanyID)
}

func (s *UserService) List(ctx context.Context, a policy.Actor, p Page) ([]models.User, error) {
	if err := s.authorize(ctx, a, permission.ManageUsers, nil); err != nil {
		return nil, err
	}
	var out []models.User
	err := p.apply(s.scope(s.db.WithContext(ctx), a)).Order("email").Find(&out).Error
	return out, err
}

// Create adds a user. Company owners create staff and client users of their
// own company; only platform actors create admins and owners.
func (s *UserService) Create(ctx context.Context, a policy.Actor, in UserInput) (models.User, error) {
	if err := s.authorize(ctx, a, permission.ManageUsers, nil); err != nil {
		return models.User{}, err
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	v := make(validation.Violations)
	validation.Required("email", in.Email, v)
	if in.Email != "" && !strings.Contains(in.Email, "@") {
		v.Add("email", "invalid_format")
	}
	if len(in.Password) < 8 {
		v.Add("password", "too_short")
	}
	validation.OneOf("role", in.Role, models.RoleNames(), v)
	role := models.Role(in.Role)

	tenant := models.Tenant{CompanyID: in.CompanyID, ClientID: in.ClientID}
	if !a.Platform() {
		if role == models.RoleAdmin || role == models.RoleOwner {
			return models.User{}, gateDenied(permission.ManageUsers, "only platform staff can create admins and owners")
		}
		tenant.CompanyID = a.Tenant.CompanyID
	}
	if role == models.RoleClient && tenant.ClientID == nil {
		v.Add("client_id", "required")
	}
	switch role {
	case models.RoleManager, models.RoleScanner, models.RoleIndexer, models.RoleQA:
		if tenant.CompanyID == nil {
			v.Add("company_id", "required")
		}
	}
	if err := v.Err(); err != nil {
		return models.User{}, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return models.User{}, err
	}
	u := models.User{
		Email:         in.Email,
		Name:          strings.TrimSpace(in.Name),
		Password:      hash,
		Role:          role,
		Tenant:        tenant,
		CreateDispute: role.DefaultCreateDispute(),
	}
	err = s.tx(ctx, func(tx *gorm.DB) error {
		if tenant.ClientID != nil {
			var c models.Client
			if err := tx.First(&c, *tenant.ClientID).Error; err != nil {
				return validation.Field("client_id", "not_found")
			}
			if tenant.CompanyID != nil && *tenant.CompanyID != c.CompanyID {
				return validation.Field("client_id", "not_found")
			}
			u.CompanyID = &c.CompanyID
		}
		var n int64
		if err := tx.Model(&models.User{}).Where("email = ?", u.Email).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return validation.Field("email", "already_exists")
		}
		if err := tx.Create(&u).Error; err != nil {
			return err
		}
		return record(tx, a, "user.create", "user", u.ID, u.Tenant, map[string]any{"role": string(u.Role)})
	})
	return u, err
}

// SetCreateDispute toggles a user's right to raise disputes. The manager's
// flag is fixed.
func (s *UserService) SetCreateDispute(ctx context.Context, a policy.Actor, id uint, enabled bool) (models.User, error) {
	if err := s.authorize(ctx, a, permission.ManageUsers, nil); err != nil {
		return models.User{}, err
	}
	var u models.User
	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := s.scope(tx, a).First(&u, id).Error; err != nil {
			return err
		}
		if u.Role.CreateDisputeLocked() && !enabled {
			return conflictf("create_dispute_locked", "the %s role always may create disputes", u.Role)
		}
		u.CreateDispute = enabled
		if err := tx.Save(&u).Error; err != nil {
			return err
		}
		return record(tx, a, "user.create_dispute", "user", u.ID, u.Tenant, map[string]any{"enabled": enabled})
	})
	if err == nil {
		s.gate.Invalidate(id)
	}
	return u, err
}
