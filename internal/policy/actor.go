// Package policy resolves the authenticated user into the subject the
// permission gate decides on, and enforces the gate at the HTTP edge.
package policy

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/diewo77/go-archive/internal/models"
	"github.com/diewo77/go-archive/internal/permission"
)

// ErrUnknownUser is returned when a token references a user that is gone.
var ErrUnknownUser = errors.New("user not found")

// Actor is the caller of a service operation.
type Actor struct {
	UserID  uint
	Name    string
	Role    models.Role
	Tenant  models.Tenant
	Subject permission.Subject
}

// Platform reports whether the actor works across every tenant.
func (a Actor) Platform() bool {
	return a.Role == models.RoleAdmin || (a.Role == models.RoleOwner && a.Tenant.CompanyID == nil)
}

// IsClient reports whether the actor acts for a client.
func (a Actor) IsClient() bool {
	return a.Role == models.RoleClient
}

// platformFlags are the flags of actors without a plan of their own.
var platformFlags = models.PlanFlags{
	CanShareDocument:     true,
	CanViewActivityLogs:  true,
	CanViewChat:          true,
	CanViewReports:       true,
	AllowMultipleUploads: true,
}

// ActorStore loads actors from the database.
type ActorStore struct {
	db *gorm.DB
}

func NewActorStore(db *gorm.DB) *ActorStore {
	return &ActorStore{db: db}
}

// Resolve builds the actor of a user: its role, the flags of the plan its
// company or client subscribes to and, for owners, the current client count.
func (s *ActorStore) Resolve(ctx context.Context, userID uint) (Actor, error) {
	db := s.db.WithContext(ctx)
	var u models.User
	if err := db.First(&u, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Actor{}, ErrUnknownUser
		}
		return Actor{}, fmt.Errorf("load user %d: %w", userID, err)
	}

	a := Actor{UserID: u.ID, Name: u.Name, Role: u.Role, Tenant: u.Tenant}
	subject := permission.Subject{UserID: u.ID, Role: u.Role, CreateDispute: u.CreateDispute}

	switch {
	case a.Platform():
		subject.Plan = platformFlags
	case u.Role == models.RoleClient && u.ClientID != nil:
		var c models.Client
		if err := db.Preload("ClientPlan").First(&c, *u.ClientID).Error; err != nil {
			return Actor{}, fmt.Errorf("load client %d: %w", *u.ClientID, err)
		}
		if c.ClientPlan != nil {
			subject.Plan = c.ClientPlan.PlanFlags
		}
	case u.CompanyID != nil:
		var c models.Company
		if err := db.Preload("Plan").First(&c, *u.CompanyID).Error; err != nil {
			return Actor{}, fmt.Errorf("load company %d: %w", *u.CompanyID, err)
		}
		if c.Plan != nil {
			subject.Plan = c.Plan.PlanFlags
		}
		if u.Role == models.RoleOwner {
			var n int64
			if err := db.Model(&models.Client{}).Where("company_id = ?", c.ID).Count(&n).Error; err != nil {
				return Actor{}, err
			}
			subject.ClientCount = int(n)
		}
	}
	a.Subject = subject
	return a, nil
}
