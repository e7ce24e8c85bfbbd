package services

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/diewo77/go-archive/internal/models"
	"github.com/diewo77/go-archive/internal/permission"
	"github.com/diewo77/go-archive/internal/policy"
	"github.com/diewo77/go-archive/validation"
)

// SubscriberInput creates a company or a client. PlanID references a Plan
// for companies and a ClientPlan for clients.
type SubscriberInput struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	PlanID          *uint  `json:"plan_id,omitempty"`
	StorageAssigned int    `json:"storage_assigned"`
	CompanyID       uint   `json:"company_id,omitempty"`
}

func (in *SubscriberInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	v := make(validation.Violations)
	validation.Required("name", in.Name, v)
	validation.NonNegativeInt("storage_assigned", int64(in.StorageAssigned), v)
	return v.Err()
}

func parseStatus(raw string) (models.SubscriberStatus, error) {
	v := make(validation.Violations)
	validation.OneOf("status", raw, []string{
		string(models.StatusActive), string(models.StatusPending),
		string(models.StatusCancelled), string(models.StatusFailed),
	}, v)
	return models.SubscriberStatus(raw), v.Err()
}

func illegalTransition(from, to models.SubscriberStatus) error {
	return conflictf("illegal_transition", "status cannot change from %s to %s", from, to)
}

// CompanyService manages companies.
type CompanyService struct {
	*core
}

func (s *CompanyService) scope(db *gorm.DB, a policy.Actor) *gorm.DB {
	if a.Platform() {
		return db
	}
	if a.Tenant.CompanyID == nil {
		return db.Where("1 = 0")
	}
	return db.Where("id = ?", *a.Tenant.CompanyID)
}

func (s *CompanyService) List(ctx context.Context, a policy.Actor, p Page) ([]models.Company, error) {
	if err := s.authorize(ctx, a, permission.ManageCompanies, nil); err != nil {
		return nil, err
	}
	var out []models.Company
	err := p.apply(s.scope(s.db.WithContext(ctx), a)).Preload("Plan").Order("name").Find(&out).Error
	return out, err
}

func (s *CompanyService) Get(ctx context.Context, a policy.Actor, id uint) (models.Company, error) {
	if err := s.authorize(ctx, a, permission.ManageCompanies, nil); err != nil {
		return models.Company{}, err
	}
	var c models.Company
	err := s.scope(s.db.WithContext(ctx), a).Preload("Plan").First(&c, id).Error
	return c, err
}

// Create registers a company in the pending state.
func (s *CompanyService) Create(ctx context.Context, a policy.Actor, in SubscriberInput) (models.Company, error) {
	if err := s.authorize(ctx, a, permission.ManageCompanies, nil); err != nil {
		return models.Company{}, err
	}
	if !a.Platform() {
		return models.Company{}, gateDenied(permission.ManageCompanies, "only platform staff can register companies")
	}
	if err := in.validate(); err != nil {
		return models.Company{}, err
	}
	c := models.Company{Name: in.Name, Email: in.Email, PlanID: in.PlanID, Status: models.StatusPending, StorageAssigned: in.StorageAssigned}
	err := s.tx(ctx, func(tx *gorm.DB) error {
		if in.PlanID != nil {
			if err := tx.First(&models.Plan{}, *in.PlanID).Error; err != nil {
				return validation.Field("plan_id", "not_found")
			}
		}
		if err := tx.Create(&c).Error; err != nil {
			return err
		}
		return record(tx, a, "company.create", "company", c.ID, models.Tenant{CompanyID: &c.ID}, map[string]any{"name": c.Name})
	})
	return c, err
}

// SetStatus moves a company along the subscriber state machine.
func (s *CompanyService) SetStatus(ctx context.Context, a policy.Actor, id uint, raw string) (models.Company, error) {
	if err := s.authorize(ctx, a, permission.ManageCompanies, nil); err != nil {
		return models.Company{}, err
	}
	next, err := parseStatus(raw)
	if err != nil {
		return models.Company{}, err
	}
	var c models.Company
	err = s.tx(ctx, func(tx *gorm.DB) error {
		if err := s.scope(tx, a).First(&c, id).Error; err != nil {
			return err
		}
		if !c.Status.CanTransitionTo(next) {
			return illegalTransition(c.Status, next)
		}
		prev := c.Status
		if err := tx.Model(&c).Update("status", next).Error; err != nil {
			return err
		}
		c.Status = next
		return record(tx, a, "company.status", "company", c.ID, models.Tenant{CompanyID: &c.ID}, map[string]any{"from": string(prev), "to": string(next)})
	})
	return c, err
}

// ClientService manages a company's clients.
type ClientService struct {
	*core
}

func (s *ClientService) scope(db *gorm.DB, a policy.Actor) *gorm.DB {
	if a.IsClient() {
		if a.Tenant.ClientID == nil {
			return db.Where("1 = 0")
		}
		return db.Where("id = ?", *a.Tenant.ClientID)
	}
	return scoped(db, a)
}

func (s *ClientService) List(ctx context.Context, a policy.Actor, p Page) ([]models.Client, error) {
	if err := s.authorize(ctx, a, permission.ManageClients, nil); err != nil {
		return nil, err
	}
	var out []models.Client
	err := p.apply(s.scope(s.db.WithContext(ctx), a)).Preload("ClientPlan").Order("name").Find(&out).Error
	return out, err
}

func (s *ClientService) Get(ctx context.Context, a policy.Actor, id uint) (models.Client, error) {
	if err := s.authorize(ctx, a, permission.ManageClients, nil); err != nil {
		return models.Client{}, err
	}
	var c models.Client
	err := s.scope(s.db.WithContext(ctx), a).Preload("ClientPlan").First(&c, id).Error
	return c, err
}

// Create adds a client to the owner's company. The addClient rule applies:
// owner role, plan allows clients and the client limit is not reached.
func (s *ClientService) Create(ctx context.Context, a policy.Actor, in SubscriberInput) (models.Client, error) {
	if err := s.authorize(ctx, a, permission.AddClient, nil); err != nil {
		return models.Client{}, err
	}
	cid, err := companyOf(a, in.CompanyID)
	if err != nil {
		return models.Client{}, err
	}
	if err := in.validate(); err != nil {
		return models.Client{}, err
	}
	c := models.Client{CompanyID: cid, Name: in.Name, Email: in.Email, ClientPlanID: in.PlanID, Status: models.StatusPending, StorageAssigned: in.StorageAssigned}
	err = s.tx(ctx, func(tx *gorm.DB) error {
		if in.PlanID != nil {
			if err := tx.Where("company_id = ?", cid).First(&models.ClientPlan{}, *in.PlanID).Error; err != nil {
				return validation.Field("plan_id", "not_found")
			}
		}
		if err := withinClientLimit(tx, cid); err != nil {
			return err
		}
		if err := tx.Create(&c).Error; err != nil {
			return err
		}
		return record(tx, a, "client.create", "client", c.ID, models.Tenant{CompanyID: &cid, ClientID: &c.ID}, map[string]any{"name": c.Name})
	})
	if err == nil {
		s.invalidateCompany(ctx, cid)
	}
	return c, err
}

// withinClientLimit recounts the company's clients inside tx. Cached actors
// may carry a stale count, so the gate's check alone cannot hold the limit.
func withinClientLimit(tx *gorm.DB, companyID uint) error {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var company models.Company
	if err := q.First(&company, companyID).Error; err != nil {
		return err
	}
	limit := 0
	if company.PlanID != nil {
		var plan models.Plan
		if err := tx.First(&plan, *company.PlanID).Error; err != nil {
			return err
		}
		limit = plan.NumberOfClients
	}
	var n int64
	if err := tx.Model(&models.Client{}).Where("company_id = ?", companyID).Count(&n).Error; err != nil {
		return err
	}
	if n >= int64(limit) {
		return gateDenied(permission.AddClient, fmt.Sprintf("client limit of %d reached", limit))
	}
	return nil
}

// SetStatus moves a client along the subscriber state machine.
func (s *ClientService) SetStatus(ctx context.Context, a policy.Actor, id uint, raw string) (models.Client, error) {
	if err := s.authorize(ctx, a, permission.ManageClients, nil); err != nil {
		return models.Client{}, err
	}
	next, err := parseStatus(raw)
	if err != nil {
		return models.Client{}, err
	}
	var c models.Client
	err = s.tx(ctx, func(tx *gorm.DB) error {
		if err := s.scope(tx, a).First(&c, id).Error; err != nil {
			return err
		}
		if !c.Status.CanTransitionTo(next) {
			return illegalTransition(c.Status, next)
		}
		prev := c.Status
		if err := tx.Model(&c).Update("status", next).Error; err != nil {
			return err
		}
		c.Status = next
		return record(tx, a, "client.status", "client", c.ID, models.Tenant{CompanyID: &c.CompanyID, ClientID: &c.ID}, map[string]any{"from": string(prev), "to": string(next)})
	})
	return c, err
}
