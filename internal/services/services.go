// Package services holds the archive's use cases. Every operation takes the
// calling policy.Actor, re-checks the permission gate against the record it
// touches, scopes queries to the actor's tenant and records activity.
package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/diewo77/go-archive/gate"
	"github.com/diewo77/go-archive/internal/metrics"
	"github.com/diewo77/go-archive/internal/models"
	"github.com/diewo77/go-archive/internal/policy"
	"github.com/diewo77/go-archive/internal/storage"
)

// Deps are shared by every service. Store, Metrics and Now are optional.
type Deps struct {
	DB      *gorm.DB
	Gate    *policy.AuthGate
	Log     logrus.FieldLogger
	Metrics *metrics.Metrics
	Store   storage.FileStore
	Now     func() time.Time
}

// Services bundles the use cases.
type Services struct {
	Activity    *ActivityService
	Documents   *DocumentService
	Plans       *PlanService
	ClientPlans *ClientPlanService
	Companies   *CompanyService
	Clients     *ClientService
	Invoices    *InvoiceService
	Disputes    *DisputeService
	Users       *UserService
	Reports     *ReportService
}

// New builds every service over d.
func New(d Deps) *Services {
	c := newCore(d)
	return &Services{
		Activity:    &ActivityService{core: c},
		Documents:   &DocumentService{core: c},
		Plans:       &PlanService{core: c},
		ClientPlans: &ClientPlanService{core: c},
		Companies:   &CompanyService{core: c},
		Clients:     &ClientService{core: c},
		Invoices:    &InvoiceService{core: c},
		Disputes:    &DisputeService{core: c},
		Users:       &UserService{core: c},
		Reports:     &ReportService{core: c},
	}
}

type core struct {
	db      *gorm.DB
	gate    *policy.AuthGate
	log     logrus.FieldLogger
	metrics *metrics.Metrics
	store   storage.FileStore
	now     func() time.Time
}

func newCore(d Deps) *core {
	c := &core{db: d.DB, gate: d.Gate, log: d.Log, metrics: d.Metrics, store: d.Store, now: d.Now}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	if c.store == nil {
		c.store = storage.Disabled{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

func (c *core) authorize(ctx context.Context, a policy.Actor, action gate.Action, resource any) error {
	return c.gate.Authorize(ctx, a, action, resource)
}

// invalidateCompany drops the cached actors of every user of a company.
func (c *core) invalidateCompany(ctx context.Context, companyID uint) {
	var ids []uint
	err := c.db.WithContext(ctx).Model(&models.User{}).Where("company_id = ?", companyID).Pluck("id", &ids).Error
	if err != nil {
		c.log.WithError(err).WithField("company_id", companyID).Warn("dropping every cached actor")
		c.gate.InvalidateAll()
		return
	}
	for _, id := range ids {
		c.gate.Invalidate(id)
	}
}

// tx runs fn in a transaction bound to ctx.
func (c *core) tx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.db.WithContext(ctx).Transaction(fn)
}

// scoped restricts a query on a tenant-owned table to what a may see.
func scoped(db *gorm.DB, a policy.Actor) *gorm.DB {
	switch {
	case a.Platform():
		return db
	case a.IsClient():
		if a.Tenant.ClientID == nil {
			return db.Where("1 = 0")
		}
		return db.Where("client_id = ?", *a.Tenant.ClientID)
	case a.Tenant.CompanyID != nil:
		return db.Where("company_id = ?", *a.Tenant.CompanyID)
	default:
		return db.Where("1 = 0")
	}
}

// record appends an activity log row inside tx.
func record(tx *gorm.DB, a policy.Actor, action, entityType string, entityID uint, tenant models.Tenant, details map[string]any) error {
	entry := models.ActivityLog{
		UserID:     a.UserID,
		UserName:   a.Name,
		Role:       a.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Tenant:     tenant,
	}
	if len(details) > 0 {
		entry.Details = datatypes.JSONMap(details)
	}
	return tx.Create(&entry).Error
}

// bumpUsage increments a usage counter on the company and, when set, the
// client of tenant.
func bumpUsage(tx *gorm.DB, tenant models.Tenant, column string) error {
	if tenant.CompanyID != nil {
		if err := tx.Model(&models.Company{}).Where("id = ?", *tenant.CompanyID).
			UpdateColumn(column, gorm.Expr(column+" + ?", 1)).Error; err != nil {
			return err
		}
	}
	if tenant.ClientID != nil {
		if err := tx.Model(&models.Client{}).Where("id = ?", *tenant.ClientID).
			UpdateColumn(column, gorm.Expr(column+" + ?", 1)).Error; err != nil {
			return err
		}
	}
	return nil
}

// Page bounds a list query.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) apply(db *gorm.DB) *gorm.DB {
	if p.Limit > 0 {
		db = db.Limit(p.Limit)
	}
	if p.Offset > 0 {
		db = db.Offset(p.Offset)
	}
	return db
}
