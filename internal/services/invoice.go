package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/diewo77/go-archive/internal/billing"
	"github.com/diewo77/go-archive/internal/models"
	"github.com/diewo77/go-archive/internal/permission"
	"github.com/diewo77/go-archive/internal/policy"
	"github.com/diewo77/go-archive/validation"
)

const monthLayout = "2006-01"

// InvoiceService generates monthly invoices from usage and drives their
// submit and verify lifecycle.
type InvoiceService struct {
	*core
}

// GenerateInput selects the payer and month. CompanyID is required from
// platform actors for company invoices; ClientID for client invoices.
type GenerateInput struct {
	CompanyID uint   `json:"company_id,omitempty"`
	ClientID  uint   `json:"client_id,omitempty"`
	Month     string `json:"invoice_month,omitempty"`
}

// InvoiceFilter narrows List.
type InvoiceFilter struct {
	Month     string
	Submitted *bool
	Verified  *bool
	Page
}

// ItemInput is one custom line.
type ItemInput struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
}

// ItemsInput replaces the custom lines of an invoice.
type ItemsInput struct {
	Items           []ItemInput     `json:"items"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TaxPercent      decimal.Decimal `json:"tax_percent"`
}

// billable is a subscriber about to be invoiced.
type billable struct {
	tenant  models.Tenant
	usage   models.Usage
	pricing billing.Pricing
}

func (s *InvoiceService) payer(tx *gorm.DB, a policy.Actor, kind models.InvoiceKind, in GenerateInput) (billable, error) {
	switch kind {
	case models.InvoiceKindCompany:
		id := in.CompanyID
		if !a.Platform() {
			if a.Tenant.CompanyID == nil {
				return billable{}, gorm.ErrRecordNotFound
			}
			id = *a.Tenant.CompanyID
		}
		if id == 0 {
			return billable{}, validation.Field("company_id", "required")
		}
		var c models.Company
		if err := tx.Preload("Plan").First(&c, id).Error; err != nil {
			return billable{}, err
		}
		b := billable{tenant: models.Tenant{CompanyID: &c.ID}, usage: c.Usage}
		if c.Plan != nil {
			b.pricing = c.Plan.Pricing()
		}
		return b, nil
	case models.InvoiceKindClient:
		id := in.ClientID
		if a.IsClient() && a.Tenant.ClientID != nil {
			id = *a.Tenant.ClientID
		}
		if id == 0 {
			return billable{}, validation.Field("client_id", "required")
		}
		q := tx
		if !a.Platform() && !a.IsClient() {
			q = scoped(tx, a)
		}
		var c models.Client
		if err := q.Preload("ClientPlan").First(&c, id).Error; err != nil {
			return billable{}, err
		}
		b := billable{tenant: models.Tenant{CompanyID: &c.CompanyID, ClientID: &c.ID}, usage: c.Usage}
		if c.ClientPlan != nil {
			b.pricing = c.ClientPlan.Pricing()
		}
		return b, nil
	default:
		return billable{}, validation.Field("kind", "invalid_choice")
	}
}

func tenantWhere(db *gorm.DB, kind models.InvoiceKind, t models.Tenant) *gorm.DB {
	db = db.Where("kind = ?", kind)
	if kind == models.InvoiceKindClient && t.ClientID != nil {
		return db.Where("client_id = ?", *t.ClientID)
	}
	return db.Where("company_id = ? AND client_id IS NULL", *t.CompanyID)
}

// unbilled is the usage not covered by earlier invoices of the same payer.
func unbilled(tx *gorm.DB, kind models.InvoiceKind, b billable) (billing.Usage, error) {
	var billed struct {
		Uploads   int64
		Downloads int64
		Shares    int64
	}
	err := tenantWhere(tx.Model(&models.Invoice{}), kind, b.tenant).
		Select("COALESCE(SUM(uploads), 0) AS uploads, COALESCE(SUM(downloads), 0) AS downloads, COALESCE(SUM(shares), 0) AS shares").
		Scan(&billed).Error
	if err != nil {
		return billing.Usage{}, err
	}
	return billing.Usage{
		Uploads:   max(b.usage.DocumentsUploaded-billed.Uploads, 0),
		Downloads: max(b.usage.DocumentsDownloaded-billed.Downloads, 0),
		Shares:    max(b.usage.DocumentsShared-billed.Shares, 0),
	}, nil
}

// Generate bills the payer's usage since its previous invoice for month.
// One invoice per payer and month.
func (s *InvoiceService) Generate(ctx context.Context, a policy.Actor, kind models.InvoiceKind, in GenerateInput) (models.Invoice, error) {
	if err := s.authorize(ctx, a, permission.GenerateInvoice, nil); err != nil {
		return models.Invoice{}, err
	}
	if in.Month == "" {
		in.Month = s.now().Format(monthLayout)
	}
	if _, err := time.Parse(monthLayout, in.Month); err != nil {
		return models.Invoice{}, validation.Field("invoice_month", "invalid_format")
	}

	var inv models.Invoice
	err := s.tx(ctx, func(tx *gorm.DB) error {
		b, err := s.payer(tx, a, kind, in)
		if err != nil {
			return err
		}
		var n int64
		if err := tenantWhere(tx.Model(&models.Invoice{}), kind, b.tenant).Where("invoice_month = ?", in.Month).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return conflictf("invoice_exists", "an invoice for %s already exists", in.Month)
		}
		usage, err := unbilled(tx, kind, b)
		if err != nil {
			return err
		}
		charge, err := billing.ComputeMonthlyCharge(b.pricing, usage)
		if err != nil {
			return err
		}
		inv = models.Invoice{
			Kind:         kind,
			Tenant:       b.tenant,
			InvoiceMonth: in.Month,
			Uploads:      usage.Uploads,
			Downloads:    usage.Downloads,
			Shares:       usage.Shares,
		}
		inv.ApplyCharge(charge)
		if err := tx.Create(&inv).Error; err != nil {
			return err
		}
		return record(tx, a, "invoice.generate", "invoice", inv.ID, inv.Tenant, map[string]any{
			"kind":  string(kind),
			"month": in.Month,
			"total": inv.Total.StringFixed(billing.Cents),
		})
	})
	return inv, err
}

func (s *InvoiceService) query(db *gorm.DB, a policy.Actor, kind models.InvoiceKind) *gorm.DB {
	return scoped(db.Model(&models.Invoice{}), a).Where("kind = ?", kind)
}

// List returns the visible invoices of kind, newest month first.
func (s *InvoiceService) List(ctx context.Context, a policy.Actor, kind models.InvoiceKind, f InvoiceFilter) ([]models.Invoice, int64, error) {
	if err := s.authorize(ctx, a, permission.ViewInvoices, nil); err != nil {
		return nil, 0, err
	}
	q := s.query(s.db.WithContext(ctx), a, kind)
	if f.Month != "" {
		q = q.Where("invoice_month = ?", f.Month)
	}
	if f.Submitted != nil {
		q = q.Where("invoice_submitted = ?", *f.Submitted)
	}
	if f.Verified != nil {
		q = q.Where("invoice_submitted_admin = ?", *f.Verified)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []models.Invoice
	err := f.apply(q).Order("invoice_month DESC, id DESC").Find(&out).Error
	return out, total, err
}

func (s *InvoiceService) load(db *gorm.DB, a policy.Actor, kind models.InvoiceKind, id uint) (models.Invoice, error) {
	var inv models.Invoice
	err := s.query(db, a, kind).
		Preload("CustomItems", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		First(&inv, id).Error
	return inv, err
}

// Get returns one visible invoice with its custom items.
func (s *InvoiceService) Get(ctx context.Context, a policy.Actor, kind models.InvoiceKind, id uint) (models.Invoice, error) {
	if err := s.authorize(ctx, a, permission.ViewInvoices, nil); err != nil {
		return models.Invoice{}, err
	}
	return s.load(s.db.WithContext(ctx), a, kind, id)
}

// SetItems replaces the custom items, discount and tax. Without items the
// invoice falls back to its usage charge.
func (s *InvoiceService) SetItems(ctx context.Context, a policy.Actor, kind models.InvoiceKind, id uint, in ItemsInput) (models.Invoice, error) {
	v := make(validation.Violations)
	lines := make([]billing.LineItem, len(in.Items))
	for i, it := range in.Items {
		it.Description = strings.TrimSpace(it.Description)
		validation.Required(fmt.Sprintf("items[%d].description", i), it.Description, v)
		lines[i] = billing.LineItem{Description: it.Description, Quantity: it.Quantity, Rate: it.Rate}
	}
	totals, err := billing.ComputeCustomInvoiceTotal(lines, in.DiscountPercent, in.TaxPercent)
	var verr *validation.Error
	if errors.As(err, &verr) {
		for field, code := range verr.Violations {
			v.Add(field, code)
		}
	} else if err != nil {
		return models.Invoice{}, err
	}
	if err := v.Err(); err != nil {
		return models.Invoice{}, err
	}

	var inv models.Invoice
	err = s.tx(ctx, func(tx *gorm.DB) error {
		var err error
		if inv, err = s.load(tx, a, kind, id); err != nil {
			return err
		}
		if err := s.authorize(ctx, a, permission.EditInvoice, &inv); err != nil {
			return err
		}
		if err := tx.Where("invoice_id = ?", inv.ID).Delete(&models.InvoiceItem{}).Error; err != nil {
			return err
		}
		items := make([]models.InvoiceItem, len(lines))
		for i, l := range lines {
			items[i] = models.InvoiceItem{InvoiceID: inv.ID, Description: l.Description, Quantity: l.Quantity, Rate: l.Rate, Position: i}
			if err := tx.Create(&items[i]).Error; err != nil {
				return err
			}
		}
		inv.CustomItems = items
		if len(items) == 0 {
			inv.ApplyCharge(billing.MonthlyCharge{
				Base:     inv.BaseCharge,
				Upload:   inv.UploadCharge,
				Download: inv.DownloadCharge,
				Share:    inv.ShareCharge,
				Total:    inv.BaseCharge.Add(inv.UploadCharge).Add(inv.DownloadCharge).Add(inv.ShareCharge),
			})
			inv.DiscountPercent = decimal.Zero
			inv.TaxPercent = decimal.Zero
		} else {
			inv.ApplyTotals(totals, in.DiscountPercent, in.TaxPercent)
		}
		if err := tx.Omit(clause.Associations).Save(&inv).Error; err != nil {
			return err
		}
		return record(tx, a, "invoice.items", "invoice", inv.ID, inv.Tenant, map[string]any{
			"items": len(items),
			"total": inv.Total.StringFixed(billing.Cents),
		})
	})
	return inv, translate(err)
}

// transition loads an invoice, checks action against it and saves fn's changes.
func (s *InvoiceService) transition(ctx context.Context, a policy.Actor, kind models.InvoiceKind, id uint, action string, check func(*models.Invoice) error, fn func(*models.Invoice)) (models.Invoice, error) {
	var inv models.Invoice
	err := s.tx(ctx, func(tx *gorm.DB) error {
		var err error
		if inv, err = s.load(tx, a, kind, id); err != nil {
			return err
		}
		if err := check(&inv); err != nil {
			return err
		}
		fn(&inv)
		if err := tx.Omit(clause.Associations).Save(&inv).Error; err != nil {
			return err
		}
		return record(tx, a, action, "invoice", inv.ID, inv.Tenant, map[string]any{"month": inv.InvoiceMonth})
	})
	return inv, translate(err)
}

// Submit marks an invoice as submitted by its payer side.
func (s *InvoiceService) Submit(ctx context.Context, a policy.Actor, kind models.InvoiceKind, id uint) (models.Invoice, error) {
	return s.transition(ctx, a, kind, id, "invoice.submit",
		func(inv *models.Invoice) error { return s.authorize(ctx, a, permission.SubmitInvoice, inv) },
		func(inv *models.Invoice) {
			now := s.now()
			inv.InvoiceSubmitted = true
			inv.SubmittedAt = &now
			inv.SubmittedByID = &a.UserID
		})
}

// Verify is the second approval. The invoice is immutable afterwards.
func (s *InvoiceService) Verify(ctx context.Context, a policy.Actor, kind models.InvoiceKind, id uint) (models.Invoice, error) {
	inv, err := s.transition(ctx, a, kind, id, "invoice.verify",
		func(inv *models.Invoice) error { return s.authorize(ctx, a, permission.VerifyInvoice, inv) },
		func(inv *models.Invoice) {
			now := s.now()
			inv.InvoiceSubmittedAdmin = true
			inv.VerifiedAt = &now
			inv.VerifiedByID = &a.UserID
		})
	if err == nil && s.metrics != nil {
		s.metrics.InvoicesVerified.Inc()
	}
	return inv, err
}

// Preview computes what an invoice generated now would charge the payer.
// Clients only see their own bill, never the company's.
func (s *InvoiceService) Preview(ctx context.Context, a policy.Actor, kind models.InvoiceKind, in GenerateInput) (billing.MonthlyCharge, error) {
	if err := s.authorize(ctx, a, permission.ViewInvoices, nil); err != nil {
		return billing.MonthlyCharge{}, err
	}
	if kind == models.InvoiceKindCompany && a.IsClient() {
		return billing.MonthlyCharge{}, gateDenied(permission.ViewInvoices, "clients cannot view company invoices")
	}
	db := s.db.WithContext(ctx)
	b, err := s.payer(db, a, kind, in)
	if err != nil {
		return billing.MonthlyCharge{}, err
	}
	usage, err := unbilled(db, kind, b)
	if err != nil {
		return billing.MonthlyCharge{}, err
	}
	return billing.ComputeMonthlyCharge(b.pricing, usage)
}
