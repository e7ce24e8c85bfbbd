package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/diewo77/go-archive/internal/billing"
)

// ErrInvoiceImmutable is returned by any write to an invoice, or its items,
// after the admin-side verification.
var ErrInvoiceImmutable = errors.New("invoice is verified and can no longer change")

// InvoiceKind tells who pays an invoice.
type InvoiceKind string

const (
	// InvoiceKindCompany is billed by the platform to a company.
	InvoiceKindCompany InvoiceKind = "company"
	// InvoiceKindClient is billed by a company to one of its clients.
	InvoiceKindClient InvoiceKind = "client"
)

// Invoice is a monthly bill. Usage-based fields are filled at generation;
// custom items, when present, replace the usage total.
type Invoice struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Kind InvoiceKind `gorm:"size:20;not null;index" json:"kind"`
	Tenant
	InvoiceMonth string `gorm:"size:7;not null;index" json:"invoice_month"`

	Uploads        int64           `gorm:"not null;default:0" json:"uploads"`
	Downloads      int64           `gorm:"not null;default:0" json:"downloads"`
	Shares         int64           `gorm:"not null;default:0" json:"shares"`
	BaseCharge     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"base_charge"`
	UploadCharge   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"upload_charge"`
	DownloadCharge decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"download_charge"`
	ShareCharge    decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"share_charge"`

	Subtotal        decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"subtotal"`
	DiscountPercent decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0" json:"discount_percent"`
	Discount        decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"discount"`
	TaxPercent      decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0" json:"tax_percent"`
	Tax             decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"tax"`
	Total           decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"total"`

	InvoiceSubmitted      bool       `gorm:"not null;default:false" json:"invoice_submitted"`
	InvoiceSubmittedAdmin bool       `gorm:"not null;default:false" json:"invoice_submitted_admin"`
	SubmittedAt           *time.Time `json:"submitted_at,omitempty"`
	SubmittedByID         *uint      `json:"submitted_by_id,omitempty"`
	VerifiedAt            *time.Time `json:"verified_at,omitempty"`
	VerifiedByID          *uint      `json:"verified_by_id,omitempty"`

	CustomItems []InvoiceItem `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"custom_items,omitempty"`
}

// CanEdit reports whether items, discount or tax may still change.
func (i *Invoice) CanEdit() bool {
	return !i.InvoiceSubmittedAdmin
}

// IsCustom reports whether the total comes from custom items.
func (i *Invoice) IsCustom() bool {
	return len(i.CustomItems) > 0
}

// ApplyCharge copies a usage breakdown onto the invoice.
func (i *Invoice) ApplyCharge(c billing.MonthlyCharge) {
	i.BaseCharge = c.Base
	i.UploadCharge = c.Upload
	i.DownloadCharge = c.Download
	i.ShareCharge = c.Share
	i.Subtotal = c.Total
	i.Discount = decimal.Zero
	i.Tax = decimal.Zero
	i.Total = c.Total
}

// ApplyTotals copies custom invoice totals onto the invoice.
func (i *Invoice) ApplyTotals(t billing.Totals, discountPercent, taxPercent decimal.Decimal) {
	i.Subtotal = t.Subtotal
	i.DiscountPercent = discountPercent
	i.Discount = t.Discount
	i.TaxPercent = taxPercent
	i.Tax = t.Tax
	i.Total = t.Total
}

// LineItems converts the stored items for the billing package.
func (i *Invoice) LineItems() []billing.LineItem {
	out := make([]billing.LineItem, len(i.CustomItems))
	for n, it := range i.CustomItems {
		out[n] = billing.LineItem{Description: it.Description, Quantity: it.Quantity, Rate: it.Rate}
	}
	return out
}

// BeforeUpdate refuses to touch a row that is already verified.
func (i *Invoice) BeforeUpdate(tx *gorm.DB) error {
	if i.ID == 0 {
		return nil
	}
	return guardVerified(tx, i.ID)
}

// BeforeDelete refuses to delete a verified invoice.
func (i *Invoice) BeforeDelete(tx *gorm.DB) error {
	if i.ID == 0 {
		return nil
	}
	return guardVerified(tx, i.ID)
}

// InvoiceItem is a custom line of an invoice.
type InvoiceItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	InvoiceID   uint            `gorm:"index;not null" json:"invoice_id"`
	Description string          `gorm:"size:500;not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:numeric(12,3);not null" json:"quantity"`
	Rate        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"rate"`
	Amount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Position    int             `gorm:"default:0" json:"position"`
}

// BeforeSave keeps Amount in sync and blocks writes under a verified invoice.
func (it *InvoiceItem) BeforeSave(tx *gorm.DB) error {
	it.Amount = billing.LineItem{Quantity: it.Quantity, Rate: it.Rate}.Amount()
	return guardVerified(tx, it.InvoiceID)
}

// BeforeDelete blocks deleting items of a verified invoice.
func (it *InvoiceItem) BeforeDelete(tx *gorm.DB) error {
	if it.InvoiceID == 0 {
		return nil
	}
	return guardVerified(tx, it.InvoiceID)
}

func guardVerified(tx *gorm.DB, invoiceID uint) error {
	var n int64
	err := tx.Session(&gorm.Session{NewDB: true}).
		Model(&Invoice{}).
		Where("id = ? AND invoice_submitted_admin = ?", invoiceID, true).
		Count(&n).Error
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrInvoiceImmutable
	}
	return nil
}
