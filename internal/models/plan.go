package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/diewo77/go-archive/internal/billing"
)

// PlanFlags are the feature switches and the client limit the permission
// gate reads. It is a comparable value.
type PlanFlags struct {
	CanShareDocument     bool `gorm:"not null;default:false" json:"can_share_document"`
	CanViewActivityLogs  bool `gorm:"not null;default:false" json:"can_view_activity_logs"`
	CanViewChat          bool `gorm:"not null;default:false" json:"can_view_chat"`
	CanViewReports       bool `gorm:"not null;default:false" json:"can_view_reports"`
	AllowMultipleUploads bool `gorm:"not null;default:false" json:"allow_multiple_uploads"`
	CanAddClient         bool `gorm:"not null;default:false" json:"can_add_client"`
	NumberOfClients      int  `gorm:"not null;default:0" json:"number_of_clients"`
}

// PlanTerms is shared by company plans and client plans.
type PlanTerms struct {
	Name string `gorm:"size:120;not null" json:"name"`
	PlanFlags

	TotalUsers      int `gorm:"not null;default:0" json:"total_users"`
	StorageLimitGB  int `gorm:"column:storage_limit_gb;not null;default:0" json:"storage_limit_gb"`
	DocsUploadLimit int `gorm:"not null;default:0" json:"docs_upload_limit"`

	PriceDescription string          `gorm:"size:255" json:"price_description,omitempty"`
	MonthlyBill      decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"monthly_bill"`
	BillingDuration  int             `gorm:"not null;default:1" json:"billing_duration"`

	UploadPricePerUnit   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"upload_price_per_unit"`
	UploadUnitCount      int64           `gorm:"not null;default:0" json:"upload_unit_count"`
	DownloadPricePerUnit decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"download_price_per_unit"`
	DownloadUnitCount    int64           `gorm:"not null;default:0" json:"download_unit_count"`
	SharePricePerUnit    decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"share_price_per_unit"`
	ShareUnitCount       int64           `gorm:"not null;default:0" json:"share_unit_count"`
}

// Pricing extracts the billing inputs.
func (t PlanTerms) Pricing() billing.Pricing {
	return billing.Pricing{
		MonthlyBill:      t.MonthlyBill,
		PriceDescription: t.PriceDescription,
		Upload:           billing.Tier{PricePerUnit: t.UploadPricePerUnit, UnitCount: t.UploadUnitCount},
		Download:         billing.Tier{PricePerUnit: t.DownloadPricePerUnit, UnitCount: t.DownloadUnitCount},
		Share:            billing.Tier{PricePerUnit: t.SharePricePerUnit, UnitCount: t.ShareUnitCount},
	}
}

// Plan is a company-level subscription created by an admin or owner.
type Plan struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	PlanTerms
}

// ClientPlan is a plan a company offers to its own clients.
type ClientPlan struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	CompanyID uint           `gorm:"index;not null" json:"company_id"`
	PlanTerms
}
