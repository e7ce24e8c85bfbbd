package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/diewo77/go-archive/internal/billing"
	"github.com/diewo77/go-archive/internal/models"
	"github.com/diewo77/go-archive/internal/permission"
	"github.com/diewo77/go-archive/internal/policy"
	"github.com/diewo77/go-archive/internal/workflow"
)

// ReportService builds the dashboard summary.
type ReportService struct {
	*core
}

// Summary is the per-tenant overview.
type Summary struct {
	Documents     map[workflow.Status]int64 `json:"documents"`
	OpenDisputes  int64                     `json:"open_disputes"`
	Usage         models.Usage              `json:"usage"`
	ChargePreview *billing.MonthlyCharge    `json:"charge_preview,omitempty"`
}

// Summary counts documents per resolved status, sums usage and, for a
// company or client actor allowed to view invoices, previews the charge of
// an invoice generated now.
func (s *ReportService) Summary(ctx context.Context, a policy.Actor) (Summary, error) {
	if err := s.authorize(ctx, a, permission.ViewReports, nil); err != nil {
		return Summary{}, err
	}
	db := s.db.WithContext(ctx)
	out := Summary{Documents: make(map[workflow.Status]int64, 4)}
	for _, st := range []workflow.Status{workflow.StatusPending, workflow.StatusInProgress, workflow.StatusUnpublished, workflow.StatusComplete} {
		var n int64
		if err := withStatus(scoped(db.Model(&models.Document{}), a), st).Count(&n).Error; err != nil {
			return Summary{}, err
		}
		out.Documents[st] = n
	}
	if err := scoped(db.Model(&models.Dispute{}), a).Where("resolve = ?", false).Count(&out.OpenDisputes).Error; err != nil {
		return Summary{}, err
	}

	usage, kind, err := s.usage(db, a)
	if err != nil {
		return Summary{}, err
	}
	out.Usage = usage
	if kind != "" && s.gate.Check(ctx, a, permission.ViewInvoices, nil).Allowed {
		charge, err := (&InvoiceService{core: s.core}).Preview(ctx, a, kind, GenerateInput{})
		if err != nil {
			return Summary{}, err
		}
		out.ChargePreview = &charge
	}
	return out, nil
}

// usage sums the counters visible to a and names the invoice kind it pays.
func (s *ReportService) usage(db *gorm.DB, a policy.Actor) (models.Usage, models.InvoiceKind, error) {
	var u models.Usage
	const sums = "COALESCE(SUM(documents_uploaded), 0) AS documents_uploaded, " +
		"COALESCE(SUM(documents_downloaded), 0) AS documents_downloaded, " +
		"COALESCE(SUM(documents_shared), 0) AS documents_shared, " +
		"COALESCE(SUM(documents_scanned), 0) AS documents_scanned, " +
		"COALESCE(SUM(documents_indexed), 0) AS documents_indexed, " +
		"COALESCE(SUM(documents_qa_passed), 0) AS documents_qa_passed"
	switch {
	case a.Platform():
		err := db.Model(&models.Company{}).Select(sums).Scan(&u).Error
		return u, "", err
	case a.IsClient() && a.Tenant.ClientID != nil:
		err := db.Model(&models.Client{}).Select(sums).Where("id = ?", *a.Tenant.ClientID).Scan(&u).Error
		return u, models.InvoiceKindClient, err
	case a.Tenant.CompanyID != nil:
		err := db.Model(&models.Company{}).Select(sums).Where("id = ?", *a.Tenant.CompanyID).Scan(&u).Error
		return u, models.InvoiceKindCompany, err
	default:
		return u, "", nil
	}
}
