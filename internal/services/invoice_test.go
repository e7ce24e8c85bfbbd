package services

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/go-archive/gate"
	"github.com/diewo77/go-archive/internal/models"
	"github.com/diewo77/go-archive/validation"
)

func (e *env) setCompanyUsage(uploads, downloads, shares int64) {
	e.t.Helper()
	require.NoError(e.t, e.db.Model(&models.Company{}).Where("id = ?", e.company.ID).Updates(map[string]any{
		"documents_uploaded":   uploads,
		"documents_downloaded": downloads,
		"documents_shared":     shares,
	}).Error)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msg string) {
	t.Helper()
	assert.Truef(t, d(want).Equal(got), "%s: want %s, got %s", msg, want, got)
}

func TestGenerateCompanyInvoice(t *testing.T) {
	e := newEnv(t, models.PlanFlags{})
	ctx := context.Background()
	e.setCompanyUsage(25, 2500, 500)

	inv, err := e.svc.Invoices.Generate(ctx, e.actor(models.RoleAdmin), models.InvoiceKindCompany, GenerateInput{CompanyID: e.company.ID})
	require.NoError(t, err)
	assert.Equal(t, "2024-03", inv.InvoiceMonth)
	assert.Equal(t, e.company.ID, *inv.CompanyID)
	assert.Nil(t, inv.ClientID)
	assertDecimal(t, "50", inv.BaseCharge, "base")
	assertDecimal(t, "6", inv.UploadCharge, "upload")
	assertDecimal(t, "15", inv.DownloadCharge, "download")
	assertDecimal(t, "3", inv.ShareCharge, "share")
	assertDecimal(t, "74", inv.Total, "total")
	assert.EqualValues(t, 1, e.activity("invoice.generate"))

	_, err = e.svc.Invoices.Generate(ctx, e.actor(models.RoleAdmin), models.InvoiceKindCompany, GenerateInput{CompanyID: e.company.ID})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "invoice_exists", se.Code)

	next, err := e.svc.Invoices.Generate(ctx, e.actor(models.RoleOwner), models.InvoiceKindCompany, GenerateInput{Month: "2024-04"})
	require.NoError(t, err)
	assert.Zero(t, next.Uploads, "usage already billed is not billed again")
	assertDecimal(t, "50", next.Total, "base only")
}

func TestGenerateValidation(t *testing.T) {
	e := newEnv(t, models.PlanFlags{})
	ctx := context.Background()

	_, err := e.svc.Invoices.Generate(ctx, e.actor(models.RoleAdmin), models.InvoiceKindCompany, GenerateInput{})
	assert.ErrorIs(t, err, validation.ErrInvalid)

	_, err = e.svc.Invoices.Generate(ctx, e.actor(models.RoleOwner), models.InvoiceKindCompany, GenerateInput{Month: "March"})
	var verr *validation.Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "invalid_format", verr.Violations["invoice_month"])

	_, err = e.svc.Invoices.Generate(ctx, e.actor(models.RoleManager), models.InvoiceKindCompany, GenerateInput{})
	assert.ErrorIs(t, err, gate.ErrForbidden)
}

func TestClientInvoiceScope(t *testing.T) {
	e := newEnv(t, models.PlanFlags{})
	ctx := context.Background()

	inv, err := e.svc.Invoices.Generate(ctx, e.actor(models.RoleOwner), models.InvoiceKindClient, GenerateInput{ClientID: e.client.ID})
	require.NoError(t, err)
	assert.Equal(t, e.client.ID, *inv.ClientID)
	assertDecimal(t, "10", inv.Total, "client plan base")

	_, err = e.svc.Invoices.Generate(ctx, e.actor(models.RoleOwner), models.InvoiceKindCompany, GenerateInput{})
	require.NoError(t, err)

	list, total, err := e.svc.Invoices.List(ctx, e.actor(models.RoleClient), models.InvoiceKindClient, InvoiceFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, inv.ID, list[0].ID)

	_, total, err = e.svc.Invoices.List(ctx, e.actor(models.RoleClient), models.InvoiceKindCompany, InvoiceFilter{})
	require.NoError(t, err)
	assert.Zero(t, total, "clients never see the company's own invoices")
}

func TestInvoiceLifecycle(t *testing.T) {
	e := newEnv(t, models.PlanFlags{})
	ctx := context.Background()
	owner, admin := e.actor(models.RoleOwner), e.actor(models.RoleAdmin)

	inv, err := e.svc.Invoices.Generate(ctx, admin, models.InvoiceKindCompany, GenerateInput{CompanyID: e.company.ID})
	require.NoError(t, err)

	inv, err = e.svc.Invoices.SetItems(ctx, admin, models.InvoiceKindCompany, inv.ID, ItemsInput{
		Items: []ItemInput{
			{Description: "Scanning", Quantity: d("2"), Rate: d("100")},
			{Description: "Indexing", Quantity: d("1"), Rate: d("50")},
		},
		DiscountPercent: d("10"),
		TaxPercent:      d("8"),
	})
	require.NoError(t, err)
	assert.Len(t, inv.CustomItems, 2)
	assertDecimal(t, "250", inv.Subtotal, "subtotal")
	assertDecimal(t, "25", inv.Discount, "discount")
	assertDecimal(t, "18", inv.Tax, "tax")
	assertDecimal(t, "243", inv.Total, "total")

	_, err = e.svc.Invoices.Verify(ctx, admin, models.InvoiceKindCompany, inv.ID)
	assert.ErrorIs(t, err, gate.ErrForbidden, "verify needs a submitted invoice")

	_, err = e.svc.Invoices.Submit(ctx, admin, models.InvoiceKindCompany, inv.ID)
	assert.ErrorIs(t, err, gate.ErrForbidden, "only owners submit")
	inv, err = e.svc.Invoices.Submit(ctx, owner, models.InvoiceKindCompany, inv.ID)
	require.NoError(t, err)
	assert.True(t, inv.InvoiceSubmitted)
	_, err = e.svc.Invoices.Submit(ctx, owner, models.InvoiceKindCompany, inv.ID)
	assert.ErrorIs(t, err, gate.ErrForbidden, "submit happens once")
	_, err = e.svc.Invoices.Verify(ctx, owner, models.InvoiceKindCompany, inv.ID)
	assert.ErrorIs(t, err, gate.ErrForbidden, "the submitting company cannot verify its own bill")

	inv, err = e.svc.Invoices.Verify(ctx, admin, models.InvoiceKindCompany, inv.ID)
	require.NoError(t, err)
	assert.True(t, inv.InvoiceSubmittedAdmin)
	assert.NotNil(t, inv.VerifiedAt)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.m.InvoicesVerified))

	_, err = e.svc.Invoices.SetItems(ctx, admin, models.InvoiceKindCompany, inv.ID, ItemsInput{})
	var denied *gate.DeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, "invoice is verified and can no longer change", denied.Reason)

	stored, err := e.svc.Invoices.Get(ctx, owner, models.InvoiceKindCompany, inv.ID)
	require.NoError(t, err)
	assertDecimal(t, "243", stored.Total, "verified total is frozen")
	assert.Len(t, stored.CustomItems, 2)
}

func TestSetItemsValidationAndFallback(t *testing.T) {
	e := newEnv(t, models.PlanFlags{})
	ctx := context.Background()
	admin := e.actor(models.RoleAdmin)
	e.setCompanyUsage(25, 2500, 500)
	inv, err := e.svc.Invoices.Generate(ctx, admin, models.InvoiceKindCompany, GenerateInput{CompanyID: e.company.ID})
	require.NoError(t, err)

	_, err = e.svc.Invoices.SetItems(ctx, admin, models.InvoiceKindCompany, inv.ID, ItemsInput{
		Items:           []ItemInput{{Description: " ", Quantity: d("-1"), Rate: d("5")}},
		DiscountPercent: d("120"),
	})
	var verr *validation.Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "required", verr.Violations["items[0].description"])
	assert.Equal(t, "must_not_be_negative", verr.Violations["items[0].quantity"])
	assert.Equal(t, "out_of_range", verr.Violations["discount_percent"])

	_, err = e.svc.Invoices.SetItems(ctx, admin, models.InvoiceKindCompany, inv.ID, ItemsInput{
		Items: []ItemInput{{Description: "Flat fee", Quantity: d("1"), Rate: d("20")}},
	})
	require.NoError(t, err)

	inv, err = e.svc.Invoices.SetItems(ctx, admin, models.InvoiceKindCompany, inv.ID, ItemsInput{})
	require.NoError(t, err)
	assert.Empty(t, inv.CustomItems)
	assertDecimal(t, "74", inv.Total, "usage charge restored")
}

func TestPreviewMatchesGenerate(t *testing.T) {
	e := newEnv(t, models.PlanFlags{})
	ctx := context.Background()
	e.setCompanyUsage(25, 2500, 500)

	charge, err := e.svc.Invoices.Preview(ctx, e.actor(models.RoleOwner), models.InvoiceKindCompany, GenerateInput{})
	require.NoError(t, err)
	assertDecimal(t, "74", charge.Total, "preview")

	var n int64
	e.db.Model(&models.Invoice{}).Count(&n)
	assert.Zero(t, n, "preview stores nothing")
}

func TestPreviewIsGated(t *testing.T) {
	e := newEnv(t, models.PlanFlags{})
	ctx := context.Background()
	e.setCompanyUsage(25, 2500, 500)

	for _, role := range []models.Role{models.RoleClient, models.RoleScanner, models.RoleManager} {
		_, err := e.svc.Invoices.Preview(ctx, e.actor(role), models.InvoiceKindCompany, GenerateInput{})
		assert.ErrorIs(t, err, gate.ErrForbidden, role)
	}

	charge, err := e.svc.Invoices.Preview(ctx, e.actor(models.RoleClient), models.InvoiceKindClient, GenerateInput{})
	require.NoError(t, err, "clients preview their own bill")
	assertDecimal(t, "10", charge.Total, "client plan base")
}
