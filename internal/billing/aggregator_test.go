package billing_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/go-archive/internal/billing"
	"github.com/diewo77/go-archive/validation"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertMoney(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.Truef(t, d(want).Equal(got), "%s: want %s, got %s", field, want, got)
}

func examplePlan() billing.Pricing {
	return billing.Pricing{
		MonthlyBill: d("50"),
		Upload:      billing.Tier{PricePerUnit: d("2"), UnitCount: 10},
		Download:    billing.Tier{PricePerUnit: d("5"), UnitCount: 1000},
		Share:       billing.Tier{PricePerUnit: d("3"), UnitCount: 1000},
	}
}

func TestComputeMonthlyCharge_Example(t *testing.T) {
	c, err := billing.ComputeMonthlyCharge(examplePlan(), billing.Usage{Uploads: 25, Downloads: 2500, Shares: 500})
	require.NoError(t, err)
	assertMoney(t, "50", c.Base, "base")
	assertMoney(t, "6", c.Upload, "upload")
	assertMoney(t, "15", c.Download, "download")
	assertMoney(t, "3", c.Share, "share")
	assertMoney(t, "74", c.Total, "total")
}

func TestComputeMonthlyCharge_ZeroUsageIsBase(t *testing.T) {
	c, err := billing.ComputeMonthlyCharge(examplePlan(), billing.Usage{})
	require.NoError(t, err)
	assertMoney(t, "50", c.Total, "total")
}

func TestComputeMonthlyCharge_BlockBoundaries(t *testing.T) {
	p := examplePlan()
	tests := []struct {
		uploads int64
		want    string
	}{
		{1, "2"},
		{10, "2"},
		{11, "4"},
		{20, "4"},
		{21, "6"},
	}
	for _, tt := range tests {
		c, err := billing.ComputeMonthlyCharge(p, billing.Usage{Uploads: tt.uploads})
		require.NoError(t, err)
		assertMoney(t, tt.want, c.Upload, "upload")
	}
}

func TestComputeMonthlyCharge_UnpricedTier(t *testing.T) {
	p := examplePlan()
	p.Share = billing.Tier{PricePerUnit: d("3"), UnitCount: 0}
	c, err := billing.ComputeMonthlyCharge(p, billing.Usage{Shares: 999})
	require.NoError(t, err)
	assertMoney(t, "0", c.Share, "share")
	assertMoney(t, "50", c.Total, "total")
}

func TestComputeMonthlyCharge_PriceDescriptionFallback(t *testing.T) {
	p := examplePlan()
	p.MonthlyBill = decimal.Zero
	p.PriceDescription = "USD 1,200.50 per month"
	c, err := billing.ComputeMonthlyCharge(p, billing.Usage{})
	require.NoError(t, err)
	assertMoney(t, "1200.50", c.Total, "total")
}

func TestComputeMonthlyCharge_Rounding(t *testing.T) {
	p := billing.Pricing{Upload: billing.Tier{PricePerUnit: d("0.125"), UnitCount: 1}}
	c, err := billing.ComputeMonthlyCharge(p, billing.Usage{Uploads: 1})
	require.NoError(t, err)
	assertMoney(t, "0.13", c.Upload, "half rounds up")
}

func TestComputeMonthlyCharge_RejectsNegatives(t *testing.T) {
	_, err := billing.ComputeMonthlyCharge(examplePlan(), billing.Usage{Uploads: -1})
	require.Error(t, err)
	var verr *validation.Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "must_not_be_negative", verr.Violations["uploads"])

	p := examplePlan()
	p.Download.PricePerUnit = d("-5")
	_, err = billing.ComputeMonthlyCharge(p, billing.Usage{})
	assert.ErrorIs(t, err, validation.ErrInvalid)
}

func TestComputeMonthlyCharge_Idempotent(t *testing.T) {
	u := billing.Usage{Uploads: 25, Downloads: 2500, Shares: 500}
	a, err := billing.ComputeMonthlyCharge(examplePlan(), u)
	require.NoError(t, err)
	b, err := billing.ComputeMonthlyCharge(examplePlan(), u)
	require.NoError(t, err)
	assert.True(t, a.Total.Equal(b.Total))
}

func TestComputeCustomInvoiceTotal_Example(t *testing.T) {
	items := []billing.LineItem{
		{Description: "scanning", Quantity: d("2"), Rate: d("100")},
		{Description: "indexing", Quantity: d("1"), Rate: d("50")},
	}
	got, err := billing.ComputeCustomInvoiceTotal(items, d("10"), d("8"))
	require.NoError(t, err)
	assertMoney(t, "250", got.Subtotal, "subtotal")
	assertMoney(t, "25", got.Discount, "discount")
	assertMoney(t, "225", got.TaxedBase, "taxed base")
	assertMoney(t, "18", got.Tax, "tax")
	assertMoney(t, "243", got.Total, "total")
}

func TestComputeCustomInvoiceTotal_Empty(t *testing.T) {
	got, err := billing.ComputeCustomInvoiceTotal(nil, decimal.Zero, decimal.Zero)
	require.NoError(t, err)
	for name, v := range map[string]decimal.Decimal{"subtotal": got.Subtotal, "discount": got.Discount, "tax": got.Tax, "total": got.Total} {
		assertMoney(t, "0", v, name)
	}
}

func TestComputeCustomInvoiceTotal_HalfUp(t *testing.T) {
	// 10% of 0.05 is 0.005, which must round up to 0.01.
	items := []billing.LineItem{{Quantity: d("1"), Rate: d("0.05")}}
	got, err := billing.ComputeCustomInvoiceTotal(items, d("10"), decimal.Zero)
	require.NoError(t, err)
	assertMoney(t, "0.01", got.Discount, "discount")
	assertMoney(t, "0.04", got.Total, "total")
}

func TestComputeCustomInvoiceTotal_Validation(t *testing.T) {
	tests := []struct {
		name     string
		items    []billing.LineItem
		discount string
		tax      string
		field    string
	}{
		{"negative quantity", []billing.LineItem{{Quantity: d("-1"), Rate: d("1")}}, "0", "0", "items[0].quantity"},
		{"negative rate", []billing.LineItem{{Quantity: d("1"), Rate: d("1")}, {Quantity: d("1"), Rate: d("-2")}}, "0", "0", "items[1].rate"},
		{"negative discount", nil, "-5", "0", "discount_percent"},
		{"discount above 100", nil, "101", "0", "discount_percent"},
		{"negative tax", nil, "0", "-1", "tax_percent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := billing.ComputeCustomInvoiceTotal(tt.items, d(tt.discount), d(tt.tax))
			var verr *validation.Error
			require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
			assert.Contains(t, verr.Violations, tt.field)
		})
	}
}

func TestValidatePricing(t *testing.T) {
	require.NoError(t, billing.ValidatePricing(examplePlan()))

	free := billing.Pricing{Upload: billing.Tier{UnitCount: 0}}
	require.NoError(t, billing.ValidatePricing(free), "unpriced tier without unit count is fine")

	bad := examplePlan()
	bad.Upload.UnitCount = 0
	err := billing.ValidatePricing(bad)
	var verr *validation.Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "required_when_priced", verr.Violations["upload_unit_count"])
}

func TestParsePriceDescription(t *testing.T) {
	tests := map[string]string{
		"$50/month":     "50",
		"49.99":         "49.99",
		"free":          "0",
		"":              "0",
		"1,000 monthly": "1000",
	}
	for in, want := range tests {
		assertMoney(t, want, billing.ParsePriceDescription(in), in)
	}
}
