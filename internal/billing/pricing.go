// Package billing computes plan charges from usage and custom invoice totals.
// Amounts are decimal.Decimal and every money value is rounded half-up to
// cents as soon as it is produced.
package billing

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/diewo77/go-archive/validation"
)

// Cents is the number of decimal places kept on money values.
const Cents = 2

// Tier prices usage in blocks: each started block of UnitCount units costs
// PricePerUnit. A tier with UnitCount 0 is not priced.
type Tier struct {
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
	UnitCount    int64           `json:"unit_count"`
}

// Pricing is the billing part of a plan.
type Pricing struct {
	MonthlyBill      decimal.Decimal `json:"monthly_bill"`
	PriceDescription string          `json:"price_description,omitempty"`
	Upload           Tier            `json:"upload"`
	Download         Tier            `json:"download"`
	Share            Tier            `json:"share"`
}

// Usage are the counters billed for one period.
type Usage struct {
	Uploads   int64 `json:"uploads"`
	Downloads int64 `json:"downloads"`
	Shares    int64 `json:"shares"`
}

var amountPattern = regexp.MustCompile(`\d[\d,]*(\.\d+)?`)

// ParsePriceDescription extracts the first amount from free text such as
// "$50/month" or "USD 1,200.50 per month". Text without a number is 0.
func ParsePriceDescription(s string) decimal.Decimal {
	m := amountPattern.FindString(s)
	if m == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return decimal.Zero
	}
	return d.Round(Cents)
}

// Base returns the monthly base fee: MonthlyBill when set, otherwise the
// amount parsed from PriceDescription.
func (p Pricing) Base() decimal.Decimal {
	if !p.MonthlyBill.IsZero() {
		return p.MonthlyBill.Round(Cents)
	}
	return ParsePriceDescription(p.PriceDescription)
}

// ValidatePricing rejects negative amounts and a priced tier without a unit count.
func ValidatePricing(p Pricing) error {
	v := validation.Violations{}
	validation.NonNegative("monthly_bill", p.MonthlyBill, v)
	validateTier("upload", p.Upload, v)
	validateTier("download", p.Download, v)
	validateTier("share", p.Share, v)
	return v.Err()
}

func validateTier(name string, t Tier, v validation.Violations) {
	validation.NonNegative(name+"_price_per_unit", t.PricePerUnit, v)
	validation.NonNegativeInt(name+"_unit_count", t.UnitCount, v)
	if t.UnitCount == 0 && t.PricePerUnit.IsPositive() {
		v.Add(name+"_unit_count", "required_when_priced")
	}
}
