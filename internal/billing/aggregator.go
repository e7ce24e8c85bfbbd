package billing

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/diewo77/go-archive/validation"
)

// MonthlyCharge is the breakdown of a usage based invoice.
type MonthlyCharge struct {
	Base     decimal.Decimal `json:"base"`
	Upload   decimal.Decimal `json:"upload"`
	Download decimal.Decimal `json:"download"`
	Share    decimal.Decimal `json:"share"`
	Total    decimal.Decimal `json:"total"`
}

// ComputeMonthlyCharge bills the base fee plus every started block of usage
// in each tier. Zero usage bills the base fee only.
func ComputeMonthlyCharge(p Pricing, u Usage) (MonthlyCharge, error) {
	v := validation.Violations{}
	validation.NonNegativeInt("uploads", u.Uploads, v)
	validation.NonNegativeInt("downloads", u.Downloads, v)
	validation.NonNegativeInt("shares", u.Shares, v)
	validation.NonNegative("monthly_bill", p.MonthlyBill, v)
	for name, t := range map[string]Tier{"upload": p.Upload, "download": p.Download, "share": p.Share} {
		validation.NonNegative(name+"_price_per_unit", t.PricePerUnit, v)
		validation.NonNegativeInt(name+"_unit_count", t.UnitCount, v)
	}
	if err := v.Err(); err != nil {
		return MonthlyCharge{}, err
	}

	c := MonthlyCharge{
		Base:     p.Base(),
		Upload:   tierCharge(p.Upload, u.Uploads),
		Download: tierCharge(p.Download, u.Downloads),
		Share:    tierCharge(p.Share, u.Shares),
	}
	c.Total = c.Base.Add(c.Upload).Add(c.Download).Add(c.Share)
	return c, nil
}

func tierCharge(t Tier, used int64) decimal.Decimal {
	if t.UnitCount == 0 || used == 0 {
		return decimal.Zero
	}
	blocks := (used + t.UnitCount - 1) / t.UnitCount
	return t.PricePerUnit.Mul(decimal.NewFromInt(blocks)).Round(Cents)
}

// LineItem is a free-form invoice line.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
}

// Amount is quantity times rate, rounded to cents.
func (i LineItem) Amount() decimal.Decimal {
	return i.Quantity.Mul(i.Rate).Round(Cents)
}

// Totals is the result of a custom invoice computation.
type Totals struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	Discount  decimal.Decimal `json:"discount"`
	TaxedBase decimal.Decimal `json:"taxed_base"`
	Tax       decimal.Decimal `json:"tax"`
	Total     decimal.Decimal `json:"total"`
}

var hundred = decimal.NewFromInt(100)

// ComputeCustomInvoiceTotal sums the items, applies the discount percentage,
// then the tax percentage on the discounted base. No items yields all zeros.
func ComputeCustomInvoiceTotal(items []LineItem, discountPercent, taxPercent decimal.Decimal) (Totals, error) {
	v := validation.Violations{}
	validation.Percent("discount_percent", discountPercent, v)
	validation.NonNegative("tax_percent", taxPercent, v)
	for i, it := range items {
		validation.NonNegative(itemField(i, "quantity"), it.Quantity, v)
		validation.NonNegative(itemField(i, "rate"), it.Rate, v)
	}
	if err := v.Err(); err != nil {
		return Totals{}, err
	}

	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Amount())
	}
	discount := subtotal.Mul(discountPercent).Div(hundred).Round(Cents)
	base := subtotal.Sub(discount)
	tax := base.Mul(taxPercent).Div(hundred).Round(Cents)
	return Totals{
		Subtotal:  subtotal,
		Discount:  discount,
		TaxedBase: base,
		Tax:       tax,
		Total:     base.Add(tax),
	}, nil
}

func itemField(i int, name string) string {
	return "items[" + strconv.Itoa(i) + "]." + name
}
