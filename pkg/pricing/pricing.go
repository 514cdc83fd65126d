// Package pricing resolves a ticket's pricing terms into one unit price.
//
// A ticket is priced by exactly one model, so the terms are a closed sum type:
// Fixed, Formula or Index. Any field may be missing (Valid == false) and a
// missing input resolves the price to zero rather than failing.
package pricing

import (
	"metaldesk/pkg/model"

	"github.com/shopspring/decimal"
)

// Pricing is one of Fixed, Formula or Index.
type Pricing interface {
	Type() string
	isPricing()
}

// Fixed is a signed contract price.
type Fixed struct {
	SignedPrice decimal.NullDecimal
}

// Formula pays a share of the exchange reference price.
type Formula struct {
	LmePrice        decimal.NullDecimal
	PayablePercent  decimal.NullDecimal // 0-1
	LmeActionNeeded bool
}

// Index adds a premium (or a negative discount) to the exchange reference price.
type Index struct {
	LmePrice        decimal.NullDecimal
	PremiumDiscount decimal.NullDecimal
}

func (Fixed) Type() string   { return model.PricingFixed }
func (Formula) Type() string { return model.PricingFormula }
func (Index) Type() string   { return model.PricingIndex }

func (Fixed) isPricing()   {}
func (Formula) isPricing() {}
func (Index) isPricing()   {}

// FromTicket builds the typed terms from the flat ticket row, nil for an unknown pricing type.
func FromTicket(t model.Ticket) Pricing {
	switch t.PricingType {
	case model.PricingFixed:
		return Fixed{SignedPrice: t.SignedPrice}
	case model.PricingFormula:
		return Formula{
			LmePrice:        t.LmePrice,
			PayablePercent:  t.PayablePercent,
			LmeActionNeeded: t.LmeActionNeeded != nil && *t.LmeActionNeeded,
		}
	case model.PricingIndex:
		return Index{LmePrice: t.LmePrice, PremiumDiscount: t.PremiumDiscount}
	}
	return nil
}

// Resolve returns the unit price, unrounded.
func Resolve(p Pricing) decimal.Decimal {
	switch v := p.(type) {
	case Fixed:
		if v.SignedPrice.Valid {
			return v.SignedPrice.Decimal
		}
	case Formula:
		if v.LmePrice.Valid && v.PayablePercent.Valid {
			return v.LmePrice.Decimal.Mul(v.PayablePercent.Decimal)
		}
	case Index:
		if v.LmePrice.Valid && v.PremiumDiscount.Valid {
			return v.LmePrice.Decimal.Add(v.PremiumDiscount.Decimal)
		}
	}
	return decimal.Zero
}

// Price is Resolve(FromTicket(t)).
func Price(t model.Ticket) decimal.Decimal {
	return Resolve(FromTicket(t))
}

// NeedsHedge reports whether the terms leave a floating price exposure:
// Index always, Formula only when the desk flagged an exchange action.
func NeedsHedge(p Pricing) bool {
	switch v := p.(type) {
	case Index:
		return true
	case Formula:
		return v.LmeActionNeeded
	}
	return false
}

// Display rounds a price for presentation.
func Display(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Missing lists the required fields the terms lack.
func Missing(p Pricing) []string {
	var out []string
	switch v := p.(type) {
	case Fixed:
		if !v.SignedPrice.Valid {
			out = append(out, "signed_price")
		}
	case Formula:
		if !v.LmePrice.Valid {
			out = append(out, "lme_price")
		}
		if !v.PayablePercent.Valid {
			out = append(out, "payable_percent")
		}
	case Index:
		if !v.LmePrice.Valid {
			out = append(out, "lme_price")
		}
		if !v.PremiumDiscount.Valid {
			out = append(out, "premium_discount")
		}
	default:
		out = append(out, "pricing_type")
	}
	return out
}
