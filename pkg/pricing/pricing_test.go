package pricing_test

import (
	"testing"

	"metaldesk/pkg/model"
	"metaldesk/pkg/pricing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nd(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestResolveFixed(t *testing.T) {
	p := pricing.FromTicket(model.Ticket{PricingType: model.PricingFixed, SignedPrice: nd("8450.5")})
	assert.True(t, pricing.Resolve(p).Equal(decimal.RequireFromString("8450.5")))

	p = pricing.FromTicket(model.Ticket{PricingType: model.PricingFixed})
	assert.True(t, pricing.Resolve(p).IsZero())
}

func TestResolveFormula(t *testing.T) {
	tk := model.Ticket{PricingType: model.PricingFormula, LmePrice: nd("9000"), PayablePercent: nd("0.92")}
	assert.True(t, pricing.Price(tk).Equal(decimal.RequireFromString("8280")))

	tk.PayablePercent = decimal.NullDecimal{}
	assert.True(t, pricing.Price(tk).IsZero())

	tk = model.Ticket{PricingType: model.PricingFormula, PayablePercent: nd("0.92")}
	assert.True(t, pricing.Price(tk).IsZero())
}

func TestResolveIndex(t *testing.T) {
	tk := model.Ticket{PricingType: model.PricingIndex, LmePrice: nd("9000"), PremiumDiscount: nd("-150")}
	assert.True(t, pricing.Price(tk).Equal(decimal.NewFromInt(8850)))

	tk.LmePrice = decimal.NullDecimal{}
	assert.True(t, pricing.Price(tk).IsZero())
}

func TestResolveUnknown(t *testing.T) {
	assert.Nil(t, pricing.FromTicket(model.Ticket{PricingType: "Spot"}))
	assert.True(t, pricing.Price(model.Ticket{PricingType: "Spot", SignedPrice: nd("10")}).IsZero())
}

func TestResolveDoesNotRound(t *testing.T) {
	tk := model.Ticket{PricingType: model.PricingFormula, LmePrice: nd("9123.45"), PayablePercent: nd("0.913")}
	price := pricing.Price(tk)
	assert.True(t, price.Equal(decimal.RequireFromString("8329.70985")))
	assert.Equal(t, "8329.71", pricing.Display(price))
}

func TestNeedsHedge(t *testing.T) {
	yes, no := true, false

	// Index hedges even without the flag
	assert.True(t, pricing.NeedsHedge(pricing.FromTicket(model.Ticket{PricingType: model.PricingIndex})))
	assert.True(t, pricing.NeedsHedge(pricing.FromTicket(model.Ticket{PricingType: model.PricingFormula, LmeActionNeeded: &yes})))
	assert.False(t, pricing.NeedsHedge(pricing.FromTicket(model.Ticket{PricingType: model.PricingFormula, LmeActionNeeded: &no})))
	assert.False(t, pricing.NeedsHedge(pricing.FromTicket(model.Ticket{PricingType: model.PricingFormula})))
	assert.False(t, pricing.NeedsHedge(pricing.FromTicket(model.Ticket{PricingType: model.PricingFixed})))
	assert.False(t, pricing.NeedsHedge(nil))
}

func TestMissing(t *testing.T) {
	require.Equal(t, []string{"signed_price"}, pricing.Missing(pricing.Fixed{}))
	require.Equal(t, []string{"lme_price", "payable_percent"}, pricing.Missing(pricing.Formula{}))
	require.Equal(t, []string{"premium_discount"}, pricing.Missing(pricing.Index{LmePrice: nd("1")}))
	require.Equal(t, []string{"pricing_type"}, pricing.Missing(nil))
	require.Empty(t, pricing.Missing(pricing.Fixed{SignedPrice: nd("1")}))
}
