package matching

import (
	"strings"

	"metaldesk/pkg/model"
	"metaldesk/pkg/pricing"

	"github.com/shopspring/decimal"
)

const PriceSourceLME = "LME"

// HedgePrefill is a proposed hedge request shown for confirmation; it is not stored.
type HedgePrefill struct {
	TicketID    int64           `json:"ticketID"`
	Side        string          `json:"side"`
	Direction   string          `json:"direction"`
	Quantity    decimal.Decimal `json:"quantity"`
	PriceSource string          `json:"priceSource"`
	Metal       string          `json:"metal"`
	PricingType string          `json:"pricingType"`
	QPStart     model.GormTime  `json:"qpStart"`
	QPEnd       model.GormTime  `json:"qpEnd"`
}

// metals maps commodity keywords to the exchange contract, first hit wins.
var metals = []struct {
	keyword string
	metal   string
}{
	{"stainless", "Nickel"},
	{"copper", "Copper"},
	{"brass", "Copper"},
	{"alumin", "Aluminium"},
	{"zinc", "Zinc"},
	{"nickel", "Nickel"},
	{"lead", "Lead"},
	{"tin", "Tin"},
}

// MetalOf maps a commodity type to the metal it is hedged on.
func MetalOf(commodity string) string {
	c := strings.ToLower(commodity)
	for _, m := range metals {
		if strings.Contains(c, m.keyword) {
			return m.metal
		}
	}
	return commodity
}

// HedgeDirection is the exchange side offsetting a physical ticket: purchases are sold forward,
// sales are bought forward.
func HedgeDirection(side string) string {
	if side == model.SideBuy {
		return model.SideSell
	}
	return model.SideBuy
}

// PrefillFor proposes a hedge for t's allocated quantity, false when t carries no floating exposure.
func PrefillFor(t model.Ticket, allocated, percent decimal.Decimal) (HedgePrefill, bool) {
	if !pricing.NeedsHedge(pricing.FromTicket(t)) {
		return HedgePrefill{}, false
	}
	return HedgePrefill{
		TicketID:    t.ID,
		Side:        t.Side,
		Direction:   HedgeDirection(t.Side),
		Quantity:    allocated.Mul(percent),
		PriceSource: PriceSourceLME,
		Metal:       MetalOf(t.CommodityType),
		PricingType: t.PricingType,
		QPStart:     t.QPStart,
		QPEnd:       t.QPEnd,
	}, true
}

func (p HedgePrefill) request(orderID string) model.HedgeRequest {
	return model.HedgeRequest{
		OrderID:     orderID,
		TicketID:    p.TicketID,
		Side:        p.Side,
		Direction:   p.Direction,
		Quantity:    p.Quantity,
		PriceSource: p.PriceSource,
		Metal:       p.Metal,
		PricingType: p.PricingType,
		QPStart:     p.QPStart,
		QPEnd:       p.QPEnd,
		Status:      model.HedgeStatusRequested,
	}
}
