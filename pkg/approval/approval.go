// Package approval decides whether a new ticket needs sign-off before it can be matched.
package approval

import (
	"context"
	"fmt"
	"strings"

	"metaldesk/pkg/config"
	"metaldesk/pkg/model"

	"github.com/shopspring/decimal"
)

// Attributes is what the rules look at.
type Attributes struct {
	Side          string
	CommodityType string
	Quantity      decimal.Decimal
	PricingType   string
	Price         decimal.Decimal // resolved unit price
	Currency      string
	TraderID      int64
	CompanyID     int64
}

// Decision is the evaluator's verdict.
type Decision struct {
	RequiresApproval  bool
	RuleTriggered     string
	RequiredApprovers []string
}

type Evaluator interface {
	Evaluate(ctx context.Context, a Attributes) (Decision, error)
}

// AttributesOf extracts the rule inputs of a ticket.
func AttributesOf(t model.Ticket, price decimal.Decimal) Attributes {
	return Attributes{
		Side:          t.Side,
		CommodityType: t.CommodityType,
		Quantity:      t.Quantity,
		PricingType:   t.PricingType,
		Price:         price,
		Currency:      t.Currency,
		TraderID:      t.TraderID,
		CompanyID:     t.CompanyID,
	}
}

const (
	RuleQuantity      = "quantity_limit"
	RuleNotional      = "notional_limit"
	RuleFloatingPrice = "floating_price"
)

// Rules is the in-process evaluator driven by the approval config section.
type Rules struct {
	MaxQuantity      decimal.Decimal // zero disables
	MaxNotional      decimal.Decimal // zero disables
	FloatingApproval bool
	Approvers        []string
}

func NewRules(cfg config.Approval) *Rules {
	return &Rules{
		MaxQuantity:      decimal.NewFromFloat(cfg.MaxQuantityMT),
		MaxNotional:      decimal.NewFromFloat(cfg.MaxNotional),
		FloatingApproval: cfg.FloatingApproval,
		Approvers:        cfg.Approvers,
	}
}

func (r *Rules) Evaluate(ctx context.Context, a Attributes) (d Decision, err error) {
	var triggered []string
	approvers := []string{}
	add := func(names ...string) {
		for _, n := range names {
			found := false
			for _, have := range approvers {
				if have == n {
					found = true
					break
				}
			}
			if !found {
				approvers = append(approvers, n)
			}
		}
	}

	if r.MaxQuantity.IsPositive() && a.Quantity.GreaterThan(r.MaxQuantity) {
		triggered = append(triggered, RuleQuantity)
		add("Head of Trading")
	}
	if r.MaxNotional.IsPositive() && a.Quantity.Mul(a.Price).GreaterThan(r.MaxNotional) {
		triggered = append(triggered, RuleNotional)
		add("Head of Trading", "CFO")
	}
	if r.FloatingApproval && a.PricingType != model.PricingFixed {
		triggered = append(triggered, RuleFloatingPrice)
		add("Risk")
	}

	if len(triggered) == 0 {
		return Decision{}, nil
	}
	if len(r.Approvers) > 0 {
		approvers = append([]string(nil), r.Approvers...)
	}
	return Decision{
		RequiresApproval:  true,
		RuleTriggered:     strings.Join(triggered, ","),
		RequiredApprovers: approvers,
	}, nil
}

func (d Decision) String() string {
	if !d.RequiresApproval {
		return "no approval required"
	}
	return fmt.Sprintf("approval by %s (%s)", strings.Join(d.RequiredApprovers, ", "), d.RuleTriggered)
}
