package matching

import (
	"context"
	"fmt"

	"metaldesk/pkg/config"
	"metaldesk/pkg/model"
	"metaldesk/pkg/pricing"
	"metaldesk/pkg/store"

	"github.com/google/btree"
	"github.com/shopspring/decimal"
)

// Selection is the optimizer's pick for one order.
type Selection struct {
	CommodityType string          `json:"commodityType"`
	Target        decimal.Decimal `json:"target"`
	Currency      string          `json:"currency"`
	Sells         []Allocation    `json:"sells"`
	Buys          []Allocation    `json:"buys"`
	AvgSellPrice  decimal.Decimal `json:"avgSellPrice"`
	AvgBuyPrice   decimal.Decimal `json:"avgBuyPrice"`
}

// BookEntry is an approved, unmatched ticket in a book.
type BookEntry struct {
	Ticket model.Ticket
	Price  decimal.Decimal
}

// BuyEntry sorts cheapest first.
type BuyEntry BookEntry

// SellEntry sorts richest first.
type SellEntry BookEntry

var (
	_ btree.Item = BuyEntry{}
	_ btree.Item = SellEntry{}
)

// Less compare the size of two BuyEntries, ticket id breaks price ties
func (a BuyEntry) Less(item btree.Item) bool {
	b, _ := item.(BuyEntry)

	if a.Ticket.ID == b.Ticket.ID {
		return false
	}

	f := a.Price.Cmp(b.Price)
	if f == 0 {
		return a.Ticket.ID < b.Ticket.ID
	}
	return f < 0
}

// Less compare the size of two SellEntries, ticket id breaks price ties
func (a SellEntry) Less(item btree.Item) bool {
	b, _ := item.(SellEntry)

	if a.Ticket.ID == b.Ticket.ID {
		return false
	}

	f := a.Price.Cmp(b.Price)
	if f == 0 {
		return a.Ticket.ID < b.Ticket.ID
	}
	return f > 0
}

type Optimizer struct {
	store  store.Store
	former *Former

	tolerateCurrency bool
}

func NewOptimizer(st store.Store, f *Former, cfg config.Matching) *Optimizer {
	return &Optimizer{store: st, former: f, tolerateCurrency: cfg.TolerateCurrency}
}

// Books loads the open buy and sell tickets of a commodity. Tickets without a usable price
// or quantity are left out.
func (o *Optimizer) Books(ctx context.Context, commodity string) (buys, sells *btree.BTree, err error) {
	tickets, err := o.store.ListTickets(ctx, store.TicketFilter{
		Status:        model.TicketStatusApproved,
		CommodityType: commodity,
		Unmatched:     true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("load %s tickets: %w", commodity, err)
	}

	buys = btree.New(2)
	sells = btree.New(2)
	for _, t := range tickets {
		price := pricing.Price(t)
		if !price.IsPositive() || !t.Quantity.IsPositive() {
			logger.Debugf("optimizer skips ticket %d: price %s quantity %s", t.ID, price, t.Quantity)
			continue
		}
		e := BookEntry{Ticket: t, Price: price}
		switch t.Side {
		case model.SideBuy:
			buys.ReplaceOrInsert(BuyEntry(e))
		case model.SideSell:
			sells.ReplaceOrInsert(SellEntry(e))
		}
	}
	return buys, sells, nil
}

// Select fills target from the richest sells and the cheapest buys.
func (o *Optimizer) Select(ctx context.Context, commodity string, target decimal.Decimal) (sel Selection, err error) {
	if !target.IsPositive() {
		return sel, ErrInvalidQuantity
	}
	buys, sells, err := o.Books(ctx, commodity)
	if err != nil {
		return sel, err
	}

	sel = Selection{CommodityType: commodity, Target: target}

	remaining := target
	sells.Ascend(func(item btree.Item) bool {
		e := BookEntry(item.(SellEntry))
		if !o.currencyFits(&sel, e.Ticket) {
			return true
		}
		take := decimal.Min(e.Ticket.Quantity, remaining)
		sel.Sells = append(sel.Sells, Allocation{Ticket: e.Ticket, Price: e.Price, Quantity: take})
		remaining = remaining.Sub(take)
		return remaining.IsPositive()
	})
	if remaining.IsPositive() {
		return sel, fmt.Errorf("%s short of %s MT: %w", commodity, remaining, ErrNotEnoughSell)
	}

	remaining = target
	buys.Ascend(func(item btree.Item) bool {
		e := BookEntry(item.(BuyEntry))
		if !o.currencyFits(&sel, e.Ticket) {
			return true
		}
		take := decimal.Min(e.Ticket.Quantity, remaining)
		sel.Buys = append(sel.Buys, Allocation{Ticket: e.Ticket, Price: e.Price, Quantity: take})
		remaining = remaining.Sub(take)
		return remaining.IsPositive()
	})
	if remaining.IsPositive() {
		return sel, fmt.Errorf("%s short of %s MT: %w", commodity, remaining, ErrNotEnoughBuy)
	}

	sel.AvgSellPrice = WeightedAverage(sel.Sells)
	sel.AvgBuyPrice = WeightedAverage(sel.Buys)
	if !sel.AvgBuyPrice.LessThan(sel.AvgSellPrice) {
		return sel, fmt.Errorf("buy %s sell %s: %w", sel.AvgBuyPrice, sel.AvgSellPrice, ErrMarginInverted)
	}
	return sel, nil
}

// currencyFits pins the selection to the first priced currency it meets.
func (o *Optimizer) currencyFits(sel *Selection, t model.Ticket) bool {
	if o.tolerateCurrency || t.Currency == "" {
		return true
	}
	if sel.Currency == "" {
		sel.Currency = t.Currency
		return true
	}
	if t.Currency != sel.Currency {
		logger.Debugf("optimizer skips ticket %d: currency %s, selection is %s", t.ID, t.Currency, sel.Currency)
		return false
	}
	return true
}

// Run selects and forms the order in one go.
func (o *Optimizer) Run(ctx context.Context, commodity string, target decimal.Decimal) (*Result, error) {
	sel, err := o.Select(ctx, commodity, target)
	if err != nil {
		matchRejectionsTotal.WithLabelValues(rejectionReason(err)).Inc()
		logger.Warningf("optimize %s %s MT: %v", commodity, target, err)
		return nil, err
	}
	return o.former.FormOptimized(ctx, sel)
}

// WeightedAverage is the volume weighted price of the allocations.
func WeightedAverage(as []Allocation) decimal.Decimal {
	total := decimal.Zero
	notional := decimal.Zero
	for _, a := range as {
		total = total.Add(a.Quantity)
		notional = notional.Add(a.Price.Mul(a.Quantity))
	}
	if total.IsZero() {
		return decimal.Zero
	}
	return notional.Div(total)
}
