package matching

import (
	"metaldesk/pkg/model"

	"github.com/shopspring/decimal"
)

const (
	SurplusBuy  = "buy"
	SurplusSell = "sell"
)

// Strategy resolves a remainder.
type Strategy string

const (
	StrategyNewTicket Strategy = "new_ticket"
	StrategyInventory Strategy = "inventory"
	StrategyAdjust    Strategy = "adjust"
)

// Resolution is the caller's answer to a detected remainder.
type Resolution struct {
	Strategy  Strategy `json:"strategy"`
	Warehouse string   `json:"warehouse"`
}

// Remainder is the unmatched quantity left on the surplus side of a manual pair.
type Remainder struct {
	RemainderMT     decimal.Decimal `json:"remainderMT"`
	SurplusSide     string          `json:"surplusSide"`
	ReferenceTicket model.Ticket    `json:"referenceTicket"`
}

// DetectRemainder reports the surplus of a buy/sell pair, false when quantities are equal.
func DetectRemainder(buy, sell model.Ticket) (Remainder, bool) {
	switch buy.Quantity.Cmp(sell.Quantity) {
	case 1:
		return Remainder{
			RemainderMT:     buy.Quantity.Sub(sell.Quantity),
			SurplusSide:     SurplusBuy,
			ReferenceTicket: buy,
		}, true
	case -1:
		return Remainder{
			RemainderMT:     sell.Quantity.Sub(buy.Quantity),
			SurplusSide:     SurplusSell,
			ReferenceTicket: sell,
		}, true
	}
	return Remainder{}, false
}

// Allocated is the quantity an order can take from the pair.
func Allocated(buy, sell model.Ticket) decimal.Decimal {
	return decimal.Min(buy.Quantity, sell.Quantity)
}

// Resolve builds the ticket that carries the remainder forward.
// Adjust returns ErrAdjustRequested and nothing else.
func (r Remainder) Resolve(res Resolution) (model.Ticket, error) {
	switch res.Strategy {
	case StrategyNewTicket:
		return r.clone(), nil
	case StrategyInventory:
		if res.Warehouse == "" {
			return model.Ticket{}, ErrWarehouseRequired
		}
		t := r.clone()
		t.TransactionType = model.TransactionInventory
		if r.SurplusSide == SurplusBuy {
			t.ShipTo = res.Warehouse
		} else {
			t.ShipFrom = res.Warehouse
		}
		return t, nil
	case StrategyAdjust:
		return model.Ticket{}, ErrAdjustRequested
	}
	return model.Ticket{}, ErrUnknownStrategy
}

// Carryover spins off the untaken part of every partly allocated ticket as a fresh Approved ticket,
// so that it stays open once the original is tied to an order.
func Carryover(as []Allocation) []model.Ticket {
	var out []model.Ticket
	for _, a := range as {
		left := a.Ticket.Quantity.Sub(a.Quantity)
		if !left.IsPositive() {
			continue
		}
		r := Remainder{RemainderMT: left, SurplusSide: SurplusSell, ReferenceTicket: a.Ticket}
		if a.Ticket.Side == model.SideBuy {
			r.SurplusSide = SurplusBuy
		}
		out = append(out, r.clone())
	}
	return out
}

func (r Remainder) clone() model.Ticket {
	t := r.ReferenceTicket.Clone()
	t.Quantity = r.RemainderMT
	t.Status = model.TicketStatusApproved
	return t
}
