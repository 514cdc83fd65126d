package matching

import (
	"errors"
	"testing"

	"metaldesk/pkg/config"
	"metaldesk/pkg/model"
	"metaldesk/pkg/store"

	"github.com/stretchr/testify/require"
)

func newOptimizer(fx *fixture, tolerate bool) *Optimizer {
	return NewOptimizer(fx.store, fx.former, config.Matching{TolerateCurrency: tolerate})
}

func TestOptimizerSelect(t *testing.T) {
	fx := newFixture(ModeAtomic)
	s12 := fx.put(t, fixed(model.SideSell, "Copper Scrap", "60", "12"))
	s11 := fx.put(t, fixed(model.SideSell, "Copper Scrap", "60", "11"))
	fx.put(t, fixed(model.SideSell, "Copper Scrap", "60", "10"))
	b9 := fx.put(t, fixed(model.SideBuy, "Copper Scrap", "70", "9"))
	b10 := fx.put(t, fixed(model.SideBuy, "Copper Scrap", "70", "10"))
	fx.put(t, fixed(model.SideBuy, "Aluminium Scrap", "500", "1"))

	sel, err := newOptimizer(fx, false).Select(fx.ctx, "Copper Scrap", dec("100"))
	require.NoError(t, err)

	require.Len(t, sel.Sells, 2)
	require.Equal(t, s12.ID, sel.Sells[0].Ticket.ID)
	require.True(t, sel.Sells[0].Quantity.Equal(dec("60")))
	require.Equal(t, s11.ID, sel.Sells[1].Ticket.ID)
	require.True(t, sel.Sells[1].Quantity.Equal(dec("40")))
	require.True(t, sel.AvgSellPrice.Equal(dec("11.6")))

	require.Len(t, sel.Buys, 2)
	require.Equal(t, b9.ID, sel.Buys[0].Ticket.ID)
	require.Equal(t, b10.ID, sel.Buys[1].Ticket.ID)
	require.True(t, sel.Buys[1].Quantity.Equal(dec("30")))
	require.True(t, sel.AvgBuyPrice.Equal(dec("9.3")))
	require.Equal(t, "USD", sel.Currency)
}

func TestOptimizerRun(t *testing.T) {
	fx := newFixture(ModeAtomic)
	s12 := fx.put(t, fixed(model.SideSell, "Copper Scrap", "60", "12"))
	s11 := fx.put(t, fixed(model.SideSell, "Copper Scrap", "60", "11"))
	b10 := fx.put(t, fixed(model.SideBuy, "Copper Scrap", "100", "10"))

	res, err := newOptimizer(fx, false).Run(fx.ctx, "Copper Scrap", dec("100"))
	require.NoError(t, err)
	require.True(t, res.Order.Quantity.Equal(dec("100")))
	require.True(t, res.Order.BuyPrice.Equal(dec("10")))
	require.True(t, res.Order.SellPrice.Equal(dec("11.6")))
	require.True(t, res.Order.Margin.Equal(dec("0.16")))
	require.Equal(t, []int64{s12.ID, s11.ID}, SplitIDs(res.Order.SellerTicketIDs))

	require.Len(t, res.Matches, 2)
	require.Equal(t, b10.ID, res.Matches[0].BuyTicketID)
	require.Equal(t, s12.ID, res.Matches[0].SellTicketID)
	require.True(t, res.Matches[0].Quantity.Equal(dec("60")))
	require.True(t, res.Matches[1].Quantity.Equal(dec("40")))
	require.Len(t, res.Shipments, 1)

	// the 20 MT left on s11 carries over to a new open ticket
	require.Nil(t, res.Remainder)
	require.Len(t, res.Leftovers, 1)
	left := res.Leftovers[0]
	require.NotZero(t, left.ID)
	require.NotEqual(t, s11.ID, left.ID)
	require.True(t, left.Quantity.Equal(dec("20")))
	require.Equal(t, model.TicketStatusApproved, left.Status)
	require.Equal(t, []string{StepRemainder, StepOrder, StepShipments, StepMatches}, fx.journal.entries[0].Steps)

	buys, sells, err := newOptimizer(fx, false).Books(fx.ctx, "Copper Scrap")
	require.NoError(t, err)
	require.Equal(t, 0, buys.Len())
	require.Equal(t, 1, sells.Len())
	require.Equal(t, left.ID, BookEntry(sells.Min().(SellEntry)).Ticket.ID)
}

func TestOptimizerKeepsUntakenSupplyOpen(t *testing.T) {
	fx := newFixture(ModeAtomic)
	s12 := fx.put(t, fixed(model.SideSell, "Copper Scrap", "60", "12"))
	s11 := fx.put(t, fixed(model.SideSell, "Copper Scrap", "60", "11"))
	b10 := fx.put(t, fixed(model.SideBuy, "Copper Scrap", "150", "10"))

	res, err := newOptimizer(fx, false).Run(fx.ctx, "Copper Scrap", dec("100"))
	require.NoError(t, err)
	require.True(t, res.Order.Quantity.Equal(dec("100")))

	open, err := fx.store.ListTickets(fx.ctx, store.TicketFilter{CommodityType: "Copper Scrap", Unmatched: true})
	require.NoError(t, err)
	require.Len(t, open, 2)
	left := map[string]string{}
	for _, tk := range open {
		require.NotContains(t, []int64{s12.ID, s11.ID, b10.ID}, tk.ID)
		require.Equal(t, model.TicketStatusApproved, tk.Status)
		left[tk.Side] = tk.Quantity.String()
	}
	require.Equal(t, map[string]string{model.SideBuy: "50", model.SideSell: "20"}, left)

	_, _, _, _, total := fx.store.Counts()
	require.Equal(t, 5, total)
}

func TestOptimizerLeftoverFailureAbandonsOrder(t *testing.T) {
	fx := newFixture(ModeBestEffort)
	fx.put(t, fixed(model.SideSell, "Copper Scrap", "60", "12"))
	fx.put(t, fixed(model.SideSell, "Copper Scrap", "60", "11"))
	fx.put(t, fixed(model.SideBuy, "Copper Scrap", "100", "10"))
	fx.store.FailOn("CreateTicket", errors.New("insert failed"))

	_, err := newOptimizer(fx, false).Run(fx.ctx, "Copper Scrap", dec("100"))
	require.Error(t, err)
	orders, matches, _, _, _ := fx.store.Counts()
	require.Zero(t, orders)
	require.Zero(t, matches)
}

func TestOptimizerCartesianMatches(t *testing.T) {
	fx := newFixture(ModeAtomic)
	fx.put(t, fixed(model.SideSell, "Copper Scrap", "60", "12"))
	fx.put(t, fixed(model.SideSell, "Copper Scrap", "40", "12"))
	fx.put(t, fixed(model.SideBuy, "Copper Scrap", "50", "10"))
	fx.put(t, fixed(model.SideBuy, "Copper Scrap", "50", "10"))

	res, err := newOptimizer(fx, false).Run(fx.ctx, "Copper Scrap", dec("100"))
	require.NoError(t, err)
	require.Len(t, res.Matches, 4)
	expect := []string{"30", "20", "30", "20"}
	for i, m := range res.Matches {
		require.True(t, m.Quantity.Equal(dec(expect[i])), "row %d: %s", i, m.Quantity)
	}
	require.Len(t, res.Shipments, 2)
}

func TestOptimizerShortSupply(t *testing.T) {
	fx := newFixture(ModeAtomic)
	fx.put(t, fixed(model.SideSell, "Copper Scrap", "60", "12"))
	fx.put(t, fixed(model.SideBuy, "Copper Scrap", "200", "10"))

	_, err := newOptimizer(fx, false).Run(fx.ctx, "Copper Scrap", dec("100"))
	require.ErrorIs(t, err, ErrNotEnoughSell)

	fx.put(t, fixed(model.SideSell, "Copper Scrap", "60", "12"))
	_, err = newOptimizer(fx, false).Run(fx.ctx, "Copper Scrap", dec("300"))
	require.ErrorIs(t, err, ErrNotEnoughSell)

	fx.put(t, fixed(model.SideSell, "Copper Scrap", "200", "12"))
	_, err = newOptimizer(fx, false).Run(fx.ctx, "Copper Scrap", dec("300"))
	require.ErrorIs(t, err, ErrNotEnoughBuy)

	orders, matches, shipments, _, _ := fx.store.Counts()
	require.Equal(t, []int{0, 0, 0}, []int{orders, matches, shipments})
}

func TestOptimizerMarginInverted(t *testing.T) {
	fx := newFixture(ModeAtomic)
	fx.put(t, fixed(model.SideSell, "Copper Scrap", "100", "10"))
	fx.put(t, fixed(model.SideBuy, "Copper Scrap", "100", "11"))

	_, err := newOptimizer(fx, false).Run(fx.ctx, "Copper Scrap", dec("100"))
	require.ErrorIs(t, err, ErrMarginInverted)

	orders, _, _, _, _ := fx.store.Counts()
	require.Zero(t, orders)
}

func TestOptimizerTieBreak(t *testing.T) {
	fx := newFixture(ModeAtomic)
	first := fx.put(t, fixed(model.SideSell, "Copper Scrap", "50", "12"))
	fx.put(t, fixed(model.SideSell, "Copper Scrap", "50", "12"))
	fx.put(t, fixed(model.SideBuy, "Copper Scrap", "50", "10"))

	sel, err := newOptimizer(fx, false).Select(fx.ctx, "Copper Scrap", dec("50"))
	require.NoError(t, err)
	require.Len(t, sel.Sells, 1)
	require.Equal(t, first.ID, sel.Sells[0].Ticket.ID)
}

func TestOptimizerCurrency(t *testing.T) {
	fx := newFixture(ModeAtomic)
	fx.put(t, fixed(model.SideSell, "Copper Scrap", "60", "12"))
	eur := fixed(model.SideSell, "Copper Scrap", "60", "11.5")
	eur.Currency = "EUR"
	eur = fx.put(t, eur)
	fx.put(t, fixed(model.SideSell, "Copper Scrap", "60", "11"))
	fx.put(t, fixed(model.SideBuy, "Copper Scrap", "100", "10"))

	sel, err := newOptimizer(fx, false).Select(fx.ctx, "Copper Scrap", dec("100"))
	require.NoError(t, err)
	for _, a := range sel.Sells {
		require.NotEqual(t, eur.ID, a.Ticket.ID)
	}

	sel, err = newOptimizer(fx, true).Select(fx.ctx, "Copper Scrap", dec("100"))
	require.NoError(t, err)
	require.Equal(t, eur.ID, sel.Sells[1].Ticket.ID)
}

func TestOptimizerBooksSkipUnpriced(t *testing.T) {
	fx := newFixture(ModeAtomic)
	unpriced := fixed(model.SideBuy, "Copper Scrap", "100", "0")
	unpriced.PricingType = model.PricingIndex
	fx.put(t, unpriced)
	fx.put(t, fixed(model.SideBuy, "Copper Scrap", "100", "10"))
	pending := fixed(model.SideSell, "Copper Scrap", "100", "12")
	pending.Status = model.TicketStatusPendingApproval
	fx.put(t, pending)

	buys, sells, err := newOptimizer(fx, false).Books(fx.ctx, "Copper Scrap")
	require.NoError(t, err)
	require.Equal(t, 1, buys.Len())
	require.Equal(t, 0, sells.Len())
	require.True(t, BookEntry(buys.Min().(BuyEntry)).Price.Equal(dec("10")))
}
