package store_test

import (
	"context"
	"errors"
	"testing"

	"metaldesk/pkg/model"
	"metaldesk/pkg/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestMemoryTickets(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	buy := model.Ticket{Side: model.SideBuy, Status: model.TicketStatusApproved, CommodityType: "Copper", Quantity: decimal.NewFromInt(10)}
	sell := model.Ticket{Side: model.SideSell, Status: model.TicketStatusApproved, CommodityType: "Copper", Quantity: decimal.NewFromInt(10)}
	alu := model.Ticket{Side: model.SideSell, Status: model.TicketStatusDraft, CommodityType: "Aluminium"}
	require.Nil(t, s.CreateTicket(ctx, &buy))
	require.Nil(t, s.CreateTicket(ctx, &sell))
	require.Nil(t, s.CreateTicket(ctx, &alu))
	require.NotZero(t, buy.ID)
	require.NotEqual(t, buy.ID, sell.ID)

	got, err := s.GetTicket(ctx, sell.ID)
	require.Nil(t, err)
	require.Equal(t, "Copper", got.CommodityType)

	_, err = s.GetTicket(ctx, 999)
	require.ErrorIs(t, err, store.ErrNotFound)

	list, err := s.ListTickets(ctx, store.TicketFilter{CommodityType: "Copper", Status: model.TicketStatusApproved})
	require.Nil(t, err)
	require.Len(t, list, 2)
	require.Equal(t, buy.ID, list[0].ID)

	require.Nil(t, s.CreateInventoryMatches(ctx, []model.InventoryMatch{{OrderID: "o1", BuyTicketID: buy.ID, SellTicketID: sell.ID}}))
	list, err = s.ListTickets(ctx, store.TicketFilter{CommodityType: "Copper", Unmatched: true})
	require.Nil(t, err)
	require.Empty(t, list)

	require.Nil(t, s.UpdateTicket(ctx, alu.ID, map[string]interface{}{"status": model.TicketStatusApproved}))
	got, _ = s.GetTicket(ctx, alu.ID)
	require.Equal(t, model.TicketStatusApproved, got.Status)
	require.NotNil(t, s.UpdateTicket(ctx, alu.ID, map[string]interface{}{"nope": 1}))
}

func TestMemoryTransactionRollback(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	boom := errors.New("boom")

	err := s.Transaction(ctx, func(tx store.Store) error {
		require.Nil(t, tx.CreateOrder(ctx, &model.Order{ID: "o1"}))
		require.Nil(t, tx.CreatePlannedShipments(ctx, []model.PlannedShipment{{OrderID: "o1", Seq: 1}}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetOrder(ctx, "o1")
	require.ErrorIs(t, err, store.ErrNotFound)
	orders, _, shipments, _, _ := s.Counts()
	require.Zero(t, orders)
	require.Zero(t, shipments)

	require.Nil(t, s.Transaction(ctx, func(tx store.Store) error {
		return tx.CreateOrder(ctx, &model.Order{ID: "o2"})
	}))
	_, err = s.GetOrder(ctx, "o2")
	require.Nil(t, err)
}

func TestMemoryRollbackKeepsOutsideWrites(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	boom := errors.New("boom")

	kept := model.Ticket{Side: model.SideBuy, Status: model.TicketStatusDraft, CommodityType: "Copper"}
	require.Nil(t, s.CreateTicket(ctx, &kept))

	var outside, inside model.Ticket
	err := s.Transaction(ctx, func(tx store.Store) error {
		inside = model.Ticket{Side: model.SideSell, Status: model.TicketStatusApproved, CommodityType: "Copper"}
		require.Nil(t, tx.CreateTicket(ctx, &inside))
		require.Nil(t, tx.UpdateTicket(ctx, kept.ID, map[string]interface{}{"status": model.TicketStatusApproved}))
		require.Nil(t, tx.CreateInventoryMatches(ctx, []model.InventoryMatch{{OrderID: "o1", BuyTicketID: kept.ID, SellTicketID: inside.ID}}))

		// another request writes while the transaction is open
		outside = model.Ticket{Side: model.SideSell, Status: model.TicketStatusDraft, CommodityType: "Copper"}
		require.Nil(t, s.CreateTicket(ctx, &outside))
		require.Nil(t, s.CreatePlannedShipments(ctx, []model.PlannedShipment{{OrderID: "o0", Seq: 1}}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetTicket(ctx, inside.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	got, err := s.GetTicket(ctx, kept.ID)
	require.Nil(t, err)
	require.Equal(t, model.TicketStatusDraft, got.Status)
	_, err = s.GetTicket(ctx, outside.ID)
	require.Nil(t, err)

	_, matches, shipments, _, tickets := s.Counts()
	require.Zero(t, matches)
	require.Equal(t, 1, shipments)
	require.Equal(t, 2, tickets)
}

func TestMemoryFailOn(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	boom := errors.New("insert failed")

	s.FailOn("CreateTicket", boom)
	require.ErrorIs(t, s.CreateTicket(ctx, &model.Ticket{}), boom)

	s.FailOn("CreateTicket", nil)
	require.Nil(t, s.CreateTicket(ctx, &model.Ticket{}))
}
