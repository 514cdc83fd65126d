package matching

import (
	"testing"

	"metaldesk/pkg/model"

	"github.com/stretchr/testify/require"
)

func TestDetectRemainder(t *testing.T) {
	buy := fixed(model.SideBuy, "Copper Scrap", "150", "10")
	sell := fixed(model.SideSell, "Copper Scrap", "100", "12")

	r, ok := DetectRemainder(buy, sell)
	require.True(t, ok)
	require.Equal(t, SurplusBuy, r.SurplusSide)
	require.True(t, r.RemainderMT.Equal(dec("50")))
	require.True(t, Allocated(buy, sell).Equal(dec("100")))

	r, ok = DetectRemainder(sell, buy)
	require.True(t, ok)
	require.Equal(t, SurplusSell, r.SurplusSide)

	_, ok = DetectRemainder(fixed(model.SideBuy, "Copper Scrap", "100", "10"), sell)
	require.False(t, ok)
}

func TestRemainderResolve(t *testing.T) {
	buy := fixed(model.SideBuy, "Copper Scrap", "150", "10")
	buy.ID = 7
	buy.Status = model.TicketStatusApproved
	buy.TraderName = "Ana"
	r, _ := DetectRemainder(buy, fixed(model.SideSell, "Copper Scrap", "100", "12"))

	nt, err := r.Resolve(Resolution{Strategy: StrategyNewTicket})
	require.NoError(t, err)
	require.Zero(t, nt.ID)
	require.True(t, nt.Quantity.Equal(dec("50")))
	require.Equal(t, model.TicketStatusApproved, nt.Status)
	require.Equal(t, model.TransactionB2B, nt.TransactionType)
	require.Equal(t, "Ana", nt.TraderName)
	require.True(t, nt.SignedPrice.Decimal.Equal(dec("10")))

	inv, err := r.Resolve(Resolution{Strategy: StrategyInventory, Warehouse: "Rotterdam WH2"})
	require.NoError(t, err)
	require.Equal(t, model.TransactionInventory, inv.TransactionType)
	require.Equal(t, "Rotterdam WH2", inv.ShipTo)
	require.True(t, inv.Quantity.Equal(dec("50")))

	_, err = r.Resolve(Resolution{Strategy: StrategyInventory})
	require.ErrorIs(t, err, ErrWarehouseRequired)

	_, err = r.Resolve(Resolution{Strategy: StrategyAdjust})
	require.ErrorIs(t, err, ErrAdjustRequested)

	_, err = r.Resolve(Resolution{Strategy: "split"})
	require.ErrorIs(t, err, ErrUnknownStrategy)

	// the reference ticket is untouched
	require.True(t, r.ReferenceTicket.Quantity.Equal(dec("150")))
}
