package matching

import (
	"context"
	"sync"
	"testing"

	"metaldesk/pkg/config"
	"metaldesk/pkg/locker"
	"metaldesk/pkg/model"
	"metaldesk/pkg/store"
	"metaldesk/pkg/xnats"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func fixed(side, commodity, qty, price string) model.Ticket {
	return model.Ticket{
		Side:            side,
		Status:          model.TicketStatusApproved,
		TransactionType: model.TransactionB2B,
		CommodityType:   commodity,
		Quantity:        dec(qty),
		Currency:        "USD",
		PricingType:     model.PricingFixed,
		SignedPrice:     decimal.NewNullDecimal(dec(price)),
		CountryOfOrigin: "US",
		ShipFrom:        "Houston",
		ShipTo:          "Busan",
	}
}

type memJournal struct {
	mu      sync.Mutex
	entries []JournalEntry
}

func (j *memJournal) Append(v interface{}) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, v.(JournalEntry))
	return nil
}

type fixture struct {
	ctx     context.Context
	store   *store.Memory
	locker  *locker.Local
	journal *memJournal
	events  *xnats.Recorder
	former  *Former
}

func newFixture(mode Mode) *fixture {
	fx := &fixture{
		ctx:     context.Background(),
		store:   store.NewMemory(),
		locker:  locker.NewLocal(),
		journal: &memJournal{},
		events:  &xnats.Recorder{},
	}
	fx.former = NewFormer(fx.store, fx.locker, fx.journal, fx.events, config.Matching{Mode: string(mode), HedgePercent: 1})
	return fx
}

func (fx *fixture) put(t *testing.T, tk model.Ticket) model.Ticket {
	require.NoError(t, fx.store.CreateTicket(fx.ctx, &tk))
	return tk
}
