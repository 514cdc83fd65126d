package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"metaldesk/pkg/model"

	"github.com/shopspring/decimal"
)

// Memory is an in-process Store. Transactions are serialized and roll back through an undo log.
type Memory struct {
	mu   sync.Mutex
	txMu sync.Mutex

	seq       int64
	tickets   map[int64]model.Ticket
	orders    map[string]model.Order
	matches   []model.InventoryMatch
	shipments []model.PlannedShipment
	hedges    []model.HedgeRequest

	failures map[string]error
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		tickets:  map[int64]model.Ticket{},
		orders:   map[string]model.Order{},
		failures: map[string]error{},
	}
}

// FailOn makes the named method (e.g. "CreatePlannedShipments") return err until cleared with nil.
func (s *Memory) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

func (s *Memory) fail(method string) error {
	return s.failures[method]
}

func (s *Memory) nextID() int64 {
	s.seq++
	return s.seq
}

func (s *Memory) CreateTicket(ctx context.Context, t *model.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateTicket"); err != nil {
		return err
	}
	if t.ID == 0 {
		t.ID = s.nextID()
	} else if _, ok := s.tickets[t.ID]; ok {
		return fmt.Errorf("duplicate ticket id %d", t.ID)
	} else if t.ID > s.seq {
		s.seq = t.ID
	}
	now := time.Now()
	t.CreatedAt, t.UpdatedAt = now, now
	c := t.Clone()
	c.ID, c.Model = t.ID, t.Model
	s.tickets[t.ID] = c
	return nil
}

func (s *Memory) GetTicket(ctx context.Context, id int64) (model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetTicket"); err != nil {
		return model.Ticket{}, err
	}
	t, ok := s.tickets[id]
	if !ok {
		return model.Ticket{}, ErrNotFound
	}
	return t, nil
}

// UpdateTicket understands the columns the desk patches.
func (s *Memory) UpdateTicket(ctx context.Context, id int64, patch map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdateTicket"); err != nil {
		return err
	}
	t, ok := s.tickets[id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range patch {
		switch k {
		case "status":
			t.Status = v.(string)
		case "quantity":
			t.Quantity = v.(decimal.Decimal)
		case "rule_triggered":
			t.RuleTriggered = v.(string)
		case "required_approvers":
			t.RequiredApprovers = v.(model.GormArray)
		default:
			return fmt.Errorf("unsupported ticket column %q", k)
		}
	}
	t.UpdatedAt = time.Now()
	s.tickets[id] = t
	return nil
}

func (s *Memory) ListTickets(ctx context.Context, f TicketFilter) ([]model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListTickets"); err != nil {
		return nil, err
	}

	var ids map[int64]bool
	if len(f.IDs) > 0 {
		ids = map[int64]bool{}
		for _, id := range f.IDs {
			ids[id] = true
		}
	}
	matched := map[int64]bool{}
	if f.Unmatched {
		for _, m := range s.matches {
			matched[m.BuyTicketID] = true
			matched[m.SellTicketID] = true
		}
	}

	out := make([]model.Ticket, 0)
	for _, t := range s.tickets {
		switch {
		case ids != nil && !ids[t.ID]:
		case f.Side != "" && t.Side != f.Side:
		case f.Status != "" && t.Status != f.Status:
		case f.CommodityType != "" && t.CommodityType != f.CommodityType:
		case matched[t.ID]:
		default:
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Memory) CreateOrder(ctx context.Context, o *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateOrder"); err != nil {
		return err
	}
	if _, ok := s.orders[o.ID]; ok {
		return fmt.Errorf("duplicate order id %s", o.ID)
	}
	now := time.Now()
	o.CreatedAt, o.UpdatedAt = now, now
	s.orders[o.ID] = *o
	return nil
}

func (s *Memory) GetOrder(ctx context.Context, id string) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return model.Order{}, ErrNotFound
	}
	return o, nil
}

func (s *Memory) CreateInventoryMatches(ctx context.Context, rows []model.InventoryMatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateInventoryMatches"); err != nil {
		return err
	}
	for i := range rows {
		rows[i].ID = s.nextID()
		s.matches = append(s.matches, rows[i])
	}
	return nil
}

func (s *Memory) ListInventoryMatches(ctx context.Context, orderID string) ([]model.InventoryMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.InventoryMatch, 0)
	for _, m := range s.matches {
		if m.OrderID == orderID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Memory) CreatePlannedShipments(ctx context.Context, rows []model.PlannedShipment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreatePlannedShipments"); err != nil {
		return err
	}
	for i := range rows {
		rows[i].ID = s.nextID()
		s.shipments = append(s.shipments, rows[i])
	}
	return nil
}

func (s *Memory) ListPlannedShipments(ctx context.Context, orderID string) ([]model.PlannedShipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.PlannedShipment, 0)
	for _, m := range s.shipments {
		if m.OrderID == orderID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (s *Memory) CreateHedgeRequests(ctx context.Context, rows []model.HedgeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateHedgeRequests"); err != nil {
		return err
	}
	for i := range rows {
		rows[i].ID = s.nextID()
		s.hedges = append(s.hedges, rows[i])
	}
	return nil
}

func (s *Memory) ListHedgeRequests(ctx context.Context, orderID string) ([]model.HedgeRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.HedgeRequest, 0)
	for _, m := range s.hedges {
		if m.OrderID == orderID {
			out = append(out, m)
		}
	}
	return out, nil
}

// Counts returns the number of orders, matches, shipments, hedges and tickets held.
func (s *Memory) Counts() (orders, matches, shipments, hedges, tickets int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders), len(s.matches), len(s.shipments), len(s.hedges), len(s.tickets)
}

// memoryTx writes through to the store and remembers how to take back each of its own writes.
// Rollback never touches rows written outside the transaction.
type memoryTx struct {
	*Memory
	undo []func()
}

var _ Store = (*memoryTx)(nil)

func (tx *memoryTx) CreateTicket(ctx context.Context, t *model.Ticket) error {
	if err := tx.Memory.CreateTicket(ctx, t); err != nil {
		return err
	}
	id := t.ID
	tx.undo = append(tx.undo, func() { delete(tx.tickets, id) })
	return nil
}

func (tx *memoryTx) UpdateTicket(ctx context.Context, id int64, patch map[string]interface{}) error {
	prev, err := tx.Memory.GetTicket(ctx, id)
	if err != nil {
		return err
	}
	if err = tx.Memory.UpdateTicket(ctx, id, patch); err != nil {
		return err
	}
	tx.undo = append(tx.undo, func() { tx.tickets[id] = prev })
	return nil
}

func (tx *memoryTx) CreateOrder(ctx context.Context, o *model.Order) error {
	if err := tx.Memory.CreateOrder(ctx, o); err != nil {
		return err
	}
	id := o.ID
	tx.undo = append(tx.undo, func() { delete(tx.orders, id) })
	return nil
}

func (tx *memoryTx) CreateInventoryMatches(ctx context.Context, rows []model.InventoryMatch) error {
	if err := tx.Memory.CreateInventoryMatches(ctx, rows); err != nil {
		return err
	}
	ids := rowIDs(len(rows), func(i int) int64 { return rows[i].ID })
	tx.undo = append(tx.undo, func() {
		tx.matches = dropRows(tx.matches, ids, func(m model.InventoryMatch) int64 { return m.ID })
	})
	return nil
}

func (tx *memoryTx) CreatePlannedShipments(ctx context.Context, rows []model.PlannedShipment) error {
	if err := tx.Memory.CreatePlannedShipments(ctx, rows); err != nil {
		return err
	}
	ids := rowIDs(len(rows), func(i int) int64 { return rows[i].ID })
	tx.undo = append(tx.undo, func() {
		tx.shipments = dropRows(tx.shipments, ids, func(m model.PlannedShipment) int64 { return m.ID })
	})
	return nil
}

func (tx *memoryTx) CreateHedgeRequests(ctx context.Context, rows []model.HedgeRequest) error {
	if err := tx.Memory.CreateHedgeRequests(ctx, rows); err != nil {
		return err
	}
	ids := rowIDs(len(rows), func(i int) int64 { return rows[i].ID })
	tx.undo = append(tx.undo, func() {
		tx.hedges = dropRows(tx.hedges, ids, func(m model.HedgeRequest) int64 { return m.ID })
	})
	return nil
}

// Transaction on a transaction joins it.
func (tx *memoryTx) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return fn(tx)
}

func (tx *memoryTx) rollback() {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func rowIDs(n int, id func(i int) int64) map[int64]bool {
	ids := make(map[int64]bool, n)
	for i := 0; i < n; i++ {
		ids[id(i)] = true
	}
	return ids
}

func dropRows[T any](rows []T, ids map[int64]bool, id func(T) int64) []T {
	out := rows[:0]
	for _, r := range rows {
		if !ids[id(r)] {
			out = append(out, r)
		}
	}
	return out
}

// Transaction serializes transactions against each other. Writes made outside a transaction
// go ahead and survive its rollback. Ids handed out inside a rolled back transaction are not reused.
func (s *Memory) Transaction(ctx context.Context, fn func(tx Store) error) (err error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memoryTx{Memory: s}
	defer func() {
		if r := recover(); r != nil {
			tx.rollback()
			panic(r)
		}
		if err != nil {
			tx.rollback()
		}
	}()

	return fn(tx)
}
