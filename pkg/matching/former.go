// Package matching pairs buy tickets with sell tickets and turns the pairs into orders.
package matching

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"metaldesk/pkg/config"
	"metaldesk/pkg/locker"
	"metaldesk/pkg/model"
	"metaldesk/pkg/store"
	"metaldesk/pkg/xlog"
	"metaldesk/pkg/xnats"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var logger = xlog.GetLogger()

// Mode decides what a failed formation step does to the steps before it.
type Mode string

const (
	// ModeAtomic writes every row of an order in one transaction.
	ModeAtomic Mode = "atomic"
	// ModeBestEffort keeps the order once stored; later failures are reported, not rolled back.
	ModeBestEffort Mode = "best_effort"
)

const (
	KindManual    = "manual"
	KindOptimized = "optimized"
)

const (
	StepRemainder = "remainder_ticket"
	StepOrder     = "order"
	StepShipments = "planned_shipments"
	StepMatches   = "inventory_matches"
)

const (
	OutcomeCommitted = "committed"
	OutcomePartial   = "partial"
	OutcomeFailed    = "failed"
)

// Journal keeps a record of every formation attempt that reached the store.
type Journal interface {
	Append(v interface{}) error
}

// JournalEntry is one line of the formation journal.
type JournalEntry struct {
	Time       int64       `json:"time"`
	OrderID    string      `json:"orderID"`
	Kind       string      `json:"kind"`
	Mode       Mode        `json:"mode"`
	Outcome    string      `json:"outcome"`
	Steps      []string    `json:"steps"`
	StepErrors []StepError `json:"stepErrors,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Allocation is the quantity an order takes from one ticket.
type Allocation struct {
	Ticket   model.Ticket    `json:"ticket"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Result is everything a formation produced.
type Result struct {
	Order      model.Order             `json:"order"`
	Matches    []model.InventoryMatch  `json:"matches"`
	Shipments  []model.PlannedShipment `json:"shipments"`
	Remainder  *model.Ticket           `json:"remainderTicket,omitempty"`
	Leftovers  []model.Ticket          `json:"leftoverTickets,omitempty"`
	Hedges     []HedgePrefill          `json:"hedges"`
	StepErrors []StepError             `json:"stepErrors,omitempty"`
}

// ManualRequest pairs one buy ticket with one sell ticket.
// Resolution is required when their quantities differ.
type ManualRequest struct {
	BuyTicketID  int64       `json:"buyTicketID"`
	SellTicketID int64       `json:"sellTicketID"`
	Resolution   *Resolution `json:"resolution"`
}

type Former struct {
	store   store.Store
	locker  locker.Locker
	journal Journal
	events  xnats.Publisher

	mode         Mode
	hedgePercent decimal.Decimal

	newID func() string
	now   func() time.Time
}

func NewFormer(st store.Store, lk locker.Locker, jr Journal, pub xnats.Publisher, cfg config.Matching) *Former {
	mode := ModeAtomic
	if Mode(cfg.Mode) == ModeBestEffort {
		mode = ModeBestEffort
	}
	percent := decimal.NewFromFloat(cfg.HedgePercent)
	if !percent.IsPositive() {
		percent = decimal.NewFromInt(1)
	}
	if pub == nil {
		pub = xnats.Nop{}
	}
	return &Former{
		store:        st,
		locker:       lk,
		journal:      jr,
		events:       pub,
		mode:         mode,
		hedgePercent: percent,
		newID:        uuid.NewString,
		now:          time.Now,
	}
}

func (f *Former) Mode() Mode { return f.mode }

// FormManual forms an order from one buy and one sell ticket.
func (f *Former) FormManual(ctx context.Context, req ManualRequest) (res *Result, err error) {
	defer func() {
		if err != nil {
			logger.Warningf("manual match %d/%d: %v", req.BuyTicketID, req.SellTicketID, err)
		}
	}()

	buy, err := f.store.GetTicket(ctx, req.BuyTicketID)
	if err != nil {
		return nil, fmt.Errorf("load buy ticket %d: %w", req.BuyTicketID, err)
	}
	sell, err := f.store.GetTicket(ctx, req.SellTicketID)
	if err != nil {
		return nil, fmt.Errorf("load sell ticket %d: %w", req.SellTicketID, err)
	}
	if err = checkTicket(buy, model.SideBuy); err != nil {
		return nil, f.reject(err)
	}
	if err = checkTicket(sell, model.SideSell); err != nil {
		return nil, f.reject(err)
	}

	v := Evaluate(buy, sell)
	if err = v.HardIssue(); err != nil {
		return nil, f.reject(err)
	}

	p := &plan{
		kind:      KindManual,
		quantity:  Allocated(buy, sell),
		buyPrice:  v.BuyPrice,
		sellPrice: v.SellPrice,
	}
	if r, ok := DetectRemainder(buy, sell); ok {
		if req.Resolution == nil {
			return nil, f.reject(&RemainderError{Remainder: r})
		}
		t, rerr := r.Resolve(*req.Resolution)
		if rerr != nil {
			return nil, f.reject(rerr)
		}
		p.remainder = &t
	}
	p.buys = []Allocation{{Ticket: buy, Price: v.BuyPrice, Quantity: p.quantity}}
	p.sells = []Allocation{{Ticket: sell, Price: v.SellPrice, Quantity: p.quantity}}

	return f.form(ctx, p)
}

// FormOptimized forms one order from the ticket sets chosen by the optimizer.
func (f *Former) FormOptimized(ctx context.Context, sel Selection) (res *Result, err error) {
	defer func() {
		if err != nil {
			logger.Warningf("optimized match %s %s MT: %v", sel.CommodityType, sel.Target, err)
		}
	}()

	if len(sel.Sells) == 0 {
		return nil, f.reject(ErrNotEnoughSell)
	}
	if len(sel.Buys) == 0 {
		return nil, f.reject(ErrNotEnoughBuy)
	}
	if !sel.AvgBuyPrice.LessThan(sel.AvgSellPrice) {
		return nil, f.reject(ErrMarginInverted)
	}
	p := &plan{
		kind:      KindOptimized,
		buys:      sel.Buys,
		sells:     sel.Sells,
		quantity:  sel.Target,
		buyPrice:  sel.AvgBuyPrice,
		sellPrice: sel.AvgSellPrice,
		leftovers: append(Carryover(sel.Buys), Carryover(sel.Sells)...),
	}
	return f.form(ctx, p)
}

func checkTicket(t model.Ticket, side string) error {
	if t.Side != side {
		return fmt.Errorf("ticket %d is %q: %w", t.ID, t.Side, ErrWrongSide)
	}
	if t.Status != model.TicketStatusApproved {
		return fmt.Errorf("ticket %d is %q: %w", t.ID, t.Status, ErrTicketNotApproved)
	}
	return nil
}

func (f *Former) reject(err error) error {
	matchRejectionsTotal.WithLabelValues(rejectionReason(err)).Inc()
	return err
}

type plan struct {
	kind      string
	buys      []Allocation
	sells     []Allocation
	quantity  decimal.Decimal
	buyPrice  decimal.Decimal
	sellPrice decimal.Decimal
	remainder *model.Ticket
	leftovers []model.Ticket
}

func (p *plan) validate() error {
	if !p.quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	if !p.buyPrice.IsPositive() {
		return ErrPriceMissing
	}
	if !p.buyPrice.LessThan(p.sellPrice) {
		return ErrPriceInverted
	}
	return nil
}

func (p *plan) ticketIDs() []int64 {
	ids := make([]int64, 0, len(p.buys)+len(p.sells))
	for _, a := range p.buys {
		ids = append(ids, a.Ticket.ID)
	}
	for _, a := range p.sells {
		ids = append(ids, a.Ticket.ID)
	}
	return ids
}

type step struct {
	name     string
	critical bool
	run      func(ctx context.Context, st store.Store) error
}

func (f *Former) form(ctx context.Context, p *plan) (res *Result, err error) {
	if err = p.validate(); err != nil {
		return nil, f.reject(err)
	}

	release, err := f.locker.Lock(ctx, p.ticketIDs())
	if err != nil {
		return nil, f.reject(err)
	}
	defer release()

	if err = f.checkUnmatched(ctx, p); err != nil {
		return nil, err
	}

	start := f.now()
	defer observeFormation(p.kind, start)

	res = f.build(p)
	steps := f.steps(res)
	res.StepErrors, err = f.run(ctx, steps)

	entry := JournalEntry{
		Time:       start.UnixMilli(),
		OrderID:    res.Order.ID,
		Kind:       p.kind,
		Mode:       f.mode,
		Steps:      make([]string, 0, len(steps)),
		StepErrors: res.StepErrors,
	}
	for _, s := range steps {
		entry.Steps = append(entry.Steps, s.name)
	}
	switch {
	case err != nil:
		entry.Outcome = OutcomeFailed
		entry.Error = err.Error()
	case len(res.StepErrors) > 0:
		entry.Outcome = OutcomePartial
	default:
		entry.Outcome = OutcomeCommitted
	}
	f.record(entry)
	ordersFormedTotal.WithLabelValues(p.kind, entry.Outcome).Inc()

	if err != nil {
		return nil, err
	}

	f.publish(ctx, p, res)
	logger.Infof("order %s formed (%s, %s): %s MT buy %s sell %s margin %s",
		res.Order.ID, p.kind, entry.Outcome, res.Order.Quantity, res.Order.BuyPrice, res.Order.SellPrice, res.Order.Margin)
	return res, nil
}

// checkUnmatched runs under the ticket locks; a ticket already tied to an order cannot be allocated again.
func (f *Former) checkUnmatched(ctx context.Context, p *plan) error {
	ids := p.ticketIDs()
	open, err := f.store.ListTickets(ctx, store.TicketFilter{IDs: ids, Unmatched: true})
	if err != nil {
		return fmt.Errorf("check tickets: %w", err)
	}
	free := make(map[int64]bool, len(open))
	for _, t := range open {
		free[t.ID] = true
	}
	for _, id := range ids {
		if !free[id] {
			return f.reject(fmt.Errorf("ticket %d: %w", id, ErrTicketMatched))
		}
	}
	return nil
}

// build lays out every row of the order before anything is written.
func (f *Former) build(p *plan) *Result {
	first := p.buys[0].Ticket
	o := model.Order{
		ID:              f.newID(),
		BuyerTicketIDs:  joinIDs(p.buys),
		SellerTicketIDs: joinIDs(p.sells),
		CommodityType:   first.CommodityType,
		Quantity:        p.quantity,
		BuyPrice:        p.buyPrice,
		SellPrice:       p.sellPrice,
		Margin:          p.sellPrice.Sub(p.buyPrice).Div(p.buyPrice),
		Currency:        first.Currency,
		Status:          model.OrderStatusOpen,
		TransactionType: model.TransactionB2B,
		ShipFrom:        first.ShipFrom,
		ShipTo:          p.sells[0].Ticket.ShipTo,
		ProductDetails:  productDetails(first, p.quantity),
	}
	res := &Result{Order: o, Remainder: p.remainder, Leftovers: p.leftovers}

	sellPlanned := 0
	for _, s := range p.sells {
		if s.Ticket.PlannedShipments > sellPlanned {
			sellPlanned = s.Ticket.PlannedShipments
		}
	}
	seq := 0
	for _, b := range p.buys {
		n := DerivePlannedBlCount(b.Ticket.PlannedShipments, sellPlanned)
		for _, q := range SplitQuantity(b.Quantity, n) {
			seq++
			res.Shipments = append(res.Shipments, model.PlannedShipment{
				OrderID:  o.ID,
				TicketID: b.Ticket.ID,
				Seq:      seq,
				Quantity: q,
				Status:   model.ShipmentStatusPlanned,
			})
		}
	}

	for _, b := range p.buys {
		for _, s := range p.sells {
			q := b.Quantity
			if len(p.buys) > 1 || len(p.sells) > 1 {
				q = b.Quantity.Mul(s.Quantity).DivRound(p.quantity, 6)
			}
			res.Matches = append(res.Matches, model.InventoryMatch{
				OrderID:      o.ID,
				BuyTicketID:  b.Ticket.ID,
				SellTicketID: s.Ticket.ID,
				Quantity:     q,
			})
		}
	}

	res.Hedges = make([]HedgePrefill, 0)
	for _, a := range append(append([]Allocation(nil), p.buys...), p.sells...) {
		if h, ok := PrefillFor(a.Ticket, a.Quantity, f.hedgePercent); ok {
			res.Hedges = append(res.Hedges, h)
		}
	}
	return res
}

func (f *Former) steps(res *Result) []step {
	var steps []step
	if res.Remainder != nil || len(res.Leftovers) > 0 {
		steps = append(steps, step{name: StepRemainder, critical: true, run: func(ctx context.Context, st store.Store) error {
			if res.Remainder != nil {
				if err := st.CreateTicket(ctx, res.Remainder); err != nil {
					return err
				}
			}
			for i := range res.Leftovers {
				if err := st.CreateTicket(ctx, &res.Leftovers[i]); err != nil {
					return err
				}
			}
			return nil
		}})
	}
	steps = append(steps,
		step{name: StepOrder, critical: true, run: func(ctx context.Context, st store.Store) error {
			return st.CreateOrder(ctx, &res.Order)
		}},
		step{name: StepShipments, run: func(ctx context.Context, st store.Store) error {
			return st.CreatePlannedShipments(ctx, res.Shipments)
		}},
		step{name: StepMatches, run: func(ctx context.Context, st store.Store) error {
			return st.CreateInventoryMatches(ctx, res.Matches)
		}},
	)
	return steps
}

// run executes steps in order. Atomic mode fails as a whole; best effort mode stops only
// on a critical step and keeps going, uncancelled, once the order is stored.
func (f *Former) run(ctx context.Context, steps []step) (stepErrs []StepError, err error) {
	if f.mode == ModeAtomic {
		err = f.store.Transaction(ctx, func(tx store.Store) error {
			for _, s := range steps {
				if serr := s.run(ctx, tx); serr != nil {
					stepFailuresTotal.WithLabelValues(s.name).Inc()
					return fmt.Errorf("%s: %w", s.name, serr)
				}
			}
			return nil
		})
		return nil, err
	}

	for _, s := range steps {
		serr := s.run(ctx, f.store)
		if serr == nil {
			if s.name == StepOrder {
				ctx = context.WithoutCancel(ctx)
			}
			continue
		}
		stepFailuresTotal.WithLabelValues(s.name).Inc()
		if s.critical {
			return stepErrs, fmt.Errorf("%s: %w", s.name, serr)
		}
		logger.Errorf("step %s failed, continuing: %v", s.name, serr)
		stepErrs = append(stepErrs, StepError{Step: s.name, Err: serr.Error()})
	}
	return stepErrs, nil
}

func (f *Former) record(entry JournalEntry) {
	if f.journal == nil {
		return
	}
	if err := f.journal.Append(entry); err != nil {
		logger.Errorf("journal order %s: %v", entry.OrderID, err)
	}
}

func (f *Former) publish(ctx context.Context, p *plan, res *Result) {
	ev := xnats.OrderFormed{
		OrderID:       res.Order.ID,
		Mode:          p.kind,
		CommodityType: res.Order.CommodityType,
		Quantity:      res.Order.Quantity,
		BuyPrice:      res.Order.BuyPrice,
		SellPrice:     res.Order.SellPrice,
		Margin:        res.Order.Margin,
		Time:          f.now().UnixMilli(),
	}
	for _, a := range p.buys {
		ev.BuyerTicketIDs = append(ev.BuyerTicketIDs, a.Ticket.ID)
	}
	for _, a := range p.sells {
		ev.SellerTicketIDs = append(ev.SellerTicketIDs, a.Ticket.ID)
	}
	for _, e := range res.StepErrors {
		ev.StepErrors = append(ev.StepErrors, e.Error())
	}
	if err := f.events.Publish(ctx, xnats.SubjectOrderFormed, ev); err != nil {
		logger.Errorf("publish order %s: %v", res.Order.ID, err)
	}
}

// ConfirmHedges stores the hedge requests the user accepted, one per ticket. Only the ticket ids
// of the posted prefills are read; the rows are rebuilt from the stored order. No prefills means
// the user skipped hedging.
func (f *Former) ConfirmHedges(ctx context.Context, orderID string, prefills []HedgePrefill) (rows []model.HedgeRequest, err error) {
	defer func() {
		if err != nil {
			logger.Errorf("confirm hedges of order %s: %v", orderID, err)
		}
	}()

	if len(prefills) == 0 {
		logger.Infof("order %s: hedging skipped", orderID)
		return []model.HedgeRequest{}, nil
	}
	o, err := f.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", orderID, err)
	}
	members := map[int64]bool{}
	for _, id := range append(SplitIDs(o.BuyerTicketIDs), SplitIDs(o.SellerTicketIDs)...) {
		members[id] = true
	}

	var ids []int64
	seen := map[int64]bool{}
	for _, p := range prefills {
		if !members[p.TicketID] {
			return nil, fmt.Errorf("ticket %d, order %s: %w", p.TicketID, orderID, ErrNotInOrder)
		}
		if !seen[p.TicketID] {
			seen[p.TicketID] = true
			ids = append(ids, p.TicketID)
		}
	}

	release, err := f.locker.Lock(ctx, ids)
	if err != nil {
		return nil, err
	}
	defer release()

	proposed, err := f.Prefills(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("rebuild hedges: %w", err)
	}
	byTicket := make(map[int64]HedgePrefill, len(proposed))
	for _, p := range proposed {
		byTicket[p.TicketID] = p
	}
	stored, err := f.store.ListHedgeRequests(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load hedges: %w", err)
	}
	hedged := make(map[int64]bool, len(stored))
	for _, r := range stored {
		hedged[r.TicketID] = true
	}

	rows = make([]model.HedgeRequest, 0, len(ids))
	for _, id := range ids {
		p, ok := byTicket[id]
		if !ok {
			return nil, fmt.Errorf("ticket %d: %w", id, ErrNoExposure)
		}
		if hedged[id] {
			return nil, fmt.Errorf("ticket %d, order %s: %w", id, orderID, ErrHedgeExists)
		}
		rows = append(rows, p.request(orderID))
	}
	if err = f.store.CreateHedgeRequests(ctx, rows); err != nil {
		return nil, err
	}

	ev := xnats.HedgeConfirmed{OrderID: orderID, Time: f.now().UnixMilli()}
	for _, r := range rows {
		ev.HedgeIDs = append(ev.HedgeIDs, r.ID)
	}
	if perr := f.events.Publish(ctx, xnats.SubjectHedgeConfirmed, ev); perr != nil {
		logger.Errorf("publish hedges of order %s: %v", orderID, perr)
	}
	return rows, nil
}

// Prefills proposes the hedges of a stored order again, from its inventory matches.
func (f *Former) Prefills(ctx context.Context, orderID string) ([]HedgePrefill, error) {
	matches, err := f.store.ListInventoryMatches(ctx, orderID)
	if err != nil {
		return nil, err
	}
	allocated := map[int64]decimal.Decimal{}
	var order []int64
	add := func(id int64, q decimal.Decimal) {
		if _, ok := allocated[id]; !ok {
			order = append(order, id)
		}
		allocated[id] = allocated[id].Add(q)
	}
	for _, m := range matches {
		add(m.BuyTicketID, m.Quantity)
	}
	for _, m := range matches {
		add(m.SellTicketID, m.Quantity)
	}

	out := make([]HedgePrefill, 0)
	for _, id := range order {
		t, err := f.store.GetTicket(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load ticket %d: %w", id, err)
		}
		if h, ok := PrefillFor(t, allocated[id], f.hedgePercent); ok {
			out = append(out, h)
		}
	}
	return out, nil
}

func joinIDs(as []Allocation) string {
	parts := make([]string, len(as))
	for i, a := range as {
		parts[i] = strconv.FormatInt(a.Ticket.ID, 10)
	}
	return strings.Join(parts, ",")
}

// SplitIDs parses a comma joined ticket id list.
func SplitIDs(s string) []int64 {
	var out []int64
	for _, p := range strings.Split(s, ",") {
		if id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func productDetails(t model.Ticket, qty decimal.Decimal) string {
	s := t.CommodityType
	if g := grade(t); g != "" {
		s += " ISRI " + g
	}
	s += ", " + qty.StringFixed(3) + " MT"
	if t.CountryOfOrigin != "" {
		s += ", " + t.CountryOfOrigin
	}
	return s
}
