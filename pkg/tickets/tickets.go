// Package tickets runs the ticket lifecycle: draft, approval routing, approval decisions.
package tickets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"metaldesk/pkg/approval"
	"metaldesk/pkg/matching"
	"metaldesk/pkg/model"
	"metaldesk/pkg/pricing"
	"metaldesk/pkg/store"
	"metaldesk/pkg/xlog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var logger = xlog.GetLogger()

var (
	ErrNoTrader          = errors.New("a trader is required to create tickets")
	ErrInvalidTicket     = errors.New("invalid ticket")
	ErrNotPending        = errors.New("ticket is not pending approval")
	ErrNotDraft          = errors.New("ticket is not a draft")
	ErrApprovalFailed    = errors.New("approval rules could not be evaluated")
	ErrUnsupportedStatus = errors.New("unsupported status")
)

var ticketsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "metaldesk_tickets_total",
		Help: "Tickets created and decided, by side and resulting status",
	},
	[]string{"side", "status"},
)

// Trader is the user on whose behalf tickets are written.
type Trader struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Service struct {
	store    store.Store
	approval approval.Evaluator
}

func New(st store.Store, ev approval.Evaluator) *Service {
	return &Service{store: st, approval: ev}
}

// Validate lists what keeps a draft from being stored.
func Validate(t model.Ticket) error {
	var problems []string
	if t.Side != model.SideBuy && t.Side != model.SideSell {
		problems = append(problems, "side")
	}
	if t.CommodityType == "" {
		problems = append(problems, "commodity_type")
	}
	if !t.Quantity.IsPositive() {
		problems = append(problems, "quantity")
	}
	problems = append(problems, pricing.Missing(pricing.FromTicket(t))...)
	if len(problems) > 0 {
		return fmt.Errorf("%w: missing or invalid %s", ErrInvalidTicket, strings.Join(problems, ", "))
	}
	return nil
}

// Create stores draft for trader and routes it through the approval rules.
// When the rules cannot be evaluated the ticket stays a Draft and the error is returned.
func (s *Service) Create(ctx context.Context, trader Trader, draft model.Ticket) (t model.Ticket, err error) {
	defer func() {
		if err != nil {
			logger.Errorf("create ticket for trader %d: %v", trader.ID, err)
		}
	}()

	if trader.ID == 0 {
		return t, ErrNoTrader
	}
	if err = Validate(draft); err != nil {
		return t, err
	}

	t = draft.Clone()
	t.Status = model.TicketStatusDraft
	t.TraderID = trader.ID
	t.TraderName = trader.Name
	t.RuleTriggered = ""
	t.RequiredApprovers = nil
	if t.TransactionType == "" {
		t.TransactionType = model.TransactionB2B
	}
	if err = s.store.CreateTicket(ctx, &t); err != nil {
		return t, err
	}

	if t, err = s.route(ctx, t); err != nil {
		return t, err
	}
	logger.Infof("ticket %d created by %s: %s", t.ID, trader.Name, t.Status)
	return t, nil
}

// Submit routes a Draft ticket through the approval rules again, after an earlier evaluation failed.
func (s *Service) Submit(ctx context.Context, id int64) (t model.Ticket, err error) {
	defer func() {
		if err != nil {
			logger.Errorf("submit ticket %d: %v", id, err)
		}
	}()

	t, err = s.store.GetTicket(ctx, id)
	if err != nil {
		return
	}
	if t.Status != model.TicketStatusDraft {
		return t, fmt.Errorf("ticket %d is %q: %w", id, t.Status, ErrNotDraft)
	}
	if t, err = s.route(ctx, t); err != nil {
		return t, err
	}
	logger.Infof("ticket %d submitted: %s", t.ID, t.Status)
	return t, nil
}

// route evaluates the approval rules for a stored Draft and moves it to Approved or PendingApproval.
func (s *Service) route(ctx context.Context, t model.Ticket) (model.Ticket, error) {
	d, err := s.approval.Evaluate(ctx, approval.AttributesOf(t, pricing.Price(t)))
	if err != nil {
		return t, fmt.Errorf("ticket %d: %w: %v", t.ID, ErrApprovalFailed, err)
	}

	patch := map[string]interface{}{"status": model.TicketStatusApproved}
	if d.RequiresApproval {
		patch = map[string]interface{}{
			"status":             model.TicketStatusPendingApproval,
			"rule_triggered":     d.RuleTriggered,
			"required_approvers": model.GormArray(d.RequiredApprovers),
		}
	}
	if err = s.store.UpdateTicket(ctx, t.ID, patch); err != nil {
		return t, err
	}
	t.Status = patch["status"].(string)
	t.RuleTriggered = d.RuleTriggered
	if d.RequiresApproval {
		t.RequiredApprovers = model.GormArray(d.RequiredApprovers)
	}

	ticketsTotal.WithLabelValues(t.Side, t.Status).Inc()
	logger.Debugf("ticket %d routed: %s", t.ID, d)
	return t, nil
}

func (s *Service) Approve(ctx context.Context, id int64) (model.Ticket, error) {
	return s.decide(ctx, id, model.TicketStatusApproved)
}

func (s *Service) Reject(ctx context.Context, id int64) (model.Ticket, error) {
	return s.decide(ctx, id, model.TicketStatusRejected)
}

func (s *Service) decide(ctx context.Context, id int64, status string) (t model.Ticket, err error) {
	t, err = s.store.GetTicket(ctx, id)
	if err != nil {
		return
	}
	if t.Status != model.TicketStatusPendingApproval {
		return t, fmt.Errorf("ticket %d is %q: %w", id, t.Status, ErrNotPending)
	}
	if err = s.store.UpdateTicket(ctx, id, map[string]interface{}{"status": status}); err != nil {
		return
	}
	t.Status = status
	ticketsTotal.WithLabelValues(t.Side, status).Inc()
	logger.Infof("ticket %d %s", id, strings.ToLower(status))
	return t, nil
}

func (s *Service) Get(ctx context.Context, id int64) (model.Ticket, error) {
	return s.store.GetTicket(ctx, id)
}

// ListOpen returns approved tickets not yet tied to an order; empty filters match all.
func (s *Service) ListOpen(ctx context.Context, side, commodity string) ([]model.Ticket, error) {
	return s.store.ListTickets(ctx, store.TicketFilter{
		Side:          side,
		Status:        model.TicketStatusApproved,
		CommodityType: commodity,
		Unmatched:     true,
	})
}

// List returns tickets in any status.
func (s *Service) List(ctx context.Context, side, status, commodity string) ([]model.Ticket, error) {
	return s.store.ListTickets(ctx, store.TicketFilter{Side: side, Status: status, CommodityType: commodity})
}

// Candidates lists the open tickets of the other side that could be matched with id.
func (s *Service) Candidates(ctx context.Context, id int64) ([]matching.Verdict, error) {
	t, err := s.store.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	other := model.SideSell
	if !t.IsBuy() {
		other = model.SideBuy
	}
	open, err := s.ListOpen(ctx, other, "")
	if err != nil {
		return nil, err
	}
	return matching.Candidates(t, open), nil
}

// Compare evaluates a buy ticket against a sell ticket.
func (s *Service) Compare(ctx context.Context, buyID, sellID int64) (v matching.Verdict, err error) {
	buy, err := s.store.GetTicket(ctx, buyID)
	if err != nil {
		return
	}
	sell, err := s.store.GetTicket(ctx, sellID)
	if err != nil {
		return
	}
	return matching.Evaluate(buy, sell), nil
}
