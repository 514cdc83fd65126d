// Package store is the data-access layer the desk runs on: a gorm/mysql implementation
// for production and an in-memory one for tests and dry runs.
package store

import (
	"context"
	"errors"

	"metaldesk/pkg/model"
)

var ErrNotFound = errors.New("record not found")

// TicketFilter selects tickets; zero fields do not filter.
type TicketFilter struct {
	IDs           []int64
	Side          string
	Status        string
	CommodityType string
	Unmatched     bool // exclude tickets referenced by an inventory match
}

// Store is every read and write the desk performs.
type Store interface {
	CreateTicket(ctx context.Context, t *model.Ticket) error
	GetTicket(ctx context.Context, id int64) (model.Ticket, error)
	UpdateTicket(ctx context.Context, id int64, patch map[string]interface{}) error
	ListTickets(ctx context.Context, f TicketFilter) ([]model.Ticket, error)

	CreateOrder(ctx context.Context, o *model.Order) error
	GetOrder(ctx context.Context, id string) (model.Order, error)

	CreateInventoryMatches(ctx context.Context, rows []model.InventoryMatch) error
	ListInventoryMatches(ctx context.Context, orderID string) ([]model.InventoryMatch, error)

	CreatePlannedShipments(ctx context.Context, rows []model.PlannedShipment) error
	ListPlannedShipments(ctx context.Context, orderID string) ([]model.PlannedShipment, error)

	CreateHedgeRequests(ctx context.Context, rows []model.HedgeRequest) error
	ListHedgeRequests(ctx context.Context, orderID string) ([]model.HedgeRequest, error)

	// Transaction runs fn against a store whose writes commit only if fn returns nil.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}
