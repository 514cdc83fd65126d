package model

const (
	TableTickets          = "tickets"
	TableOrders           = "orders"
	TableInventoryMatches = "inventory_matches"
	TablePlannedShipments = "planned_shipments"
	TableHedgeRequests    = "hedge_requests"
)

// All returns every model, in migration order.
func All() []interface{} {
	return []interface{}{
		&Ticket{},
		&Order{},
		&InventoryMatch{},
		&PlannedShipment{},
		&HedgeRequest{},
	}
}

func TableNames() []string {
	return []string{TableTickets, TableOrders, TableInventoryMatches, TablePlannedShipments, TableHedgeRequests}
}
