package model

import (
	"github.com/shopspring/decimal"
)

// Order is one buy-side aggregate matched against one sell-side aggregate for a fixed quantity.
type Order struct {
	ID string `json:"id" gorm:"omitempty; primaryKey; type:varchar(36);"`

	BuyerTicketIDs  string `json:"buyerTicketIDs" gorm:"omitempty; not null; default:''; type:varchar(512);"` // comma joined
	SellerTicketIDs string `json:"sellerTicketIDs" gorm:"omitempty; not null; default:''; type:varchar(512);"`

	CommodityType string          `json:"commodityType" gorm:"omitempty; not null; default:''; type:varchar(64); index;"`
	Quantity      decimal.Decimal `json:"quantity" gorm:"omitempty; not null; default:0; type:decimal(36,18);"` // allocated MT
	BuyPrice      decimal.Decimal `json:"buyPrice" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`
	SellPrice     decimal.Decimal `json:"sellPrice" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`
	Margin        decimal.Decimal `json:"margin" gorm:"omitempty; not null; default:0; type:decimal(36,18);"` // (sell-buy)/buy
	Currency      string          `json:"currency" gorm:"omitempty; not null; default:''; type:varchar(8);"`

	Status          string `json:"status" gorm:"omitempty; not null; default:''; type:varchar(32);"`
	TransactionType string `json:"transactionType" gorm:"omitempty; not null; default:'B2B'; type:varchar(16);"`
	ShipFrom        string `json:"shipFrom" gorm:"omitempty; not null; default:''; type:varchar(128);"`
	ShipTo          string `json:"shipTo" gorm:"omitempty; not null; default:''; type:varchar(128);"`
	ProductDetails  string `json:"productDetails" gorm:"omitempty; not null; default:''; type:varchar(255);"`

	Model
}

const (
	OrderStatusOpen = "Open"
)

func (Order) TableName() string { return TableOrders }

// InventoryMatch links one buy ticket and one sell ticket to the order they produced.
type InventoryMatch struct {
	ID int64 `json:"id" gorm:"omitempty; primaryKey;"`

	OrderID      string          `json:"orderID" gorm:"omitempty; not null; default:''; type:varchar(36); index;"`
	BuyTicketID  int64           `json:"buyTicketID" gorm:"omitempty; not null; default:0; index;"`
	SellTicketID int64           `json:"sellTicketID" gorm:"omitempty; not null; default:0; index;"`
	Quantity     decimal.Decimal `json:"quantity" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`

	Model
}

func (InventoryMatch) TableName() string { return TableInventoryMatches }

// PlannedShipment is a placeholder bill of lading row generated with the order.
type PlannedShipment struct {
	ID int64 `json:"id" gorm:"omitempty; primaryKey;"`

	OrderID  string          `json:"orderID" gorm:"omitempty; not null; default:''; type:varchar(36); index;"`
	TicketID int64           `json:"ticketID" gorm:"omitempty; not null; default:0; index;"` // originating buy ticket
	Seq      int             `json:"seq" gorm:"omitempty; not null; default:0;"`
	Quantity decimal.Decimal `json:"quantity" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`
	Status   string          `json:"status" gorm:"omitempty; not null; default:''; type:varchar(32);"`

	Model
}

const ShipmentStatusPlanned = "Planned"

func (PlannedShipment) TableName() string { return TablePlannedShipments }

// HedgeRequest is a confirmed request to offset the floating price exposure of one order side.
type HedgeRequest struct {
	ID int64 `json:"id" gorm:"omitempty; primaryKey;"`

	OrderID     string          `json:"orderID" gorm:"omitempty; not null; default:''; type:varchar(36); index;"`
	TicketID    int64           `json:"ticketID" gorm:"omitempty; not null; default:0; index;"`
	Side        string          `json:"side" gorm:"omitempty; not null; default:''; type:varchar(8);"`      // side of the hedged ticket
	Direction   string          `json:"direction" gorm:"omitempty; not null; default:''; type:varchar(8);"` // Buy or Sell on the exchange
	Quantity    decimal.Decimal `json:"quantity" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`
	PriceSource string          `json:"priceSource" gorm:"omitempty; not null; default:''; type:varchar(16);"`
	Metal       string          `json:"metal" gorm:"omitempty; not null; default:''; type:varchar(32);"`
	PricingType string          `json:"pricingType" gorm:"omitempty; not null; default:''; type:varchar(16);"`
	QPStart     GormTime        `json:"qpStart"`
	QPEnd       GormTime        `json:"qpEnd"`
	Status      string          `json:"status" gorm:"omitempty; not null; default:''; type:varchar(32);"`

	Model
}

const HedgeStatusRequested = "Requested"

func (HedgeRequest) TableName() string { return TableHedgeRequests }
