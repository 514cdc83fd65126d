package model

import (
	"github.com/shopspring/decimal"
)

// Ticket is a standing buy or sell intent of a counterparty.
//
// The pricing columns are a flat bag; which ones matter depends on PricingType
// (see package pricing for the typed view).
type Ticket struct {
	ID int64 `json:"id" gorm:"omitempty; primaryKey;"`

	Side            string `json:"side" gorm:"omitempty; not null; default:''; type:varchar(8); index:idx_t_open;"`
	Status          string `json:"status" gorm:"omitempty; not null; default:''; type:varchar(32); index:idx_t_open;"`
	TransactionType string `json:"transactionType" gorm:"omitempty; not null; default:'B2B'; type:varchar(16);"`

	CommodityType string          `json:"commodityType" gorm:"omitempty; not null; default:''; type:varchar(64); index:idx_t_open;"`
	IsriGrade     *string         `json:"isriGrade" gorm:"type:varchar(32);"`
	Quantity      decimal.Decimal `json:"quantity" gorm:"omitempty; not null; default:0; type:decimal(36,18);"` // metric tons
	Currency      string          `json:"currency" gorm:"omitempty; not null; default:''; type:varchar(8);"`

	PricingType     string              `json:"pricingType" gorm:"omitempty; not null; default:''; type:varchar(16);"` // Fixed, Formula, Index
	SignedPrice     decimal.NullDecimal `json:"signedPrice" gorm:"type:decimal(36,18);"`
	LmePrice        decimal.NullDecimal `json:"lmePrice" gorm:"type:decimal(36,18);"`
	PayablePercent  decimal.NullDecimal `json:"payablePercent" gorm:"type:decimal(36,18);"` // 0-1
	PremiumDiscount decimal.NullDecimal `json:"premiumDiscount" gorm:"type:decimal(36,18);"`
	LmeActionNeeded *bool               `json:"lmeActionNeeded" gorm:"type:tinyint(1);"`
	QPStart         GormTime            `json:"qpStart"`
	QPEnd           GormTime            `json:"qpEnd"`

	CountryOfOrigin string `json:"countryOfOrigin" gorm:"omitempty; not null; default:''; type:varchar(64);"`
	ShipFrom        string `json:"shipFrom" gorm:"omitempty; not null; default:''; type:varchar(128);"`
	ShipTo          string `json:"shipTo" gorm:"omitempty; not null; default:''; type:varchar(128);"`
	Incoterms       string `json:"incoterms" gorm:"omitempty; not null; default:''; type:varchar(16);"`
	PaymentTerms    string `json:"paymentTerms" gorm:"omitempty; not null; default:''; type:varchar(128);"`

	CompanyID        int64  `json:"companyID" gorm:"omitempty; not null; default:0; index;"` // counterparty
	TraderID         int64  `json:"traderID" gorm:"omitempty; not null; default:0; index;"`
	TraderName       string `json:"traderName" gorm:"omitempty; not null; default:''; type:varchar(64);"`
	PlannedShipments int    `json:"plannedShipments" gorm:"omitempty; not null; default:0;"`

	RuleTriggered     string    `json:"ruleTriggered" gorm:"omitempty; not null; default:''; type:varchar(128);"`
	RequiredApprovers GormArray `json:"requiredApprovers"`

	Model
}

const (
	SideBuy  = "Buy"
	SideSell = "Sell"

	TicketStatusDraft           = "Draft"
	TicketStatusPendingApproval = "Pending Approval"
	TicketStatusApproved        = "Approved"
	TicketStatusRejected        = "Rejected"

	PricingFixed   = "Fixed"
	PricingFormula = "Formula"
	PricingIndex   = "Index"

	TransactionB2B       = "B2B"
	TransactionInventory = "Inventory"
)

func (Ticket) TableName() string { return TableTickets }

// IsBuy reports whether the ticket is on the buy side.
func (t Ticket) IsBuy() bool { return t.Side == SideBuy }

// Clone copies every field except the id and timestamps.
func (t Ticket) Clone() Ticket {
	c := t
	c.ID = 0
	c.Model = Model{}
	if t.IsriGrade != nil {
		g := *t.IsriGrade
		c.IsriGrade = &g
	}
	if t.LmeActionNeeded != nil {
		b := *t.LmeActionNeeded
		c.LmeActionNeeded = &b
	}
	if t.RequiredApprovers != nil {
		c.RequiredApprovers = append(GormArray{}, t.RequiredApprovers...)
	}
	return c
}
