package matching

import (
	"metaldesk/pkg/model"
	"metaldesk/pkg/pricing"

	"github.com/shopspring/decimal"
)

// Attributes compared between a buy and a sell ticket, in check order.
const (
	AttrProduct  = "product"
	AttrIsri     = "isri"
	AttrOrigin   = "origin"
	AttrCurrency = "currency"
	AttrPrice    = "price"
)

// Verdict is the pairwise comparison of a buy ticket with a sell ticket.
type Verdict struct {
	BuyTicketID  int64           `json:"buyTicketID"`
	SellTicketID int64           `json:"sellTicketID"`
	Matches      []string        `json:"matches"`
	Issues       []string        `json:"issues"`
	BuyPrice     decimal.Decimal `json:"buyPrice"`
	SellPrice    decimal.Decimal `json:"sellPrice"`
}

// Evaluate compares buy against sell. Product and price are always checked;
// isri, origin and currency are skipped when either side lacks a value.
func Evaluate(buy, sell model.Ticket) Verdict {
	v := Verdict{
		BuyTicketID:  buy.ID,
		SellTicketID: sell.ID,
		Matches:      []string{},
		Issues:       []string{},
		BuyPrice:     pricing.Price(buy),
		SellPrice:    pricing.Price(sell),
	}

	if buy.CommodityType != "" && buy.CommodityType == sell.CommodityType {
		v.match(AttrProduct)
	} else {
		v.issue(AttrProduct)
	}

	bg, sg := grade(buy), grade(sell)
	if bg != "" && sg != "" {
		if bg == sg {
			v.match(AttrIsri)
		} else {
			v.issue(AttrIsri)
		}
	}

	// origin is informational, a mismatch never raises an issue
	if buy.CountryOfOrigin != "" && buy.CountryOfOrigin == sell.CountryOfOrigin {
		v.match(AttrOrigin)
	}

	if buy.Currency != "" && sell.Currency != "" {
		if buy.Currency == sell.Currency {
			v.match(AttrCurrency)
		} else {
			v.issue(AttrCurrency)
		}
	}

	if v.BuyPrice.LessThan(v.SellPrice) {
		v.match(AttrPrice)
	} else {
		v.issue(AttrPrice)
	}

	return v
}

func grade(t model.Ticket) string {
	if t.IsriGrade == nil {
		return ""
	}
	return *t.IsriGrade
}

func (v *Verdict) match(attr string) { v.Matches = append(v.Matches, attr) }
func (v *Verdict) issue(attr string) { v.Issues = append(v.Issues, attr) }

func (v Verdict) IsCompatible() bool {
	return len(v.Issues) == 0
}

func (v Verdict) HasIssue(attr string) bool {
	for _, i := range v.Issues {
		if i == attr {
			return true
		}
	}
	return false
}

// HardIssue reports a product or price issue; either one blocks order formation.
func (v Verdict) HardIssue() error {
	if v.HasIssue(AttrProduct) {
		return ErrProductMismatch
	}
	if v.HasIssue(AttrPrice) {
		return ErrPriceInverted
	}
	return nil
}

// IsCandidate reports whether the pair is listed when browsing from one ticket:
// no issue at all, or a single currency or isri issue.
func (v Verdict) IsCandidate() bool {
	switch len(v.Issues) {
	case 0:
		return true
	case 1:
		return v.Issues[0] == AttrCurrency || v.Issues[0] == AttrIsri
	}
	return false
}

// Candidates evaluates selected against every ticket of the opposite side and keeps the candidates.
func Candidates(selected model.Ticket, others []model.Ticket) []Verdict {
	out := make([]Verdict, 0)
	for _, o := range others {
		if o.ID == selected.ID || o.Side == selected.Side {
			continue
		}
		var v Verdict
		if selected.IsBuy() {
			v = Evaluate(selected, o)
		} else {
			v = Evaluate(o, selected)
		}
		if v.IsCandidate() {
			out = append(out, v)
		}
	}
	return out
}
