package matching

import (
	"github.com/shopspring/decimal"
)

// DerivePlannedBlCount is how many placeholder bills of lading an order gets.
// The supplier side loads the cargo, so its plan wins; the customer's plan is the fallback.
func DerivePlannedBlCount(buyPlanned, sellPlanned int) int {
	if buyPlanned > 0 {
		return buyPlanned
	}
	if sellPlanned > 0 {
		return sellPlanned
	}
	return 1
}

// SplitQuantity cuts qty into n parts truncated to 3 decimals; the last part takes the rest.
func SplitQuantity(qty decimal.Decimal, n int) []decimal.Decimal {
	if n < 1 {
		n = 1
	}
	per := qty.Div(decimal.NewFromInt(int64(n))).Truncate(3)
	out := make([]decimal.Decimal, n)
	for i := 0; i < n-1; i++ {
		out[i] = per
	}
	out[n-1] = qty.Sub(per.Mul(decimal.NewFromInt(int64(n - 1))))
	return out
}
