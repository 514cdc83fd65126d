package matching

import (
	"errors"
	"fmt"
)

// Validation errors, raised before anything is written.
var (
	ErrWrongSide         = errors.New("ticket is on the wrong side")
	ErrTicketNotApproved = errors.New("ticket is not approved")
	ErrTicketMatched     = errors.New("ticket is already matched")
	ErrProductMismatch   = errors.New("product mismatch")
	ErrPriceInverted     = errors.New("buy price must be lower than sell price")
	ErrPriceMissing      = errors.New("buy price could not be resolved")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrWarehouseRequired = errors.New("a warehouse is required to divert the remainder to inventory")
	ErrUnknownStrategy   = errors.New("unknown remainder strategy")
	ErrNotInOrder        = errors.New("ticket is not part of the order")
	ErrNoExposure        = errors.New("ticket carries no floating price to hedge")
	ErrHedgeExists       = errors.New("ticket is already hedged on this order")
)

// Supply and margin errors of the optimizer.
var (
	ErrNotEnoughSell  = errors.New("not enough sell tickets to reach the target quantity")
	ErrNotEnoughBuy   = errors.New("not enough buy tickets to reach the target quantity")
	ErrMarginInverted = errors.New("average buy price is not below average sell price")
)

// ErrAdjustRequested ends a match attempt on the user's request; nothing was written.
var ErrAdjustRequested = errors.New("match aborted to adjust quantities")

// RemainderError asks the caller to pick a remainder strategy.
type RemainderError struct {
	Remainder Remainder
}

func (e *RemainderError) Error() string {
	return fmt.Sprintf("quantities differ, %s MT remain on the %s side", e.Remainder.RemainderMT.String(), e.Remainder.SurplusSide)
}

// StepError is a failed ancillary step of a best effort formation.
type StepError struct {
	Step string `json:"step"`
	Err  string `json:"error"`
}

func (e StepError) Error() string {
	return e.Step + ": " + e.Err
}
