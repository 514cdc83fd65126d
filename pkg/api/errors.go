package api

import (
	"errors"
	"net/http"

	"metaldesk/pkg/locker"
	"metaldesk/pkg/matching"
	"metaldesk/pkg/store"
	"metaldesk/pkg/tickets"

	"github.com/gin-gonic/gin"
)

var errBadRequest = errors.New("bad request")

var (
	invalid = []error{
		errBadRequest,
		tickets.ErrNoTrader,
		tickets.ErrInvalidTicket,
		matching.ErrWrongSide,
		matching.ErrTicketNotApproved,
		matching.ErrPriceMissing,
		matching.ErrInvalidQuantity,
		matching.ErrWarehouseRequired,
		matching.ErrUnknownStrategy,
		matching.ErrNotInOrder,
		matching.ErrAdjustRequested,
	}
	conflict = []error{
		locker.ErrTicketBusy,
		matching.ErrTicketMatched,
		tickets.ErrNotPending,
		tickets.ErrNotDraft,
		matching.ErrHedgeExists,
	}
	unprocessable = []error{
		matching.ErrProductMismatch,
		matching.ErrPriceInverted,
		matching.ErrNotEnoughSell,
		matching.ErrNotEnoughBuy,
		matching.ErrMarginInverted,
		matching.ErrNoExposure,
	}
)

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// statusOf maps a desk error to its HTTP status.
func statusOf(err error) int {
	var rerr *matching.RemainderError
	switch {
	case errors.As(err, &rerr):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case isAny(err, invalid):
		return http.StatusBadRequest
	case isAny(err, conflict):
		return http.StatusConflict
	case isAny(err, unprocessable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, tickets.ErrApprovalFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func fail(c *gin.Context, err error) {
	status := statusOf(err)
	body := gin.H{"error": err.Error()}
	var rerr *matching.RemainderError
	if errors.As(err, &rerr) {
		body["remainder"] = rerr.Remainder
	}
	if status == http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, body)
}
