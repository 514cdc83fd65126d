package matching

import (
	"errors"
	"time"

	"metaldesk/pkg/locker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersFormedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metaldesk_orders_formed_total",
			Help: "Orders formed, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	matchRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metaldesk_match_rejections_total",
			Help: "Match attempts rejected before anything was stored",
		},
		[]string{"reason"},
	)

	stepFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metaldesk_formation_step_failures_total",
			Help: "Failed order formation steps",
		},
		[]string{"step"},
	)

	formationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metaldesk_order_formation_seconds",
			Help:    "Order formation latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"kind"},
	)
)

func rejectionReason(err error) string {
	var rerr *RemainderError
	switch {
	case errors.As(err, &rerr):
		return "remainder_unresolved"
	case errors.Is(err, ErrProductMismatch):
		return "product_mismatch"
	case errors.Is(err, ErrPriceInverted), errors.Is(err, ErrMarginInverted):
		return "price_inverted"
	case errors.Is(err, ErrNotEnoughSell), errors.Is(err, ErrNotEnoughBuy):
		return "insufficient_supply"
	case errors.Is(err, ErrAdjustRequested):
		return "adjust"
	case errors.Is(err, locker.ErrTicketBusy), errors.Is(err, ErrTicketMatched):
		return "ticket_busy"
	}
	return "invalid"
}

func observeFormation(kind string, start time.Time) {
	formationDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
