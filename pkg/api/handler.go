// Package api is the HTTP surface of the desk.
package api

import (
	"fmt"
	"net/http"
	"strconv"

	"metaldesk/pkg/info"
	"metaldesk/pkg/matching"
	"metaldesk/pkg/model"
	"metaldesk/pkg/store"
	"metaldesk/pkg/tickets"
	"metaldesk/pkg/xlog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

var logger = xlog.GetLogger()

const (
	HeaderTraderID   = "X-Trader-ID"
	HeaderTraderName = "X-Trader-Name"
)

// Handler holds the HTTP handler dependencies.
type Handler struct {
	store     store.Store
	tickets   *tickets.Service
	former    *matching.Former
	optimizer *matching.Optimizer
}

func NewHandler(st store.Store, ts *tickets.Service, f *matching.Former, o *matching.Optimizer) *Handler {
	return &Handler{store: st, tickets: ts, former: f, optimizer: o}
}

// NewRouter builds the gin engine with middleware and routes.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), Metrics(), Logger())
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes sets up the Gin routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		v1.POST("/tickets", h.CreateTicket)
		v1.GET("/tickets", h.ListTickets)
		v1.GET("/tickets/open", h.ListOpenTickets)
		v1.GET("/tickets/:id", h.GetTicket)
		v1.POST("/tickets/:id/submit", h.SubmitTicket)
		v1.POST("/tickets/:id/approve", h.ApproveTicket)
		v1.POST("/tickets/:id/reject", h.RejectTicket)
		v1.GET("/tickets/:id/candidates", h.Candidates)
		v1.GET("/compat", h.Compat)

		v1.POST("/matches", h.ManualMatch)
		v1.POST("/optimize", h.Optimize)

		v1.GET("/orders/:id", h.GetOrder)
		v1.GET("/orders/:id/hedges/prefill", h.HedgePrefills)
		v1.POST("/orders/:id/hedges", h.ConfirmHedges)
	}
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"service":  "metaldesk",
		"build":    info.Current(),
		"matching": h.former.Mode(),
	})
}

func idParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: ticket id %q", errBadRequest, c.Param("id"))
	}
	return id, nil
}

func queryID(c *gin.Context, key string) (int64, error) {
	id, err := strconv.ParseInt(c.Query(key), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", errBadRequest, key, c.Query(key))
	}
	return id, nil
}

func traderOf(c *gin.Context) tickets.Trader {
	id, _ := strconv.ParseInt(c.GetHeader(HeaderTraderID), 10, 64)
	return tickets.Trader{ID: id, Name: c.GetHeader(HeaderTraderName)}
}

// CreateTicket handles POST /v1/tickets. The trader comes from the request headers.
func (h *Handler) CreateTicket(c *gin.Context) {
	var draft model.Ticket
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t, err := h.tickets.Create(c.Request.Context(), traderOf(c), draft)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// ListTickets handles GET /v1/tickets.
func (h *Handler) ListTickets(c *gin.Context) {
	ts, err := h.tickets.List(c.Request.Context(), c.Query("side"), c.Query("status"), c.Query("commodity"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ts)
}

// ListOpenTickets handles GET /v1/tickets/open.
func (h *Handler) ListOpenTickets(c *gin.Context) {
	ts, err := h.tickets.ListOpen(c.Request.Context(), c.Query("side"), c.Query("commodity"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ts)
}

// GetTicket handles GET /v1/tickets/:id.
func (h *Handler) GetTicket(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		fail(c, err)
		return
	}
	t, err := h.tickets.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// SubmitTicket handles POST /v1/tickets/:id/submit, retrying approval routing of a Draft.
func (h *Handler) SubmitTicket(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		fail(c, err)
		return
	}
	t, err := h.tickets.Submit(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) ApproveTicket(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		fail(c, err)
		return
	}
	t, err := h.tickets.Approve(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) RejectTicket(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		fail(c, err)
		return
	}
	t, err := h.tickets.Reject(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// Candidates handles GET /v1/tickets/:id/candidates.
func (h *Handler) Candidates(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		fail(c, err)
		return
	}
	vs, err := h.tickets.Candidates(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, vs)
}

// Compat handles GET /v1/compat?buy=&sell=.
func (h *Handler) Compat(c *gin.Context) {
	buy, err := queryID(c, "buy")
	if err != nil {
		fail(c, err)
		return
	}
	sell, err := queryID(c, "sell")
	if err != nil {
		fail(c, err)
		return
	}
	v, err := h.tickets.Compare(c.Request.Context(), buy, sell)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"verdict":      v,
		"compatible":   v.IsCompatible(),
		"buyPriceFmt":  v.BuyPrice.StringFixed(2),
		"sellPriceFmt": v.SellPrice.StringFixed(2),
	})
}

// ManualMatch handles POST /v1/matches. A 409 with a remainder asks for a resolution.
func (h *Handler) ManualMatch(c *gin.Context) {
	var req matching.ManualRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.former.FormManual(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// OptimizeRequest is the request body of POST /v1/optimize.
type OptimizeRequest struct {
	CommodityType string          `json:"commodityType" binding:"required"`
	Target        decimal.Decimal `json:"target"`
	DryRun        bool            `json:"dryRun"`
}

// Optimize handles POST /v1/optimize. A dry run only returns the selection.
func (h *Handler) Optimize(c *gin.Context) {
	var req OptimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.DryRun {
		sel, err := h.optimizer.Select(c.Request.Context(), req.CommodityType, req.Target)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, sel)
		return
	}

	res, err := h.optimizer.Run(c.Request.Context(), req.CommodityType, req.Target)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// GetOrder handles GET /v1/orders/:id.
func (h *Handler) GetOrder(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	o, err := h.store.GetOrder(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	matches, err := h.store.ListInventoryMatches(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	shipments, err := h.store.ListPlannedShipments(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	hedges, err := h.store.ListHedgeRequests(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order":     o,
		"matches":   matches,
		"shipments": shipments,
		"hedges":    hedges,
	})
}

// HedgePrefills handles GET /v1/orders/:id/hedges/prefill.
func (h *Handler) HedgePrefills(c *gin.Context) {
	ps, err := h.former.Prefills(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ps)
}

// ConfirmHedges handles POST /v1/orders/:id/hedges. An empty list skips hedging.
func (h *Handler) ConfirmHedges(c *gin.Context) {
	var prefills []matching.HedgePrefill
	if err := c.ShouldBindJSON(&prefills); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rows, err := h.former.ConfirmHedges(c.Request.Context(), c.Param("id"), prefills)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, rows)
}
