package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"metaldesk/pkg/approval"
	"metaldesk/pkg/config"
	"metaldesk/pkg/locker"
	"metaldesk/pkg/matching"
	"metaldesk/pkg/model"
	"metaldesk/pkg/store"
	"metaldesk/pkg/tickets"
	"metaldesk/pkg/xnats"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router *gin.Engine
	store  *store.Memory
}

func newTestServer() *testServer {
	gin.SetMode(gin.TestMode)
	st := store.NewMemory()
	mcfg := config.Matching{Mode: "atomic", HedgePercent: 1}
	rules := approval.NewRules(config.Approval{MaxQuantityMT: 500, FloatingApproval: true})
	f := matching.NewFormer(st, locker.NewLocal(), nil, xnats.Nop{}, mcfg)
	h := NewHandler(st, tickets.New(st, rules), f, matching.NewOptimizer(st, f, mcfg))
	return &testServer{router: NewRouter(h), store: st}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, out interface{}) int {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderTraderID, "7")
	req.Header.Set(HeaderTraderName, "Ana")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w.Code
}

func ticketBody(side, qty, price string) map[string]interface{} {
	return map[string]interface{}{
		"side":          side,
		"commodityType": "Copper Scrap",
		"quantity":      qty,
		"currency":      "USD",
		"pricingType":   model.PricingFixed,
		"signedPrice":   price,
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer()
	var body map[string]interface{}
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", nil, &body))
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "atomic", body["matching"])
}

func TestTicketFlow(t *testing.T) {
	s := newTestServer()

	var buy, sell model.Ticket
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/v1/tickets", ticketBody(model.SideBuy, "150", "10"), &buy))
	require.Equal(t, model.TicketStatusApproved, buy.Status)
	require.Equal(t, "Ana", buy.TraderName)

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/v1/tickets", ticketBody(model.SideSell, "600", "12"), &sell))
	require.Equal(t, model.TicketStatusPendingApproval, sell.Status)

	var open []model.Ticket
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/v1/tickets/open?side=Sell", nil, &open))
	require.Empty(t, open)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/v1/tickets/"+strconv.FormatInt(sell.ID, 10)+"/approve", nil, &sell))
	require.Equal(t, model.TicketStatusApproved, sell.Status)
	require.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, "/v1/tickets/"+strconv.FormatInt(sell.ID, 10)+"/reject", nil, nil))

	var compat struct {
		Compatible  bool   `json:"compatible"`
		BuyPriceFmt string `json:"buyPriceFmt"`
	}
	path := "/v1/compat?buy=" + strconv.FormatInt(buy.ID, 10) + "&sell=" + strconv.FormatInt(sell.ID, 10)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, path, nil, &compat))
	require.True(t, compat.Compatible)
	require.Equal(t, "10.00", compat.BuyPriceFmt)

	var candidates []matching.Verdict
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/v1/tickets/"+strconv.FormatInt(buy.ID, 10)+"/candidates", nil, &candidates))
	require.Len(t, candidates, 1)
}

func TestTicketErrors(t *testing.T) {
	s := newTestServer()
	require.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/v1/tickets/42", nil, nil))
	require.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/v1/tickets/abc", nil, nil))

	var body map[string]interface{}
	bad := ticketBody(model.SideBuy, "0", "10")
	require.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/v1/tickets", bad, &body))
	require.Contains(t, body["error"], "quantity")
}

func TestSubmitTicket(t *testing.T) {
	s := newTestServer()

	d := model.Ticket{
		Side:          model.SideBuy,
		Status:        model.TicketStatusDraft,
		CommodityType: "Copper Scrap",
		Quantity:      decimal.RequireFromString("100"),
		Currency:      "USD",
		PricingType:   model.PricingFixed,
		SignedPrice:   decimal.NewNullDecimal(decimal.RequireFromString("10")),
	}
	require.NoError(t, s.store.CreateTicket(context.Background(), &d))
	path := "/v1/tickets/" + strconv.FormatInt(d.ID, 10) + "/submit"

	var got model.Ticket
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, path, nil, &got))
	require.Equal(t, model.TicketStatusApproved, got.Status)
	require.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, path, nil, nil))
	require.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/v1/tickets/42/submit", nil, nil))
}

func TestManualMatchWithRemainder(t *testing.T) {
	s := newTestServer()
	var buy, sell model.Ticket
	s.do(t, http.MethodPost, "/v1/tickets", ticketBody(model.SideBuy, "150", "10"), &buy)
	s.do(t, http.MethodPost, "/v1/tickets", ticketBody(model.SideSell, "100", "12"), &sell)

	var conflict struct {
		Error     string             `json:"error"`
		Remainder matching.Remainder `json:"remainder"`
	}
	req := map[string]interface{}{"buyTicketID": buy.ID, "sellTicketID": sell.ID}
	require.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, "/v1/matches", req, &conflict))
	require.Equal(t, matching.SurplusBuy, conflict.Remainder.SurplusSide)
	require.Equal(t, "50", conflict.Remainder.RemainderMT.String())

	req["resolution"] = map[string]interface{}{"strategy": "new_ticket"}
	var res matching.Result
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/v1/matches", req, &res))
	require.Equal(t, "100", res.Order.Quantity.String())
	require.Equal(t, "0.2", res.Order.Margin.String())
	require.NotNil(t, res.Remainder)

	var order map[string]json.RawMessage
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/v1/orders/"+res.Order.ID, nil, &order))
	require.Contains(t, string(order["matches"]), strconv.FormatInt(sell.ID, 10))

	var rows []model.HedgeRequest
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/v1/orders/"+res.Order.ID+"/hedges", []matching.HedgePrefill{}, &rows))
	require.Empty(t, rows)

	require.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, "/v1/matches", req, nil))
}

func TestManualMatchInverted(t *testing.T) {
	s := newTestServer()
	var buy, sell model.Ticket
	s.do(t, http.MethodPost, "/v1/tickets", ticketBody(model.SideBuy, "100", "12"), &buy)
	s.do(t, http.MethodPost, "/v1/tickets", ticketBody(model.SideSell, "100", "10"), &sell)

	var body map[string]string
	req := map[string]interface{}{"buyTicketID": buy.ID, "sellTicketID": sell.ID}
	require.Equal(t, http.StatusUnprocessableEntity, s.do(t, http.MethodPost, "/v1/matches", req, &body))
	require.True(t, strings.Contains(body["error"], "lower"))

	orders, matches, shipments, _, _ := s.store.Counts()
	require.Equal(t, []int{0, 0, 0}, []int{orders, matches, shipments})
}

func TestOptimize(t *testing.T) {
	s := newTestServer()
	s.do(t, http.MethodPost, "/v1/tickets", ticketBody(model.SideSell, "60", "12"), nil)
	s.do(t, http.MethodPost, "/v1/tickets", ticketBody(model.SideSell, "60", "11"), nil)
	s.do(t, http.MethodPost, "/v1/tickets", ticketBody(model.SideBuy, "100", "10"), nil)

	var sel matching.Selection
	req := map[string]interface{}{"commodityType": "Copper Scrap", "target": "100", "dryRun": true}
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/v1/optimize", req, &sel))
	require.Equal(t, "11.6", sel.AvgSellPrice.String())

	orders, _, _, _, _ := s.store.Counts()
	require.Zero(t, orders)

	req["dryRun"] = false
	var res matching.Result
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/v1/optimize", req, &res))
	require.Len(t, res.Matches, 2)
	require.Len(t, res.Leftovers, 1)
	require.Equal(t, "20", res.Leftovers[0].Quantity.String())

	require.Equal(t, http.StatusUnprocessableEntity, s.do(t, http.MethodPost, "/v1/optimize", req, nil))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer()
	s.do(t, http.MethodGet, "/health", nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil).WithContext(context.Background())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "http_requests_total")
}
