package checkout_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/cart"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/catalog"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/checkout"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/common"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/orders"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/pricing"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/session"
)

func newRouter(f *fixture) http.Handler {
	h := &checkout.Handler{Registry: f.registry, Currency: pricing.DefaultCurrency, Validator: common.NewValidator()}
	r := chi.NewRouter()
	r.Use(session.NewResolver("").Middleware)
	r.Route("/checkout", func(r chi.Router) {
		r.Use(session.RequireSession)
		h.Routes(r)
	})
	return r
}

func doCheckout(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(session.DefaultHeader, till)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

type errorEnvelope struct {
	Error struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env
}

func TestHandlerCheckoutCreated(t *testing.T) {
	f := newFixture(t, nil)
	f.add(t, cart.AddRequest{ProductID: "table", ProductType: catalog.ProductRegular, Qty: 2})
	h := newRouter(f)

	rr := doCheckout(t, h, `{"clientId":"cl-7","paymentMethod":"cheque"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.JSONEq(t, `{"data":{"orderId":"ord-1","reference":"ref-1","total":600000,"totalFormatted":"600.000 TND"}}`, rr.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/checkout/state", nil)
	req.Header.Set(session.DefaultHeader, till)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	var state struct {
		Data checkout.Status `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &state))
	require.Equal(t, checkout.StateIdle, state.Data.State)
	require.Equal(t, checkout.StateCommitted, state.Data.LastOutcome)
	require.Equal(t, "ord-1", state.Data.OrderID)
}

func TestHandlerCheckoutErrors(t *testing.T) {
	f := newFixture(t, func(d *checkout.Deps) { d.RequireClient = true })
	h := newRouter(f)

	rr := doCheckout(t, h, `{}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Equal(t, "MISSING_CLIENT", decodeError(t, rr).Error.Code)

	rr = doCheckout(t, h, `{"clientId":"cl-7"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "EMPTY_CART", decodeError(t, rr).Error.Code)

	f.add(t, cart.AddRequest{ProductID: "chair", ProductType: catalog.ProductRegular, VariantValue: "oak", Qty: 3})

	rr = doCheckout(t, h, `{"paymentMethod":"card"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Equal(t, "MISSING_CLIENT", decodeError(t, rr).Error.Code)

	rr = doCheckout(t, h, `{"clientId":"cl-7","paymentMethod":"bitcoin"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "VALIDATION_FAILED", decodeError(t, rr).Error.Code)

	rr = doCheckout(t, h, `{"clientId":"cl-404"}`)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "CLIENT_NOT_FOUND", decodeError(t, rr).Error.Code)

	f.stock.set(chairOak, 1)
	rr = doCheckout(t, h, `{"clientId":"cl-7"}`)
	require.Equal(t, http.StatusConflict, rr.Code)
	env := decodeError(t, rr)
	require.Equal(t, "STOCK_CHANGED", env.Error.Code)
	require.JSONEq(t, `{"changes":[{"lineId":"line-1","productId":"chair","name":"Dining chair","previous":3,"current":1,"removed":false}]}`, string(env.Error.Details))

	f.orders.err = &orders.Error{Status: 422, Code: "ORDER_REJECTED", Message: "till closed", Details: map[string]any{"till": "1"}}
	rr = doCheckout(t, h, `{"clientId":"cl-7"}`)
	require.Equal(t, http.StatusBadGateway, rr.Code)
	env = decodeError(t, rr)
	require.Equal(t, "ORDER_REJECTED", env.Error.Code)
	require.Equal(t, "till closed", env.Error.Message)
	require.JSONEq(t, `{"till":"1"}`, string(env.Error.Details))
}

func TestHandlerCheckoutInProgress(t *testing.T) {
	f := newFixture(t, nil)
	f.orders.gate = make(chan struct{})
	f.add(t, cart.AddRequest{ProductID: "table", ProductType: catalog.ProductRegular, Qty: 1})
	h := newRouter(f)

	go func() { _, _ = f.registry.Submit(context.Background(), till, checkout.Request{}) }()
	require.Eventually(t, func() bool { return f.registry.InFlight(till) }, testTimeout, testTick)

	rr := doCheckout(t, h, `{}`)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "CHECKOUT_IN_PROGRESS", decodeError(t, rr).Error.Code)

	close(f.orders.gate)
	require.Eventually(t, func() bool { return !f.registry.InFlight(till) }, testTimeout, testTick)
}

func TestHandlerRequiresSession(t *testing.T) {
	f := newFixture(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	newRouter(f).ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "SESSION_REQUIRED", decodeError(t, rr).Error.Code)
}
