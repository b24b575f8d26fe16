package cart_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/cart"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/common"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/pricing"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/session"
)

func newCartRouter() http.Handler {
	svc, _ := newCartService(nil)
	h := &cart.Handler{Svc: svc, Currency: pricing.DefaultCurrency, Validator: common.NewValidator()}
	r := chi.NewRouter()
	r.Use(session.NewResolver("").Middleware)
	r.Route("/cart", func(r chi.Router) {
		r.Use(session.RequireSession)
		h.Routes(r)
	})
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Session-ID", "till-7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type addResponse struct {
	Data struct {
		Outcome string    `json:"outcome"`
		Applied int       `json:"applied"`
		Line    cart.Line `json:"line"`
		Cart    cart.View `json:"cart"`
	} `json:"data"`
}

func TestCartHandlersFlow(t *testing.T) {
	h := newCartRouter()

	rec := do(t, h, http.MethodPost, "/cart/lines", `{"productId":"chair","productType":"regular","variantValue":"oak","qty":5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var added addResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &added))
	require.Equal(t, "PARTIALLY_FULFILLED", added.Data.Outcome)
	require.Equal(t, 3, added.Data.Applied)
	require.Equal(t, "390.000 TND", added.Data.Cart.TotalFormatted)

	rec = do(t, h, http.MethodPatch, "/cart/lines/"+added.Data.Line.ID, `{"qty":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"outcome":"UPDATED"`)

	rec = do(t, h, http.MethodPut, "/cart/discount", `{"amount":"10.5"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"totalFormatted":"249.500 TND"`)

	rec = do(t, h, http.MethodPut, "/cart/notes", `{"notes":"fragile"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/cart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"notes":"fragile"`)

	rec = do(t, h, http.MethodDelete, "/cart/lines/"+added.Data.Line.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodDelete, "/cart", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCartHandlerErrors(t *testing.T) {
	h := newCartRouter()

	rec := do(t, h, http.MethodPost, "/cart/lines", `{"productId":"stool","productType":"regular","qty":1}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "OUT_OF_STOCK")

	rec = do(t, h, http.MethodPost, "/cart/lines", `{"productId":"sofa","productType":"special","optionA":"oak","optionB":"velvet","qty":1}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "COMBINATION_NOT_FOUND")

	rec = do(t, h, http.MethodPost, "/cart/lines", `{"productId":"sofa","productType":"special","qty":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "VALIDATION_FAILED")

	rec = do(t, h, http.MethodPost, "/cart/lines", `{"productId":"ghost","productType":"regular","qty":1}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPatch, "/cart/lines/missing", `{"qty":1}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "LINE_NOT_FOUND")

	rec = do(t, h, http.MethodPut, "/cart/discount", `{"amount":"1.23456"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "SESSION_REQUIRED")
}
