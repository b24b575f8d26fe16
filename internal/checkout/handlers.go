package checkout

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/common"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/orders"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/pricing"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/session"
)

// Handler exposes checkout over HTTP.
type Handler struct {
	Registry  *Registry
	Currency  pricing.Currency
	Validator *validator.Validate
}

type checkoutPayload struct {
	ClientID      string `json:"clientId" validate:"omitempty,max=64"`
	PaymentMethod string `json:"paymentMethod" validate:"omitempty,oneof=cash card cheque transfer"`
}

type checkoutResponse struct {
	OrderID        string        `json:"orderId"`
	Reference      string        `json:"reference"`
	Total          pricing.Money `json:"total"`
	TotalFormatted string        `json:"totalFormatted"`
}

// Routes mounts POST / and GET /state.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Checkout)
	r.Get("/state", h.State)
}

// Checkout handles POST /api/v1/checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.Registry == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	sessionID, _ := session.FromContext(r.Context())
	var payload checkoutPayload
	if r.ContentLength != 0 {
		if err := common.DecodeJSON(r, &payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
			return
		}
	}
	if h.Validator != nil {
		if err := h.Validator.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid checkout request", common.ValidationDetails(err))
			return
		}
	}
	res, err := h.Registry.Submit(r.Context(), sessionID, Request{
		ClientID:      strings.TrimSpace(payload.ClientID),
		PaymentMethod: orders.PaymentMethod(payload.PaymentMethod),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, checkoutResponse{
		OrderID:        res.OrderID,
		Reference:      res.Reference,
		Total:          res.Total,
		TotalFormatted: h.Currency.Format(res.Total),
	})
}

// State handles GET /api/v1/checkout/state.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := session.FromContext(r.Context())
	if h.Registry == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	status, _ := h.Registry.Status(sessionID)
	common.Data(w, http.StatusOK, status)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var stockErr *StockChangedError
	var orderErr *orders.Error
	switch {
	case errors.As(err, &stockErr):
		common.JSONError(w, http.StatusConflict, "STOCK_CHANGED", "stock changed, cart was updated", map[string]any{"changes": stockErr.Changes})
	case errors.Is(err, ErrAlreadyInProgress):
		common.JSONError(w, http.StatusConflict, "CHECKOUT_IN_PROGRESS", "a checkout is already in progress", nil)
	case errors.Is(err, ErrEmptyCart):
		common.JSONError(w, http.StatusBadRequest, "EMPTY_CART", "cart is empty", nil)
	case errors.Is(err, ErrMissingClient):
		common.JSONError(w, http.StatusUnprocessableEntity, "MISSING_CLIENT", "select a client before checkout", nil)
	case errors.Is(err, ErrClientNotFound):
		common.JSONError(w, http.StatusNotFound, "CLIENT_NOT_FOUND", "client not found", nil)
	case errors.Is(err, ErrInvalidPaymentMethod):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid payment method", nil)
	case errors.As(err, &orderErr):
		common.JSONError(w, http.StatusBadGateway, orderErr.Code, orderErr.Message, orderErr.Details)
	case errors.Is(err, orders.ErrUnavailable):
		common.JSONError(w, http.StatusBadGateway, "ORDER_SERVICE_UNAVAILABLE", "order service unavailable", nil)
	case errors.Is(err, context.Canceled):
		common.JSONError(w, 499, "CLIENT_CLOSED_REQUEST", "request cancelled", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout failed", nil)
	}
}
