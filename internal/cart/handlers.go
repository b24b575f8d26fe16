package cart

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/catalog"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/common"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/configurator"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/pricing"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/session"
)

// Handler wires cart services to HTTP.
type Handler struct {
	Svc       *Service
	Currency  pricing.Currency
	Validator *validator.Validate
}

type addLinePayload struct {
	ProductID    string `json:"productId" validate:"required"`
	ProductType  string `json:"productType" validate:"required,oneof=regular special"`
	VariantValue string `json:"variantValue"`
	OptionA      string `json:"optionA" validate:"required_if=ProductType special"`
	OptionB      string `json:"optionB" validate:"required_if=ProductType special"`
	Qty          int    `json:"qty" validate:"required,min=1"`
}

type updateQtyPayload struct {
	Qty *int `json:"qty" validate:"required"`
}

type discountPayload struct {
	Amount string `json:"amount" validate:"required"`
}

type notesPayload struct {
	Notes string `json:"notes" validate:"max=2000"`
}

// LineView is a cart line as rendered to clients.
type LineView struct {
	Line
	LineTotal          pricing.Money `json:"lineTotal"`
	LineTotalFormatted string        `json:"lineTotalFormatted"`
}

// View is the cart as rendered to clients. Totals are always derived.
type View struct {
	Lines             []LineView    `json:"lines"`
	ItemCount         int           `json:"itemCount"`
	Notes             string        `json:"notes"`
	Subtotal          pricing.Money `json:"subtotal"`
	Discount          pricing.Money `json:"discount"`
	Total             pricing.Money `json:"total"`
	SubtotalFormatted string        `json:"subtotalFormatted"`
	DiscountFormatted string        `json:"discountFormatted"`
	TotalFormatted    string        `json:"totalFormatted"`
	Currency          string        `json:"currency"`
	UpdatedAt         *time.Time    `json:"updatedAt,omitempty"`
}

// NewView renders c with the given currency.
func NewView(c Cart, cur pricing.Currency) View {
	totals := c.Totals()
	v := View{
		Lines:             make([]LineView, 0, len(c.Lines)),
		ItemCount:         c.ItemCount(),
		Notes:             c.Notes,
		Subtotal:          totals.Subtotal,
		Discount:          totals.Discount,
		Total:             totals.Total,
		SubtotalFormatted: cur.Format(totals.Subtotal),
		DiscountFormatted: cur.Format(totals.Discount),
		TotalFormatted:    cur.Format(totals.Total),
		Currency:          cur.Code,
	}
	for _, l := range c.Lines {
		v.Lines = append(v.Lines, LineView{Line: l, LineTotal: l.Total(), LineTotalFormatted: cur.Format(l.Total())})
	}
	if !c.UpdatedAt.IsZero() {
		ts := c.UpdatedAt
		v.UpdatedAt = &ts
	}
	return v
}

// Routes mounts the cart routes on r. Callers are expected to require a session.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.Get)
	r.Delete("/", h.Clear)
	r.Post("/lines", h.AddLine)
	r.Patch("/lines/{lineId}", h.UpdateLine)
	r.Delete("/lines/{lineId}", h.RemoveLine)
	r.Put("/discount", h.SetDiscount)
	r.Put("/notes", h.SetNotes)
}

func (h *Handler) validate(v any) error {
	if h.Validator == nil {
		return nil
	}
	return h.Validator.Struct(v)
}

func (h *Handler) ready(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return "", false
	}
	id, ok := session.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "SESSION_REQUIRED", "a session identifier is required", nil)
		return "", false
	}
	return id, true
}

// Get handles GET /cart.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.ready(w, r)
	if !ok {
		return
	}
	c, err := h.Svc.Get(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, NewView(c, h.Currency))
}

// Clear handles DELETE /cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.ready(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Clear(r.Context(), sessionID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddLine handles POST /cart/lines.
func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.ready(w, r)
	if !ok {
		return
	}
	var payload addLinePayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid payload", common.ValidationDetails(err))
		return
	}
	productType, err := catalog.ParseProductType(payload.ProductType)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown product type", nil)
		return
	}
	res, c, err := h.Svc.Add(r.Context(), sessionID, AddRequest{
		ProductID:    payload.ProductID,
		ProductType:  productType,
		VariantValue: payload.VariantValue,
		OptionA:      payload.OptionA,
		OptionB:      payload.OptionB,
		Qty:          payload.Qty,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, map[string]any{
		"outcome":   res.Outcome,
		"requested": res.Requested,
		"applied":   res.Applied,
		"line":      res.Line,
		"cart":      NewView(c, h.Currency),
	})
}

// UpdateLine handles PATCH /cart/lines/{lineId}.
func (h *Handler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.ready(w, r)
	if !ok {
		return
	}
	var payload updateQtyPayload
	if err := common.DecodeJSON(r, &payload); err != nil || payload.Qty == nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "qty is required", nil)
		return
	}
	res, c, err := h.Svc.UpdateQuantity(r.Context(), sessionID, chi.URLParam(r, "lineId"), *payload.Qty)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, map[string]any{
		"outcome":   res.Outcome,
		"requested": res.Requested,
		"quantity":  res.Quantity,
		"cart":      NewView(c, h.Currency),
	})
}

// RemoveLine handles DELETE /cart/lines/{lineId}.
func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.ready(w, r)
	if !ok {
		return
	}
	c, err := h.Svc.RemoveLine(r.Context(), sessionID, chi.URLParam(r, "lineId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, NewView(c, h.Currency))
}

// SetDiscount handles PUT /cart/discount. The amount is a decimal string in
// the configured currency, e.g. "12.500".
func (h *Handler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.ready(w, r)
	if !ok {
		return
	}
	var payload discountPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid payload", common.ValidationDetails(err))
		return
	}
	amount, err := h.Currency.ParseAmount(payload.Amount)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_AMOUNT", err.Error(), nil)
		return
	}
	c, err := h.Svc.SetDiscount(r.Context(), sessionID, amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, NewView(c, h.Currency))
}

// SetNotes handles PUT /cart/notes.
func (h *Handler) SetNotes(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.ready(w, r)
	if !ok {
		return
	}
	var payload notesPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid payload", common.ValidationDetails(err))
		return
	}
	c, err := h.Svc.SetNotes(r.Context(), sessionID, payload.Notes)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, NewView(c, h.Currency))
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrOutOfStock):
		common.JSONError(w, http.StatusConflict, "OUT_OF_STOCK", "the selected item is out of stock", nil)
	case errors.Is(err, configurator.ErrNotFound):
		common.JSONError(w, http.StatusUnprocessableEntity, "COMBINATION_NOT_FOUND", "no combination matches the selected options", nil)
	case errors.Is(err, ErrVariantRequired):
		common.JSONError(w, http.StatusUnprocessableEntity, "VARIANT_REQUIRED", "a variant must be selected", nil)
	case errors.Is(err, ErrVariantNotFound):
		common.JSONError(w, http.StatusUnprocessableEntity, "VARIANT_NOT_FOUND", "variant not found", nil)
	case errors.Is(err, catalog.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
	case errors.Is(err, ErrLineNotFound):
		common.JSONError(w, http.StatusNotFound, "LINE_NOT_FOUND", "cart line not found", nil)
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidDiscount):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	default:
		if common.WriteAppError(w, err, http.StatusInternalServerError) {
			return
		}
		h.Svc.Logger.Error().Err(err).Msg("cart request failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
