package configurator

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/catalog"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/common"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/obs"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/pricing"
)

// CompositeLoader loads composite products with their combinations.
type CompositeLoader interface {
	Composite(ctx context.Context, id string) (catalog.CompositeProduct, error)
}

// Handler serves the configurator's progressive-disclosure endpoints.
type Handler struct {
	Catalog  CompositeLoader
	Currency pricing.Currency
}

type choicesResponse struct {
	First  []catalog.VariantOption `json:"first"`
	Second []catalog.VariantOption `json:"second,omitempty"`
	A      string                  `json:"a,omitempty"`
}

type resolveResponse struct {
	Combination        *catalog.Combination `json:"combination"`
	Sellable           bool                 `json:"sellable"`
	UnitPrice          catalog.Money        `json:"unitPrice"`
	UnitPriceFormatted string               `json:"unitPriceFormatted"`
}

// Routes mounts the configurator routes under a composite product.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/composites/{id}/choices", h.Choices)
	r.Get("/composites/{id}/resolve", h.Resolve)
}

// Choices handles GET /composites/{id}/choices?a=.
func (h *Handler) Choices(w http.ResponseWriter, r *http.Request) {
	p, ok := h.load(w, r)
	if !ok {
		return
	}
	sel := NewSelection(&p)
	resp := choicesResponse{First: sel.FirstChoices()}
	if a := strings.TrimSpace(r.URL.Query().Get("a")); a != "" {
		if err := sel.ChooseA(a); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, "UNKNOWN_OPTION", "option is not offered for this product", map[string]any{"a": a})
			return
		}
		resp.A = a
		resp.Second = sel.SecondChoices()
	}
	common.Data(w, http.StatusOK, resp)
}

// Resolve handles GET /composites/{id}/resolve?a=&b=.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a, b := strings.TrimSpace(q.Get("a")), strings.TrimSpace(q.Get("b"))
	if a == "" || b == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "both a and b are required", nil)
		return
	}
	p, ok := h.load(w, r)
	if !ok {
		return
	}
	combo, err := Resolve(&p, a, b)
	if err != nil {
		obs.RecordResolve("not_found")
		common.JSONError(w, http.StatusUnprocessableEntity, "COMBINATION_NOT_FOUND", "no combination matches the selected options", map[string]any{"a": a, "b": b})
		return
	}
	sellable := IsSellable(combo)
	if sellable {
		obs.RecordResolve("sellable")
	} else {
		obs.RecordResolve("out_of_stock")
	}
	price := UnitPrice(&p, combo)
	common.Data(w, http.StatusOK, resolveResponse{
		Combination:        combo,
		Sellable:           sellable,
		UnitPrice:          price,
		UnitPriceFormatted: h.Currency.Format(price),
	})
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (catalog.CompositeProduct, bool) {
	p, err := h.Catalog.Composite(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
		} else {
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		}
		return catalog.CompositeProduct{}, false
	}
	return p, true
}
