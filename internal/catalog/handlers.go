package catalog

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/common"
)

// Handler exposes read-only catalog endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// Routes mounts the catalog routes on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/products", h.Products)
	r.Get("/products/{id}", h.Product)
	r.Get("/composites", h.Composites)
	r.Get("/composites/{id}", h.Composite)
}

// Products handles GET /api/v1/catalog/products.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	items, err := h.service.ListProducts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, items)
}

// Product handles GET /api/v1/catalog/products/{id}.
func (h *Handler) Product(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	p, err := h.service.Product(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, p)
}

// Composites handles GET /api/v1/catalog/composites.
func (h *Handler) Composites(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	items, err := h.service.ListComposites(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, items)
}

// Composite handles GET /api/v1/catalog/composites/{id}.
func (h *Handler) Composite(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	c, err := h.service.Composite(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, c)
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
		return
	}
	if common.WriteAppError(w, err, http.StatusInternalServerError) {
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
