package clients

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/common"
)

// Directory is the read side used by the handler and checkout.
type Directory interface {
	Get(ctx context.Context, id string) (Client, error)
	Search(ctx context.Context, query string, limit int) ([]Client, error)
}

// Handler exposes the client picker endpoints.
type Handler struct {
	Dir Directory
}

// Routes mounts GET / and GET /{id}.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.Search)
	r.Get("/{id}", h.Get)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.Dir.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to search clients", nil)
		return
	}
	if items == nil {
		items = []Client{}
	}
	common.Data(w, http.StatusOK, items)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.Dir.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "CLIENT_NOT_FOUND", "client not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load client", nil)
		return
	}
	common.Data(w, http.StatusOK, c)
}
