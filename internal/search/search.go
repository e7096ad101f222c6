// Package search answers the library-wide title search route, grounded on
// the teacher's search handler shape, rewritten against internal/store's
// Search method rather than the deleted media.Repository.
package search

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JustinTDCT/mediaserver/internal/httputil"
	"github.com/JustinTDCT/mediaserver/internal/store"
)

const defaultLimit = 25

type Handler struct {
	store *store.Store
}

func NewHandler(st *store.Store) *Handler {
	return &Handler{store: st}
}

func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.search)
	return r
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		httputil.WriteError(w, http.StatusBadRequest, "InvalidInput", "q parameter required")
		return
	}

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}

	results, err := h.store.Search(query, "", limit)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"total":   len(results),
	})
}
