// Package admin answers the admin-gated list/delete and dashboard routes
// spec.md §6 names (GET /admin/*), grounded on the teacher's admin-role
// handler shape (handleListLibraries' X-User-Role check generalized to
// the Middleware.RequireAdmin chain this repo's auth package already does).
package admin

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JustinTDCT/mediaserver/internal/cache"
	"github.com/JustinTDCT/mediaserver/internal/httputil"
	"github.com/JustinTDCT/mediaserver/internal/store"
)

type Handlers struct {
	store *store.Store
	cache *cache.Manager
}

func NewHandlers(st *store.Store, cm *cache.Manager) *Handlers {
	return &Handlers{store: st, cache: cm}
}

func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/users", h.ListUsers)
	r.Delete("/users/{id}", h.DeleteUser)
	r.Get("/media", h.ListMedia)
	r.Delete("/media/{id}", h.DeleteMedia)
	r.Get("/stats", h.Stats)
	r.Get("/dashboard", h.Dashboard)
}

func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers()
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteUser(id); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// ListMedia concatenates movies and TV-show containers; episodes are reached
// through their show rather than listed flat here.
func (h *Handlers) ListMedia(w http.ResponseWriter, r *http.Request) {
	movies, err := h.store.ListMovies()
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	shows, err := h.store.ListTvShowItems()
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"movies":  movies,
		"tvShows": shows,
	})
}

func (h *Handlers) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteMediaItem(id); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if h.cache != nil {
		_ = h.cache.ClearMedia(id)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetLibraryStats()
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

// Dashboard folds library stats together with the on-disk cache footprint,
// the one summary view an operator needs without hitting two endpoints.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetLibraryStats()
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	resp := map[string]interface{}{"library": stats}
	if h.cache != nil {
		resp["cache"] = h.cache.Stats()
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func pathInt64(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "InvalidInput", "invalid id")
		return 0, false
	}
	return id, true
}
