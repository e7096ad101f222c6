// Package watch exposes per-user watch-progress tracking over HTTP,
// grounded on the teacher's internal/api/handlers_watch.go
// (handleUpdateProgress/handleContinueWatching), rewritten against the new
// Store's UpsertWatch/ContinueWatching family and chi's URL-param routing
// rather than net/http's PathValue.
package watch

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JustinTDCT/mediaserver/internal/auth"
	"github.com/JustinTDCT/mediaserver/internal/httputil"
	"github.com/JustinTDCT/mediaserver/internal/store"
)

const defaultLimit = 20

// Handlers answers every watch/metadata route spec.md §6 names.
type Handlers struct {
	store *store.Store
}

func NewHandlers(st *store.Store) *Handlers {
	return &Handlers{store: st}
}

func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Post("/progress", h.UpdateProgress)
	r.Get("/progress/{id}", h.GetProgress)
	r.Post("/mark-watched/{id}", h.MarkWatched)
	r.Delete("/mark-unwatched/{id}", h.MarkUnwatched)
	r.Get("/continue-watching", h.ContinueWatching)
	r.Get("/recently-watched", h.RecentlyWatched)
	r.Get("/history", h.History)
	r.Get("/stats", h.Stats)
	r.Post("/reset/{id}", h.Reset)
}

type progressRequest struct {
	MediaItemID    int64   `json:"mediaItemId"`
	CurrentSeconds float64 `json:"currentSeconds"`
	TotalSeconds   float64 `json:"totalSeconds"`
}

// UpdateProgress implements POST /watch/progress: one row per
// (user, media item); a repeat watch bumps watch_count rather than
// inserting a new row (enforced inside Store.UpsertWatch).
func (h *Handlers) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "Unauthorized", "missing bearer credential")
		return
	}

	var req progressRequest
	if err := httputil.ReadJSON(r, &req); err != nil || req.MediaItemID == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "InvalidInput", "mediaItemId is required")
		return
	}

	rec, err := h.store.UpsertWatch(user.UserID, req.MediaItemID, req.CurrentSeconds, req.TotalSeconds)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

// GetProgress implements GET /watch/progress/{id}.
func (h *Handlers) GetProgress(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "Unauthorized", "missing bearer credential")
		return
	}
	mediaID, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	rec, err := h.store.GetWatch(user.UserID, mediaID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

// MarkWatched implements POST /watch/mark-watched/{id}. The duration comes
// from the request body since the handler has no independent way to learn
// a title's runtime without re-probing the file.
func (h *Handlers) MarkWatched(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "Unauthorized", "missing bearer credential")
		return
	}
	mediaID, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		DurationSeconds float64 `json:"durationSeconds"`
	}
	httputil.ReadJSON(r, &body)

	rec, err := h.store.MarkWatched(user.UserID, mediaID, body.DurationSeconds)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

// MarkUnwatched implements DELETE /watch/mark-unwatched/{id}.
func (h *Handlers) MarkUnwatched(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "Unauthorized", "missing bearer credential")
		return
	}
	mediaID, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteWatch(user.UserID, mediaID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// Reset is an alias for MarkUnwatched: spec.md §6 names both a
// mark-unwatched and a reset route over the same semantics (clear progress).
func (h *Handlers) Reset(w http.ResponseWriter, r *http.Request) {
	h.MarkUnwatched(w, r)
}

func (h *Handlers) ContinueWatching(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "Unauthorized", "missing bearer credential")
		return
	}
	limit := queryLimit(r, defaultLimit)
	items, err := h.store.ContinueWatching(user.UserID, limit)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *Handlers) RecentlyWatched(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "Unauthorized", "missing bearer credential")
		return
	}
	limit := queryLimit(r, defaultLimit)
	items, err := h.store.RecentlyWatched(user.UserID, limit)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "Unauthorized", "missing bearer credential")
		return
	}
	limit := queryLimit(r, defaultLimit)
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	items, err := h.store.WatchHistory(user.UserID, limit, offset)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "Unauthorized", "missing bearer credential")
		return
	}
	stats, err := h.store.WatchStatsFor(user.UserID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func pathInt64(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "InvalidInput", "invalid id")
		return 0, false
	}
	return id, true
}

func queryLimit(r *http.Request, fallback int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
