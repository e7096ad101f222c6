// Package library answers browse/search/scan routes over the indexed media
// catalog, grounded on the teacher's internal/api/handlers_library.go and
// handlers_browse.go, rewritten against the new Store and indexer.Scanner.
package library

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JustinTDCT/mediaserver/internal/httputil"
	"github.com/JustinTDCT/mediaserver/internal/indexer"
	"github.com/JustinTDCT/mediaserver/internal/models"
	"github.com/JustinTDCT/mediaserver/internal/source"
	"github.com/JustinTDCT/mediaserver/internal/store"
)

type Handlers struct {
	store   *store.Store
	scanner *indexer.Scanner
	pool    *source.Pool
}

func NewHandlers(st *store.Store, scanner *indexer.Scanner, pool *source.Pool) *Handlers {
	return &Handlers{store: st, scanner: scanner, pool: pool}
}

func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/movies", h.Movies)
	r.Get("/tvshows", h.TvShows)
	r.Get("/tvshow/{id}", h.TvShow)
	r.Get("/episode/{id}/next", h.episodeNeighbor(true))
	r.Get("/episode/{id}/previous", h.episodeNeighbor(false))
	r.Get("/search", h.Search)
	r.Get("/item/{id}", h.Item)
	r.Post("/scan", h.Scan)
	r.Get("/scan/progress", h.ScanProgress)
}

func (h *Handlers) Movies(w http.ResponseWriter, r *http.Request) {
	movies, err := h.store.ListMovies()
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"count": len(movies), "movies": movies})
}

// TvShows returns every MediaItem of kind tvshow; spec.md §6 keeps the show
// container and its season/episode tree as separate lookups.
func (h *Handlers) TvShows(w http.ResponseWriter, r *http.Request) {
	shows, err := h.store.ListTvShowItems()
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"count": len(shows), "tvShows": shows})
}

// season groups a TvShow's episodes by season number, ordered by episode
// number, the shape spec.md §6's tvshow/:id route names.
type season struct {
	SeasonNumber int               `json:"seasonNumber"`
	Episodes     []*models.Episode `json:"episodes"`
}

func (h *Handlers) TvShow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	show, err := h.store.GetTvShow(id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	episodes, err := h.store.ListEpisodesByShow(id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	bySeason := map[int]*season{}
	var order []int
	for _, ep := range episodes {
		s, ok := bySeason[ep.Season]
		if !ok {
			s = &season{SeasonNumber: ep.Season}
			bySeason[ep.Season] = s
			order = append(order, ep.Season)
		}
		s.Episodes = append(s.Episodes, ep)
	}
	seasons := make([]*season, 0, len(order))
	for _, n := range order {
		seasons = append(seasons, bySeason[n])
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"show":    show,
		"seasons": seasons,
	})
}

func (h *Handlers) episodeNeighbor(forward bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathInt64(w, r, "id")
		if !ok {
			return
		}
		ep, err := h.store.NeighborEpisode(id, forward)
		if err != nil {
			httputil.WriteAppError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, ep)
	}
}

func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		httputil.WriteError(w, http.StatusBadRequest, "InvalidInput", "q parameter required")
		return
	}
	kind := models.MediaKind(r.URL.Query().Get("type"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 25
	}
	results, err := h.store.Search(q, kind, limit)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func (h *Handlers) Item(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	item, err := h.store.GetMediaItem(id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, item)
}

type scanRequest struct {
	Path string `json:"path"`
}

// Scan implements POST /library/scan: per spec.md §6, path names a source's
// base path (matched against Source.BasePath); the walk itself always starts
// from that source's root, since ProtocolClient.List takes source-relative
// paths rather than filesystem ones.
func (h *Handlers) Scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	httputil.ReadJSON(r, &req)

	sources, err := h.store.ListSources()
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	var target *models.Source
	for _, src := range sources {
		if !src.Enabled {
			continue
		}
		if req.Path == "" || (src.BasePath != nil && *src.BasePath == req.Path) {
			target = src
			break
		}
	}
	if target == nil {
		httputil.WriteError(w, http.StatusNotFound, "NotFound", "no matching enabled source")
		return
	}

	client, err := h.pool.Acquire(r.Context(), target.ID, "/")
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	if err := h.scanner.StartAsync(context.Background(), target, client); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "scan started",
		"progress": h.scanner.CurrentProgress(),
	})
}

func (h *Handlers) ScanProgress(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.scanner.CurrentProgress())
}

func pathInt64(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "InvalidInput", "invalid id")
		return 0, false
	}
	return id, true
}
