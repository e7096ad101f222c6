// Package subtitles serves the sidecar subtitle tracks the Indexer attaches
// to a MediaItem during a scan, grounded on the teacher's direct.go
// extension-to-MIME convention (internal/stream/direct.go).
package subtitles

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JustinTDCT/mediaserver/internal/httputil"
	"github.com/JustinTDCT/mediaserver/internal/models"
	"github.com/JustinTDCT/mediaserver/internal/source"
	"github.com/JustinTDCT/mediaserver/internal/store"
)

type Handlers struct {
	store *store.Store
}

func NewHandlers(st *store.Store) *Handlers {
	return &Handlers{store: st}
}

func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/media/{id}", h.ListForMedia)
	r.Get("/{id}", h.Serve)
}

func (h *Handlers) ListForMedia(w http.ResponseWriter, r *http.Request) {
	mediaID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "InvalidInput", "invalid id")
		return
	}
	subs, err := h.store.ListSubtitlesByMedia(mediaID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"subtitles": subs})
}

func (h *Handlers) Serve(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "InvalidInput", "invalid id")
		return
	}
	sub, err := h.store.GetSubtitle(id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	item, err := h.store.GetMediaItem(sub.MediaItemID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	// Subtitle sidecars serve the same way the Streamer's ffmpeg-backed paths
	// do: only Local sources resolve to a real filesystem path in this
	// server's scope (see internal/streamhttp's localInputPath).
	if item.SourceKind != models.SourceLocal || item.SourceID == nil {
		httputil.WriteError(w, http.StatusBadGateway, "Upstream", "subtitle serving is only supported for local sources")
		return
	}
	src, err := h.store.GetSource(*item.SourceID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	root := ""
	if src.BasePath != nil {
		root = *src.BasePath
	}

	w.Header().Set("Content-Type", mimeFor(sub.Format))
	http.ServeFile(w, r, source.ResolveLocalPath(root, sub.FilePath))
}

func mimeFor(format models.SubtitleFormat) string {
	switch format {
	case models.SubtitleVTT:
		return "text/vtt"
	case models.SubtitleASS:
		return "text/x-ssa"
	default:
		return "application/x-subrip"
	}
}
