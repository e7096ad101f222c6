package streamhttp

import (
	"net/http"
	"path/filepath"

	"github.com/JustinTDCT/mediaserver/internal/httputil"
)

// Transcode implements GET /stream/{id}/transcode?quality=label: a realtime
// fragmented-MP4 stream at the requested rung. Cancelling the request
// context (client disconnect) kills the underlying ffmpeg process, per
// spec.md §4.6's cancellation rule for direct/transcoded delivery.
func (s *Streamer) Transcode(w http.ResponseWriter, r *http.Request) {
	item, ok := s.mediaItem(w, r)
	if !ok {
		return
	}
	label := r.URL.Query().Get("quality")
	if label == "" {
		httputil.WriteError(w, http.StatusBadRequest, "InvalidInput", "quality is required")
		return
	}

	inputPath, err := s.localInputPath(item)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	profile, err := s.transcoder.ProfileForLabel(label)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Transfer-Encoding", "chunked")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}
	s.transcoder.StreamTranscode(r.Context(), inputPath, flushWriter{w, flusher}, profile)
}

// Pretranscode implements POST /stream/{id}/pretranscode: kicks off (and
// blocks on) a cached-file encode at the requested quality, leaving
// <id>_<label>.mp4 in the cache root. The /transcode route does not read
// this file; it always encodes in realtime.
func (s *Streamer) Pretranscode(w http.ResponseWriter, r *http.Request) {
	item, ok := s.mediaItem(w, r)
	if !ok {
		return
	}
	var body struct {
		Quality string `json:"quality"`
	}
	if err := httputil.ReadJSON(r, &body); err != nil || body.Quality == "" {
		httputil.WriteError(w, http.StatusBadRequest, "InvalidInput", "quality is required")
		return
	}

	inputPath, err := s.localInputPath(item)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	output, err := s.transcoder.TranscodeQuality(r.Context(), item.ID, body.Quality, inputPath, s.cache.Root())
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	s.cache.Touch(output)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"file": filepath.Base(output), "status": "ready"})
}
