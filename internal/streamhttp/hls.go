package streamhttp

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JustinTDCT/mediaserver/internal/hls"
	"github.com/JustinTDCT/mediaserver/internal/httputil"
	"github.com/JustinTDCT/mediaserver/internal/jobs"
)

const defaultHLSLabel = "720p"

// HLSManifest implements GET /stream/{id}/hls/manifest.m3u8. A cached
// manifest is served immediately; otherwise segment generation is
// dispatched asynchronously and the client is told to poll, per spec.md
// §4.6's cold-start HLS contract.
func (s *Streamer) HLSManifest(w http.ResponseWriter, r *http.Request) {
	item, ok := s.mediaItem(w, r)
	if !ok {
		return
	}

	label := r.URL.Query().Get("quality")
	if label == "" {
		label = defaultHLSLabel
	}
	manifestPath := s.hlsManifestPath(item.ID, label)

	if playlist, err := hls.ReadMediaPlaylist(manifestPath); err == nil && len(playlist.Segments) > 0 {
		s.cache.Touch(manifestPath)
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		w.WriteHeader(http.StatusOK)
		w.Write(playlist.Encode().Bytes())
		return
	}

	if s.queue != nil {
		uniqueID := fmt.Sprintf("hls:%d:%s", item.ID, label)
		payload := jobs.HLSGeneratePayload{MediaItemID: item.ID, Label: label}
		if _, err := s.queue.EnqueueUnique(jobs.TaskGenerateHLS, payload, uniqueID); err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "Internal", "could not schedule hls generation")
			return
		}
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "generating"})
}

// HLSSegment implements GET /stream/{id}/hls/{segment}: serves a cached .ts
// chunk, 404 if the segment hasn't been produced yet.
func (s *Streamer) HLSSegment(w http.ResponseWriter, r *http.Request) {
	item, ok := s.mediaItem(w, r)
	if !ok {
		return
	}
	segment := chi.URLParam(r, "segment")
	label := r.URL.Query().Get("quality")
	if label == "" {
		label = defaultHLSLabel
	}

	segPath := filepath.Join(s.hlsOutputDir(item.ID, label), segment)
	f, err := os.Open(segPath)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "NotFound", "segment not ready")
		return
	}
	defer f.Close()

	s.cache.Touch(segPath)
	w.Header().Set("Content-Type", "video/mp2t")
	modTime := time.Now()
	if fi, err := f.Stat(); err == nil {
		modTime = fi.ModTime()
	}
	http.ServeContent(w, r, segment, modTime, f)
}

func (s *Streamer) hlsOutputDir(mediaID int64, label string) string {
	return filepath.Join(s.cache.Root(), fmt.Sprintf("hls_%d", mediaID), label)
}

func (s *Streamer) hlsManifestPath(mediaID int64, label string) string {
	return filepath.Join(s.hlsOutputDir(mediaID, label), "playlist.m3u8")
}

// HLSMasterManifest implements GET /stream/{id}/hls/master.m3u8: the
// adaptive ladder spec.md §6 names, one #EXT-X-STREAM-INF variant per
// quality rung the source supports, each pointing back at the per-label
// media playlist route.
func (s *Streamer) HLSMasterManifest(w http.ResponseWriter, r *http.Request) {
	item, ok := s.mediaItem(w, r)
	if !ok {
		return
	}
	inputPath, err := s.localInputPath(item)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	result, err := s.prober.Probe(inputPath)
	if err != nil {
		httputil.WriteError(w, http.StatusUnprocessableEntity, "EncodeFailed", "could not inspect media file")
		return
	}

	ladder := result.Ladder()
	variants := make([]hls.Variant, 0, len(ladder))
	for _, rung := range ladder {
		variants = append(variants, hls.Variant{
			Label:        rung.Label,
			BandwidthBPS: rung.VideoBitrate * 1000,
			Width:        ladderWidth(result.Width(), result.Height(), rung.Height),
			Height:       rung.Height,
			PlaylistPath: fmt.Sprintf("manifest.m3u8?quality=%s", rung.Label),
		})
	}
	master := &hls.MasterPlaylist{Variants: variants}

	masterPath := filepath.Join(s.cache.Root(), fmt.Sprintf("hls_%d", item.ID), "master.m3u8")
	if err := os.MkdirAll(filepath.Dir(masterPath), 0o755); err == nil {
		if err := hls.WriteMasterPlaylist(masterPath, master); err == nil {
			s.cache.Touch(masterPath)
		}
	}

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.WriteHeader(http.StatusOK)
	w.Write(master.Encode().Bytes())
}

// ladderWidth approximates a rung's width from the source's own aspect
// ratio, since the output ladder only fixes height (scale=-2:H lets ffmpeg
// pick width); falls back to 16:9 when the source dimensions are unknown.
func ladderWidth(srcWidth, srcHeight, rungHeight int) int {
	if srcWidth <= 0 || srcHeight <= 0 {
		return rungHeight * 16 / 9
	}
	w := rungHeight * srcWidth / srcHeight
	if w%2 != 0 {
		w++
	}
	return w
}
