package streamhttp

import (
	"net/http"

	"github.com/JustinTDCT/mediaserver/internal/httputil"
)

// Info implements GET /stream/{id}/info: the ffprobe-derived technical
// summary a client uses to decide how to play a title.
func (s *Streamer) Info(w http.ResponseWriter, r *http.Request) {
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

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"durationSeconds": result.DurationSeconds(),
		"fileSize":        result.FileSize(),
		"bitrate":         result.Bitrate(),
		"width":           result.Width(),
		"height":          result.Height(),
		"videoCodec":      result.VideoCodec(),
		"audioCodec":      result.AudioCodec(),
		"audioChannels":   result.AudioChannels(),
		"container":       result.Container(),
		"qualityLabel":    result.QualityLabel(),
		"needsTranscode":  result.NeedsTranscoding(),
	})
}

// Qualities implements GET /stream/{id}/qualities: the subset of the fixed
// output ladder at or below the source's own resolution.
func (s *Streamer) Qualities(w http.ResponseWriter, r *http.Request) {
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
	labels := make([]string, 0, len(ladder))
	for _, rung := range ladder {
		labels = append(labels, rung.Label)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"qualities": labels})
}
