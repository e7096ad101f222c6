package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/JustinTDCT/mediaserver/internal/apperr"
	"github.com/JustinTDCT/mediaserver/internal/models"
	"github.com/JustinTDCT/mediaserver/internal/source"
	"github.com/JustinTDCT/mediaserver/internal/store"
	"github.com/JustinTDCT/mediaserver/internal/transcode"
)

// HLSGeneratePayload is dispatched when a cold-start manifest request kicks
// off background segment generation, per spec.md §4.6.
type HLSGeneratePayload struct {
	MediaItemID int64  `json:"media_item_id"`
	Label       string `json:"label"`
}

// HLSHandler runs the (potentially slow) encoder job asynchronously so the
// HTTP handler can respond 202 immediately, per the teacher's
// fire-and-forget asynq.Handler pattern in internal/jobs/task_metadata.go.
type HLSHandler struct {
	store              *store.Store
	transcoder         *transcode.Transcoder
	cacheRoot          string
	segmentDurationSec int
}

func NewHLSHandler(st *store.Store, tc *transcode.Transcoder, cacheRoot string, segmentDurationSec int) *HLSHandler {
	return &HLSHandler{store: st, transcoder: tc, cacheRoot: cacheRoot, segmentDurationSec: segmentDurationSec}
}

func (h *HLSHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload HLSGeneratePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal hls generate payload: %w", err)
	}

	item, err := h.store.GetMediaItem(payload.MediaItemID)
	if err != nil {
		return fmt.Errorf("load media item %d: %w", payload.MediaItemID, err)
	}

	inputPath, err := h.inputPath(item)
	if err != nil {
		return err
	}

	manifest, err := h.transcoder.GenerateHLS(ctx, item.ID, payload.Label, inputPath, h.cacheRoot, h.segmentDurationSec)
	if err != nil {
		log.Printf("[jobs] hls generation failed for media %d/%s: %v", item.ID, payload.Label, err)
		return err
	}
	log.Printf("[jobs] hls manifest ready for media %d/%s: %s", item.ID, payload.Label, manifest)
	return nil
}

// inputPath resolves the real filesystem path ffmpeg reads from. Only Local
// sources are supported here: remote protocols would need their bytes piped
// through ffmpeg's stdin, which this job and the Streamer's realtime paths
// don't attempt within this server's scope.
func (h *HLSHandler) inputPath(item *models.MediaItem) (string, error) {
	if item.SourceKind != models.SourceLocal || item.SourceID == nil {
		return "", apperr.New(apperr.InvalidInput, "hls generation is only supported for local sources")
	}
	src, err := h.store.GetSource(*item.SourceID)
	if err != nil {
		return "", fmt.Errorf("load source %d: %w", *item.SourceID, err)
	}
	root := ""
	if src.BasePath != nil {
		root = *src.BasePath
	}
	return source.ResolveLocalPath(root, item.FilePath), nil
}
