package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/JustinTDCT/mediaserver/internal/metadata"
	"github.com/JustinTDCT/mediaserver/internal/models"
	"github.com/JustinTDCT/mediaserver/internal/store"
)

// MetadataEnrichPayload is the asynq task payload dispatched for a single
// media item, per spec.md §4.1 step 6.
type MetadataEnrichPayload struct {
	MediaItemID int64 `json:"media_item_id"`
}

// MetadataHandler looks up the best provider match for a media item and
// writes it back through Store.UpdateEnrichment, grounded on the teacher's
// internal/jobs/task_metadata.go MetadataScrapeHandler asynq.Handler shape,
// trimmed down to the single-provider enrichment step the spec names (the
// teacher's handler additionally drove scanner/notification coupling this
// rewrite has no equivalent for).
type MetadataHandler struct {
	store    *store.Store
	provider metadata.Provider
}

func NewMetadataHandler(st *store.Store, provider metadata.Provider) *MetadataHandler {
	return &MetadataHandler{store: st, provider: provider}
}

func (h *MetadataHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload MetadataEnrichPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal metadata enrich payload: %w", err)
	}

	item, err := h.store.GetMediaItem(payload.MediaItemID)
	if err != nil {
		return fmt.Errorf("load media item %d: %w", payload.MediaItemID, err)
	}

	if item.Kind == models.MediaEpisode {
		return h.enrichEpisode(item)
	}
	return h.enrichTopLevel(item)
}

func (h *MetadataHandler) enrichTopLevel(item *models.MediaItem) error {
	matches, err := h.provider.Search(item.Title, item.Kind)
	if err != nil {
		log.Printf("[jobs] metadata search failed for media %d (%q): %v", item.ID, item.Title, err)
		return err
	}
	if len(matches) == 0 {
		log.Printf("[jobs] no metadata match for media %d (%q)", item.ID, item.Title)
		return nil
	}

	best := matches[0]
	for _, m := range matches[1:] {
		if m.Confidence > best.Confidence {
			best = m
		}
	}

	details, err := h.provider.Details(best.ExternalID, item.Kind)
	if err != nil {
		// Fall back to the search-result fields rather than failing the job;
		// a partial enrichment is better than none.
		details = &best
	}

	genres := strings.Join(details.Genres, ", ")
	cast := strings.Join(details.Cast, ", ")
	overview := details.Overview
	poster := details.PosterURL
	backdrop := details.Backdrop
	rating := details.Rating

	if err := h.store.UpdateEnrichment(item.ID, &details.ExternalID, &overview, &poster, &backdrop, &genres, &cast, &rating); err != nil {
		return fmt.Errorf("persist enrichment for media %d: %w", item.ID, err)
	}
	log.Printf("[jobs] enriched media %d from provider match %q (confidence %.2f)", item.ID, details.Title, details.Confidence)
	return nil
}

func (h *MetadataHandler) enrichEpisode(item *models.MediaItem) error {
	episode, err := h.store.GetEpisode(item.ID)
	if err != nil {
		return fmt.Errorf("load episode for media %d: %w", item.ID, err)
	}
	show, err := h.store.GetTvShow(episode.TvShowID)
	if err != nil {
		return fmt.Errorf("load show for episode %d: %w", episode.ID, err)
	}
	if show.ExternalID == nil {
		log.Printf("[jobs] show %d has no external id yet, skipping episode %d", show.ID, episode.ID)
		return nil
	}

	details, err := h.provider.EpisodeDetails(*show.ExternalID, episode.Season, episode.EpisodeNumber)
	if err != nil {
		log.Printf("[jobs] episode details failed for media %d: %v", item.ID, err)
		return err
	}

	overview := details.Overview
	poster := details.StillPath
	var empty string
	if err := h.store.UpdateEnrichment(item.ID, show.ExternalID, &overview, &poster, &empty, &empty, &empty, nil); err != nil {
		return fmt.Errorf("persist episode enrichment for media %d: %w", item.ID, err)
	}
	log.Printf("[jobs] enriched episode media %d (S%02dE%02d)", item.ID, episode.Season, episode.EpisodeNumber)
	return nil
}
