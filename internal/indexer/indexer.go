// Package indexer walks a ProtocolClient source, classifies and parses
// media files, and upserts them into the Store, per spec.md §4.1.
package indexer

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/JustinTDCT/mediaserver/internal/apperr"
	"github.com/JustinTDCT/mediaserver/internal/jobs"
	"github.com/JustinTDCT/mediaserver/internal/models"
	"github.com/JustinTDCT/mediaserver/internal/progress"
	"github.com/JustinTDCT/mediaserver/internal/source"
	"github.com/JustinTDCT/mediaserver/internal/store"
)

const numWalkWorkers = 8

// Progress is the atomically-updated snapshot spec.md §4.1 names, readable
// by any concurrent observer via Scanner.CurrentProgress and pushed over the
// websocket hub on every update.
type Progress struct {
	TotalFiles      int      `json:"totalFiles"`
	ScannedFiles    int      `json:"scannedFiles"`
	AddedFiles      int      `json:"addedFiles"`
	MetadataFetched int      `json:"metadataFetched"`
	Errors          []string `json:"errors"`
	Done            bool     `json:"done"`
}

// scanFile is one video file queued for worker processing.
type scanFile struct {
	path string
	name string
	size int64
}

// Scanner is the Indexer. Grounded on the teacher's internal/scanner.Scanner
// worker-pool-over-buffered-channel walk, generalized from a bare
// filepath.WalkDir to ProtocolClient.List so it works identically across
// Local/FTP/SMB/UPnP sources.
type Scanner struct {
	store *store.Store
	queue *jobs.Queue
	hub   *progress.Hub

	mu      sync.Mutex
	running bool

	total, scanned, added, fetched int64
	errorsMu                       sync.Mutex
	errs                           []string
}

func NewScanner(st *store.Store, queue *jobs.Queue, hub *progress.Hub) *Scanner {
	return &Scanner{store: st, queue: queue, hub: hub}
}

// Scan walks client starting at the source's configured base path (root
// "/"), classifying, parsing, and upserting every eligible video file not
// already indexed, and blocks until the walk completes. Only one scan may
// run per process at a time; a second concurrent call returns
// apperr.ErrScanBusy.
func (s *Scanner) Scan(ctx context.Context, src *models.Source, client source.ProtocolClient) (*Progress, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()
	return s.runScan(ctx, src, client), nil
}

// StartAsync claims the running slot synchronously (so a concurrent caller
// gets ErrScanBusy immediately, per spec.md §6's "409 if a scan is running")
// and runs the walk itself on a background goroutine so the HTTP handler can
// answer with {message, progress} right away.
func (s *Scanner) StartAsync(ctx context.Context, src *models.Source, client source.ProtocolClient) error {
	if err := s.begin(); err != nil {
		return err
	}
	go func() {
		defer s.end()
		s.runScan(ctx, src, client)
	}()
	return nil
}

func (s *Scanner) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return apperr.ErrScanBusy
	}
	s.running = true
	return nil
}

func (s *Scanner) end() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *Scanner) runScan(ctx context.Context, src *models.Source, client source.ProtocolClient) *Progress {
	atomic.StoreInt64(&s.total, 0)
	atomic.StoreInt64(&s.scanned, 0)
	atomic.StoreInt64(&s.added, 0)
	atomic.StoreInt64(&s.fetched, 0)
	s.errorsMu.Lock()
	s.errs = nil
	s.errorsMu.Unlock()

	fileCh := make(chan scanFile, numWalkWorkers*4)
	dirEntries := newDirCache() // path -> siblings, for subtitle sidecar lookup

	var wg sync.WaitGroup
	for i := 0; i < numWalkWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range fileCh {
				s.processFile(ctx, src, client, f, dirEntries)
				s.broadcast(false)
			}
		}()
	}

	if err := s.walk(ctx, client, "/", fileCh, dirEntries); err != nil {
		s.recordError(fmt.Sprintf("walk failed: %v", err))
	}
	close(fileCh)
	wg.Wait()

	s.broadcast(true)
	return s.snapshot(true)
}

// dirCache holds each listed directory's full entry set (for subtitle
// sidecar discovery), guarded by a mutex since the walking goroutine writes
// it while worker goroutines read it concurrently.
type dirCache struct {
	mu      sync.Mutex
	entries map[string][]source.Entry
}

func newDirCache() *dirCache { return &dirCache{entries: make(map[string][]source.Entry)} }

func (d *dirCache) set(dir string, entries []source.Entry) {
	d.mu.Lock()
	d.entries[dir] = entries
	d.mu.Unlock()
}

func (d *dirCache) get(dir string) []source.Entry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.entries[dir]
}

// walk depth-first lists directories via client.List, queuing video files
// onto fileCh and caching each directory's full entry list in dirEntries.
func (s *Scanner) walk(ctx context.Context, client source.ProtocolClient, dir string, fileCh chan<- scanFile, dirEntries *dirCache) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	entries, err := client.List(ctx, dir)
	if err != nil {
		s.recordError(fmt.Sprintf("list %s: %v", dir, err))
		return nil
	}
	dirEntries.set(dir, entries)

	for _, e := range entries {
		if e.IsDir {
			if err := s.walk(ctx, client, e.Path, fileCh, dirEntries); err != nil {
				return err
			}
			continue
		}
		if !isVideoFile(e.Path) {
			continue
		}
		atomic.AddInt64(&s.total, 1)
		fileCh <- scanFile{path: e.Path, name: e.Name, size: e.Size}
	}
	return nil
}

func (s *Scanner) processFile(ctx context.Context, src *models.Source, client source.ProtocolClient, f scanFile, dirEntries *dirCache) {
	atomic.AddInt64(&s.scanned, 1)

	existing, err := s.store.FindByPath(sourceKind(src), &src.ID, f.path)
	if err != nil {
		s.recordError(fmt.Sprintf("db check %s: %v", f.path, err))
		return
	}
	if existing != nil {
		return
	}

	parsed := ParseFilename(f.path, f.name)

	item := &models.MediaItem{
		Title:      parsed.Title,
		Year:       parsed.Year,
		FilePath:   f.path,
		FileSize:   f.size,
		SourceKind: sourceKind(src),
		SourceID:   &src.ID,
	}

	var mediaItemID int64
	if parsed.IsEpisode {
		show, err := s.store.UpsertTvShow(parsed.ShowName, sourceKind(src), &src.ID, filepath.Dir(f.path))
		if err != nil {
			s.recordError(fmt.Sprintf("upsert show for %s: %v", f.path, err))
			return
		}
		item.Kind = models.MediaEpisode
		if err := s.store.CreateMediaItem(item); err != nil {
			if !isConflict(err) {
				s.recordError(fmt.Sprintf("insert media item %s: %v", f.path, err))
			}
			return
		}
		title := parsed.Title
		ep := &models.Episode{
			TvShowID:    show.ID,
			Season:      parsed.Season,
			EpisodeNumber: parsed.Episode,
			MediaItemID: item.ID,
			Title:       &title,
		}
		if err := s.store.CreateEpisode(ep); err != nil && !isConflict(err) {
			s.recordError(fmt.Sprintf("insert episode %s: %v", f.path, err))
			return
		}
		mediaItemID = item.ID
	} else {
		item.Kind = models.MediaMovie
		if err := s.store.CreateMediaItem(item); err != nil {
			if !isConflict(err) {
				s.recordError(fmt.Sprintf("insert media item %s: %v", f.path, err))
			}
			return
		}
		mediaItemID = item.ID
	}

	atomic.AddInt64(&s.added, 1)
	log.Printf("[indexer] added %s (media %d)", f.path, mediaItemID)

	s.attachSubtitles(f, dirEntries, mediaItemID)

	if s.queue != nil {
		uniqueID := fmt.Sprintf("metadata:%d", mediaItemID)
		if _, err := s.queue.EnqueueUnique(jobs.TaskMetadataEnrich, jobs.MetadataEnrichPayload{MediaItemID: mediaItemID}, uniqueID); err != nil {
			log.Printf("[indexer] enqueue metadata enrich for media %d: %v", mediaItemID, err)
		} else {
			atomic.AddInt64(&s.fetched, 1)
		}
	}
}

// attachSubtitles implements spec.md §4.1 step 7: sidecar files in the same
// directory whose stem starts with the video's stem.
func (s *Scanner) attachSubtitles(f scanFile, dirEntries *dirCache, mediaItemID int64) {
	dir := filepath.Dir(f.path)
	siblings := dirEntries.get(dir)
	videoStem := strings.TrimSuffix(f.name, filepath.Ext(f.name))

	first := true
	for _, sib := range siblings {
		if sib.IsDir {
			continue
		}
		ext := strings.ToLower(filepath.Ext(sib.Name))
		if !subtitleExtensions[ext] {
			continue
		}
		stem := strings.TrimSuffix(sib.Name, filepath.Ext(sib.Name))
		if !strings.HasPrefix(stem, videoStem) {
			continue
		}
		suffix := strings.TrimPrefix(stem, videoStem)
		lang, label := subtitleLangLabel(suffix)

		isDefault := first
		if isDefault {
			hasDefault, err := s.store.AnySubtitleIsDefault(mediaItemID)
			if err == nil && hasDefault {
				isDefault = false
			}
		}

		sub := &models.Subtitle{
			MediaItemID: mediaItemID,
			Language:    lang,
			Label:       label,
			FilePath:    sib.Path,
			Format:      models.SubtitleFormat(strings.TrimPrefix(ext, ".")),
			IsDefault:   isDefault,
		}
		if err := s.store.CreateSubtitle(sub); err != nil {
			s.recordError(fmt.Sprintf("insert subtitle %s: %v", sib.Path, err))
			continue
		}
		first = false
	}
}

// CurrentProgress returns the live snapshot for GET /library/scan/progress,
// done=true whenever no scan is currently running.
func (s *Scanner) CurrentProgress() *Progress {
	return s.snapshot(!s.isRunning())
}

func (s *Scanner) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scanner) recordError(msg string) {
	s.errorsMu.Lock()
	s.errs = append(s.errs, msg)
	s.errorsMu.Unlock()
}

func (s *Scanner) snapshot(done bool) *Progress {
	s.errorsMu.Lock()
	errs := append([]string(nil), s.errs...)
	s.errorsMu.Unlock()
	return &Progress{
		TotalFiles:      int(atomic.LoadInt64(&s.total)),
		ScannedFiles:    int(atomic.LoadInt64(&s.scanned)),
		AddedFiles:      int(atomic.LoadInt64(&s.added)),
		MetadataFetched: int(atomic.LoadInt64(&s.fetched)),
		Errors:          errs,
		Done:            done,
	}
}

func (s *Scanner) broadcast(terminal bool) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast("scan:progress", "scan", s.snapshot(terminal), terminal)
}

func sourceKind(src *models.Source) models.SourceKind {
	switch src.Protocol {
	case models.ProtocolFTP:
		return models.SourceFTP
	case models.ProtocolSMB:
		return models.SourceSMB
	case models.ProtocolUPnP:
		return models.SourceUPnP
	default:
		return models.SourceLocal
	}
}

func isConflict(err error) bool {
	return apperr.Code(err) == string(apperr.Conflict)
}
