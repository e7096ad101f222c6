// Package cache manages the transcoded-artifact cache root: rolling
// {total_bytes, file_count} totals, a size-cap LRU-by-mtime eviction sweep,
// and a TTL sweep, per spec.md §4.5. The size/inflight bookkeeping is
// grounded on the teacher's transcoder sessions map + mutex idiom
// (internal/stream/transcoder.go); the periodic sweep cadence is grounded on
// internal/scheduler/scheduler.go's ticker loop, generalized to a
// robfig/cron/v3 schedule since the sweep only needs to run a few times a
// day rather than every minute.
package cache

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Manager tracks the artifact cache root and enforces its eviction policy.
type Manager struct {
	root        string
	sizeCap     int64
	ttl         time.Duration
	cron        *cron.Cron
	entryID     cron.EntryID
	mu          sync.Mutex
	inFlight    map[string]bool // paths currently being written, immune to sweep
	totalBytes  int64
	fileCount   int
}

func New(root string, sizeCap int64, ttl time.Duration) *Manager {
	return &Manager{
		root:     root,
		sizeCap:  sizeCap,
		ttl:      ttl,
		cron:     cron.New(),
		inFlight: make(map[string]bool),
	}
}

// Start schedules the sweep at a 6-hour cadence and recomputes the size and
// file-count stats once; the first sweep runs at the first scheduled tick.
func (m *Manager) Start() error {
	id, err := m.cron.AddFunc("0 */6 * * *", m.Sweep)
	if err != nil {
		return fmt.Errorf("schedule cache sweep: %w", err)
	}
	m.entryID = id
	m.cron.Start()
	m.recompute()
	log.Println("[cache] sweep scheduled every 6 hours")
	return nil
}

func (m *Manager) Stop() {
	m.cron.Stop()
}

// Root returns the cache directory so callers can build artifact paths
// without duplicating the layout convention.
func (m *Manager) Root() string {
	return m.root
}

// Touch updates a file's mtime so the LRU-by-mtime sweep treats it as
// recently used; the Transcoder and Streamer must call this on every access.
func (m *Manager) Touch(path string) {
	now := time.Now()
	_ = os.Chtimes(path, now, now)
}

// BeginWrite/EndWrite mark a path in-flight so a concurrent sweep never
// deletes a file a job is actively writing.
func (m *Manager) BeginWrite(path string) {
	m.mu.Lock()
	m.inFlight[path] = true
	m.mu.Unlock()
}

func (m *Manager) EndWrite(path string) {
	m.mu.Lock()
	delete(m.inFlight, path)
	m.mu.Unlock()
}

// Stats reports the rolling totals, recomputed lazily on Start and after
// each sweep.
type Stats struct {
	TotalBytes int64
	FileCount  int
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{TotalBytes: m.totalBytes, FileCount: m.fileCount}
}

// Sweep deletes TTL-expired artifacts, then evicts oldest-by-mtime files
// until the cache is at or below its size cap.
func (m *Manager) Sweep() {
	entries, err := m.listArtifacts()
	if err != nil {
		log.Printf("[cache] sweep: list failed: %v", err)
		return
	}

	cutoff := time.Now().Add(-m.ttl)
	var kept []artifact
	for _, a := range entries {
		if m.isInFlight(a.path) {
			kept = append(kept, a)
			continue
		}
		if a.modTime.Before(cutoff) {
			m.remove(a)
			continue
		}
		kept = append(kept, a)
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].modTime.Before(kept[j].modTime) })

	var total int64
	for _, a := range kept {
		total += a.size
	}
	i := 0
	for total > m.sizeCap && i < len(kept) {
		a := kept[i]
		if m.isInFlight(a.path) {
			i++
			continue
		}
		m.remove(a)
		total -= a.size
		i++
	}

	m.recompute()
}

// ClearMedia removes the HLS tree and every transcoded MP4 for mediaID,
// implementing spec.md §4.5's targeted invalidation.
func (m *Manager) ClearMedia(mediaID int64) error {
	hlsDir := filepath.Join(m.root, fmt.Sprintf("hls_%d", mediaID))
	if err := os.RemoveAll(hlsDir); err != nil && !os.IsNotExist(err) {
		return err
	}

	matches, err := filepath.Glob(filepath.Join(m.root, fmt.Sprintf("%d_*.mp4", mediaID)))
	if err != nil {
		return err
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	m.recompute()
	return nil
}

type artifact struct {
	path    string
	size    int64
	modTime time.Time
}

func (m *Manager) listArtifacts() ([]artifact, error) {
	var out []artifact
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	for _, e := range entries {
		name := e.Name()
		full := filepath.Join(m.root, name)
		if e.IsDir() {
			if strings.HasPrefix(name, "hls_") {
				size, latest, walkErr := walkDirSummary(full)
				if walkErr != nil {
					continue
				}
				out = append(out, artifact{path: full, size: size, modTime: latest})
			}
			continue
		}
		if strings.HasSuffix(name, ".mp4") {
			info, statErr := e.Info()
			if statErr != nil {
				continue
			}
			out = append(out, artifact{path: full, size: info.Size(), modTime: info.ModTime()})
		}
	}
	return out, nil
}

func walkDirSummary(dir string) (int64, time.Time, error) {
	var total int64
	var latest time.Time
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		total += info.Size()
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		return nil
	})
	return total, latest, err
}

func (m *Manager) remove(a artifact) {
	if fi, err := os.Stat(a.path); err == nil && fi.IsDir() {
		os.RemoveAll(a.path)
		return
	}
	os.Remove(a.path)
}

func (m *Manager) isInFlight(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight[path]
}

func (m *Manager) recompute() {
	entries, err := m.listArtifacts()
	if err != nil {
		return
	}
	var total int64
	for _, a := range entries {
		total += a.size
	}
	m.mu.Lock()
	m.totalBytes = total
	m.fileCount = len(entries)
	m.mu.Unlock()
}
