// Package scheduler checks for Source rows due for a periodic scan,
// adapted directly from the teacher's internal/scheduler.Scheduler
// (uuid-keyed Library due-check ticker), generalized to int64-keyed Source
// rows per SPEC_FULL.md's supplemented scheduled-scan feature.
package scheduler

import (
	"log"
	"time"

	"github.com/JustinTDCT/mediaserver/internal/models"
)

// OnScanDue is called when a source is due for a scheduled scan.
type OnScanDue func(src *models.Source)

type sourceLister interface {
	DueForScan() ([]*models.Source, error)
	AdvanceNextScan(sourceID int64, interval string) error
}

// Scheduler ticks every interval and dispatches OnScanDue for each source
// whose next_scan_at has elapsed.
type Scheduler struct {
	store    sourceLister
	callback OnScanDue
	interval time.Duration
	// nextScanOffset is the SQLite datetime() modifier AdvanceNextScan uses
	// to push a triggered source's next_scan_at forward immediately.
	nextScanOffset string
	stop           chan struct{}
}

func New(store sourceLister, cb OnScanDue) *Scheduler {
	return &Scheduler{
		store:          store,
		callback:       cb,
		interval:       60 * time.Second,
		nextScanOffset: "+24 hours",
		stop:           make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	go s.run()
	log.Println("[scheduler] scheduled scan checker started (60s interval)")
}

func (s *Scheduler) Stop() {
	close(s.stop)
}

func (s *Scheduler) run() {
	time.Sleep(10 * time.Second)
	s.check()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.check()
		case <-s.stop:
			log.Println("[scheduler] scheduler stopped")
			return
		}
	}
}

func (s *Scheduler) check() {
	sources, err := s.store.DueForScan()
	if err != nil {
		log.Printf("[scheduler] error checking due sources: %v", err)
		return
	}

	for _, src := range sources {
		log.Printf("[scheduler] source %q is due for scan", src.Name)

		if err := s.store.AdvanceNextScan(src.ID, s.nextScanOffset); err != nil {
			log.Printf("[scheduler] error advancing next_scan_at for %s: %v", src.Name, err)
		}

		s.callback(src)
	}
}
