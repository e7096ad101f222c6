package scheduler

import (
	"testing"

	"github.com/JustinTDCT/mediaserver/internal/models"
)

type fakeStore struct {
	due      []*models.Source
	advanced []int64
}

func (f *fakeStore) DueForScan() ([]*models.Source, error) {
	return f.due, nil
}

func (f *fakeStore) AdvanceNextScan(sourceID int64, interval string) error {
	f.advanced = append(f.advanced, sourceID)
	return nil
}

func TestCheckAdvancesAndDispatchesEveryDueSource(t *testing.T) {
	store := &fakeStore{due: []*models.Source{
		{ID: 1, Name: "Movies"},
		{ID: 2, Name: "TV Shows"},
	}}

	var fired []int64
	s := New(store, func(src *models.Source) {
		fired = append(fired, src.ID)
	})

	s.check()

	if len(fired) != 2 || fired[0] != 1 || fired[1] != 2 {
		t.Fatalf("callback fired for %v, want [1 2]", fired)
	}
	if len(store.advanced) != 2 {
		t.Fatalf("AdvanceNextScan called %d times, want 2", len(store.advanced))
	}
}

func TestCheckWithNoDueSourcesDoesNothing(t *testing.T) {
	store := &fakeStore{}
	called := false
	s := New(store, func(src *models.Source) { called = true })

	s.check()

	if called {
		t.Fatal("callback should not fire when no sources are due")
	}
}
