package watcher

import "testing"

func TestResolveSourceWalksUpToWatchedAncestor(t *testing.T) {
	w, err := New(func(sourceID int64, path string, isCreate bool) {})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Stop()

	w.watched["/media/movies"] = 7

	id, ok := w.resolveSource("/media/movies/Inception (2010)/Inception.mkv")
	if !ok || id != 7 {
		t.Fatalf("resolveSource = (%d, %v), want (7, true)", id, ok)
	}

	if _, ok := w.resolveSource("/unrelated/path/file.mkv"); ok {
		t.Fatal("resolveSource should not match an unwatched path")
	}
}

func TestUnwatchSourceRemovesAllItsDirectories(t *testing.T) {
	w, err := New(func(sourceID int64, path string, isCreate bool) {})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Stop()

	w.watched["/media/movies"] = 1
	w.watched["/media/movies/4K"] = 1
	w.watched["/media/tv"] = 2

	w.UnwatchSource(1)

	if len(w.watched) != 1 {
		t.Fatalf("watched has %d entries after unwatch, want 1", len(w.watched))
	}
	if _, ok := w.watched["/media/tv"]; !ok {
		t.Fatal("UnwatchSource removed an unrelated source's directory")
	}
}
