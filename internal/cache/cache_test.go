package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path string, size int, mtime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func TestSweepRemovesExpiredArtifacts(t *testing.T) {
	root := t.TempDir()
	old := filepath.Join(root, "1_720p.mp4")
	fresh := filepath.Join(root, "2_720p.mp4")
	writeFile(t, old, 100, time.Now().Add(-48*time.Hour))
	writeFile(t, fresh, 100, time.Now())

	m := New(root, 10*1024*1024, 24*time.Hour)
	m.Sweep()

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatal("expired artifact should have been removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh artifact should remain: %v", err)
	}
}

func TestSweepEvictsOldestBeyondSizeCap(t *testing.T) {
	root := t.TempDir()
	older := filepath.Join(root, "1_1080p.mp4")
	newer := filepath.Join(root, "2_1080p.mp4")
	writeFile(t, older, 600, time.Now().Add(-time.Minute))
	writeFile(t, newer, 600, time.Now())

	m := New(root, 1000, 30*24*time.Hour)
	m.Sweep()

	if _, err := os.Stat(older); !os.IsNotExist(err) {
		t.Fatal("oldest-by-mtime artifact should have been evicted over the size cap")
	}
	if _, err := os.Stat(newer); err != nil {
		t.Fatalf("newest artifact should remain: %v", err)
	}
}

func TestSweepSkipsInFlightArtifacts(t *testing.T) {
	root := t.TempDir()
	writing := filepath.Join(root, "3_720p.mp4")
	writeFile(t, writing, 100, time.Now().Add(-48*time.Hour))

	m := New(root, 10*1024*1024, time.Hour)
	m.BeginWrite(writing)
	defer m.EndWrite(writing)

	m.Sweep()

	if _, err := os.Stat(writing); err != nil {
		t.Fatal("an in-flight artifact must survive a sweep even past its TTL")
	}
}

func TestClearMediaRemovesHLSDirAndMP4s(t *testing.T) {
	root := t.TempDir()
	hlsDir := filepath.Join(root, "hls_5", "1080p")
	if err := os.MkdirAll(hlsDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFile(t, filepath.Join(hlsDir, "playlist.m3u8"), 10, time.Now())
	writeFile(t, filepath.Join(root, "5_720p.mp4"), 10, time.Now())
	writeFile(t, filepath.Join(root, "6_720p.mp4"), 10, time.Now())

	m := New(root, 10*1024*1024, 24*time.Hour)
	if err := m.ClearMedia(5); err != nil {
		t.Fatalf("ClearMedia: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "hls_5")); !os.IsNotExist(err) {
		t.Fatal("hls_5 directory should have been removed")
	}
	if _, err := os.Stat(filepath.Join(root, "5_720p.mp4")); !os.IsNotExist(err) {
		t.Fatal("5_720p.mp4 should have been removed")
	}
	if _, err := os.Stat(filepath.Join(root, "6_720p.mp4")); err != nil {
		t.Fatal("6_720p.mp4 belongs to a different media item and should remain")
	}
}
