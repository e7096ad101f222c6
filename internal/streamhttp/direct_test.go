package streamhttp

import "testing"

func TestParseByteRange(t *testing.T) {
	start, end, ok := parseByteRange("bytes=0-99", 1000)
	if !ok || start != 0 || end != 99 {
		t.Fatalf("got start=%d end=%d ok=%v", start, end, ok)
	}

	start, end, ok = parseByteRange("bytes=500-", 1000)
	if !ok || start != 500 || end != 999 {
		t.Fatalf("open-ended range: got start=%d end=%d ok=%v", start, end, ok)
	}

	start, end, ok = parseByteRange("bytes=900-2000", 1000)
	if !ok || end != 999 {
		t.Fatalf("expected end clamped to size-1, got %d", end)
	}

	_, _, ok = parseByteRange("bytes=2000-3000", 1000)
	if ok {
		t.Fatal("expected unsatisfiable range to report ok=false")
	}
}

func TestContentTypeFor(t *testing.T) {
	cases := map[string]string{
		"movie.mp4":  "video/mp4",
		"show.mkv":   "video/x-matroska",
		"clip.webm":  "video/webm",
		"legacy.avi": "video/x-msvideo",
		"weird.xyz":  "application/octet-stream",
	}
	for path, want := range cases {
		if got := contentTypeFor(path); got != want {
			t.Errorf("contentTypeFor(%q) = %q, want %q", path, got, want)
		}
	}
}
