package probe

import "testing"

func mkResult(filename, videoCodec string, height int) *Result {
	return &Result{
		Format: FormatInfo{Filename: filename},
		Streams: []StreamInfo{
			{CodecType: "video", CodecName: videoCodec, Height: height},
		},
	}
}

func TestQualityLabelThresholds(t *testing.T) {
	cases := []struct {
		height int
		want   string
	}{
		{2160, "4K"}, {1440, "2K"}, {1080, "1080p"}, {720, "720p"}, {480, "480p"}, {360, "360p"}, {240, "SD"},
	}
	for _, c := range cases {
		if got := QualityLabel(c.height); got != c.want {
			t.Errorf("QualityLabel(%d) = %q, want %q", c.height, got, c.want)
		}
	}
}

func TestLadderExcludesRungsAboveSourceHeight(t *testing.T) {
	r := mkResult("movie.mkv", "h264", 1080)
	ladder := r.Ladder()
	for _, rung := range ladder {
		if rung.Height > 1080 {
			t.Errorf("ladder included %s (%dp) above the 1080p source", rung.Label, rung.Height)
		}
	}
	if len(ladder) == 0 {
		t.Fatal("a 1080p source should include at least the 1080p rung")
	}
}

func TestNeedsTranscodingForNonWebContainer(t *testing.T) {
	r := mkResult("movie.mkv", "h264", 1080)
	if !r.NeedsTranscoding() {
		t.Fatal("an .mkv container should always need transcoding")
	}
}

func TestNeedsTranscodingForAboveMaxHeight(t *testing.T) {
	r := mkResult("movie.mp4", "h264", 2160)
	if !r.NeedsTranscoding() {
		t.Fatal("a 4K source should need transcoding even in a web-native container")
	}
}

func TestNeedsTranscodingForNonWebCodec(t *testing.T) {
	r := mkResult("movie.mp4", "hevc", 1080)
	if !r.NeedsTranscoding() {
		t.Fatal("an hevc codec should need transcoding even in a web-native container")
	}
}

func TestNoTranscodingNeededForWebNativeEverything(t *testing.T) {
	r := mkResult("movie.mp4", "h264", 1080)
	if r.NeedsTranscoding() {
		t.Fatal("a 1080p h264 mp4 should stream directly without transcoding")
	}
}
