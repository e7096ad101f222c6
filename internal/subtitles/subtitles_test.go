package subtitles

import (
	"testing"

	"github.com/JustinTDCT/mediaserver/internal/models"
)

func TestMimeForKnownFormats(t *testing.T) {
	cases := []struct {
		format models.SubtitleFormat
		want   string
	}{
		{models.SubtitleVTT, "text/vtt"},
		{models.SubtitleASS, "text/x-ssa"},
		{models.SubtitleSRT, "application/x-subrip"},
	}
	for _, c := range cases {
		if got := mimeFor(c.format); got != c.want {
			t.Errorf("mimeFor(%v) = %q, want %q", c.format, got, c.want)
		}
	}
}
