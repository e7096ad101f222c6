package transcode

import "testing"

func TestScaleFilterPreservesAspectRatioByHeight(t *testing.T) {
	p := profileFor("720p", 720, 2500)
	if got := p.scaleFilter(); got != "scale=-2:720" {
		t.Errorf("scaleFilter = %q, want %q", got, "scale=-2:720")
	}
}

func TestProfileForCapsFPSAndFixesPreset(t *testing.T) {
	p := profileFor("1080p", 1080, 4500)
	if p.FPS != 30 {
		t.Errorf("FPS = %d, want 30", p.FPS)
	}
	if p.Preset != "veryfast" {
		t.Errorf("Preset = %q, want veryfast", p.Preset)
	}
	if p.VideoBitrate != 4500 {
		t.Errorf("VideoBitrate = %d, want 4500", p.VideoBitrate)
	}
}
