package transcode

import (
	"log"
	"os/exec"
	"strings"
	"sync"
)

// hwAccel caches the result of probing for a hardware H.264 encoder,
// grounded on the teacher's internal/ffmpeg/hwaccel.go (adapted from a
// package-level cache into a Transcoder-scoped one per the "no module-level
// globals" design note).
type hwAccel struct {
	mu     sync.Mutex
	probed bool
	cached string
}

// Detect probes ffmpeg -encoders for h264_nvenc/h264_qsv/h264_vaapi and
// verifies each with a single-frame test encode, falling back to libx264.
func (h *hwAccel) Detect(ffmpegPath string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.probed {
		return h.cached
	}
	h.probed = true

	out, _ := exec.Command(ffmpegPath, "-hide_banner", "-encoders").Output()
	list := string(out)

	for _, enc := range []string{"h264_nvenc", "h264_qsv", "h264_vaapi"} {
		if !strings.Contains(list, enc) {
			continue
		}
		if testEncoder(ffmpegPath, enc) {
			log.Printf("[transcode] detected hardware encoder: %s", enc)
			h.cached = enc
			return enc
		}
		log.Printf("[transcode] encoder %s compiled in but hardware test failed", enc)
	}

	log.Printf("[transcode] no hardware encoder available, using libx264")
	h.cached = "libx264"
	return "libx264"
}

func testEncoder(ffmpegPath, encoder string) bool {
	args := []string{"-hide_banner", "-v", "error"}

	switch {
	case strings.Contains(encoder, "qsv"):
		args = append(args, "-init_hw_device", "qsv=hw:/dev/dri/renderD128")
	case strings.Contains(encoder, "vaapi"):
		args = append(args, "-init_hw_device", "vaapi=/dev/dri/renderD128")
	}

	args = append(args, "-f", "lavfi", "-i", "color=black:s=64x64:d=0.1:r=1", "-frames:v", "1", "-an")

	if strings.Contains(encoder, "vaapi") {
		args = append(args, "-vf", "format=nv12,hwupload")
	}

	args = append(args, "-c:v", encoder, "-f", "null", "-")

	return exec.Command(ffmpegPath, args...).Run() == nil
}

// preInputArgs returns the hwaccel device-init flags that must precede -i
// for the given encoder.
func preInputArgs(encoder string) []string {
	switch {
	case strings.Contains(encoder, "qsv"):
		return []string{"-init_hw_device", "qsv=hw:/dev/dri/renderD128", "-filter_hw_device", "hw"}
	case strings.Contains(encoder, "vaapi"):
		return []string{"-init_hw_device", "vaapi=/dev/dri/renderD128", "-filter_hw_device", "vaapi"}
	default:
		return nil
	}
}
