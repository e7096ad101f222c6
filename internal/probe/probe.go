// Package probe inspects video files with ffprobe, grounded directly on the
// teacher's internal/ffmpeg/ffprobe.go (same JSON shape, same accessor
// style), extended with spec.md §4.3's exact quality-label thresholds,
// ladder derivation, and needs-transcoding predicate.
package probe

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

type Prober struct{ Path string }

func New(ffprobePath string) *Prober { return &Prober{Path: ffprobePath} }

type Result struct {
	Format   FormatInfo    `json:"format"`
	Streams  []StreamInfo  `json:"streams"`
	Chapters []ChapterInfo `json:"chapters"`
}

type FormatInfo struct {
	Filename string `json:"filename"`
	Duration string `json:"duration"`
	Size     string `json:"size"`
	Bitrate  string `json:"bit_rate"`
}

type StreamInfo struct {
	Index         int               `json:"index"`
	CodecType     string            `json:"codec_type"`
	CodecName     string            `json:"codec_name"`
	CodecLongName string            `json:"codec_long_name"`
	Width         int               `json:"width"`
	Height        int               `json:"height"`
	Channels      int               `json:"channels"`
	ChannelLayout string            `json:"channel_layout"`
	SampleRate    string            `json:"sample_rate"`
	BitRate       string            `json:"bit_rate"`
	Profile       string            `json:"profile"`
	RFrameRate    string            `json:"r_frame_rate"`
	Tags          map[string]string `json:"tags"`
}

type ChapterInfo struct {
	ID        int               `json:"id"`
	StartTime string            `json:"start_time"`
	EndTime   string            `json:"end_time"`
	Tags      map[string]string `json:"tags"`
}

// Probe spawns ffprobe and parses its JSON report.
func (p *Prober) Probe(filePath string) (*Result, error) {
	cmd := exec.Command(p.Path, "-v", "quiet", "-print_format", "json",
		"-show_format", "-show_streams", "-show_chapters", filePath)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}
	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	return &result, nil
}

func (r *Result) videoStream() *StreamInfo {
	for i := range r.Streams {
		if r.Streams[i].CodecType == "video" {
			return &r.Streams[i]
		}
	}
	return nil
}

func (r *Result) audioStream() *StreamInfo {
	for i := range r.Streams {
		if r.Streams[i].CodecType == "audio" {
			return &r.Streams[i]
		}
	}
	return nil
}

func (r *Result) DurationSeconds() float64 {
	d, _ := strconv.ParseFloat(r.Format.Duration, 64)
	return d
}

func (r *Result) FileSize() int64 {
	n, _ := strconv.ParseInt(r.Format.Size, 10, 64)
	return n
}

func (r *Result) Bitrate() int64 {
	n, _ := strconv.ParseInt(r.Format.Bitrate, 10, 64)
	return n
}

func (r *Result) Width() int {
	if s := r.videoStream(); s != nil {
		return s.Width
	}
	return 0
}

func (r *Result) Height() int {
	if s := r.videoStream(); s != nil {
		return s.Height
	}
	return 0
}

func (r *Result) VideoCodec() string {
	if s := r.videoStream(); s != nil {
		return s.CodecName
	}
	return ""
}

func (r *Result) VideoProfile() string {
	if s := r.videoStream(); s != nil {
		return s.Profile
	}
	return ""
}

func (r *Result) FPS() float64 {
	s := r.videoStream()
	if s == nil || s.RFrameRate == "" {
		return 0
	}
	parts := strings.SplitN(s.RFrameRate, "/", 2)
	if len(parts) != 2 {
		return 0
	}
	num, _ := strconv.ParseFloat(parts[0], 64)
	den, _ := strconv.ParseFloat(parts[1], 64)
	if den == 0 {
		return 0
	}
	return num / den
}

func (r *Result) AudioCodec() string {
	if s := r.audioStream(); s != nil {
		return s.CodecName
	}
	return ""
}

func (r *Result) AudioChannels() int {
	if s := r.audioStream(); s != nil {
		return s.Channels
	}
	return 0
}

func (r *Result) AudioSampleRate() int {
	if s := r.audioStream(); s != nil {
		sr, _ := strconv.Atoi(s.SampleRate)
		return sr
	}
	return 0
}

func (r *Result) AudioBitrate() int64 {
	if s := r.audioStream(); s != nil {
		br, _ := strconv.ParseInt(s.BitRate, 10, 64)
		return br
	}
	return 0
}

func (r *Result) Container() string {
	return strings.ToLower(filepath.Ext(r.Format.Filename))
}

// QualityLabel derives spec.md §4.3's exact resolution ladder label.
func QualityLabel(height int) string {
	switch {
	case height >= 2160:
		return "4K"
	case height >= 1440:
		return "2K"
	case height >= 1080:
		return "1080p"
	case height >= 720:
		return "720p"
	case height >= 480:
		return "480p"
	case height >= 360:
		return "360p"
	default:
		return "SD"
	}
}

func (r *Result) QualityLabel() string { return QualityLabel(r.Height()) }

// RungHeight/Bitrate describe one entry of the output ladder.
type Rung struct {
	Label        string
	Height       int
	VideoBitrate int // kbps
}

// FullLadder is the ordered superset of output qualities, tallest first.
var FullLadder = []Rung{
	{"4K", 2160, 8000},
	{"1080p", 1080, 5000},
	{"720p", 720, 2500},
	{"480p", 480, 1000},
	{"360p", 360, 600},
}

// Ladder returns the subset of FullLadder whose height <= the source height.
func (r *Result) Ladder() []Rung {
	srcHeight := r.Height()
	var out []Rung
	for _, rung := range FullLadder {
		if rung.Height <= srcHeight {
			out = append(out, rung)
		}
	}
	return out
}

var webNativeContainers = map[string]bool{
	".mp4": true, ".m4v": true, ".webm": true,
}

var webNativeCodecs = map[string]bool{
	"h264": true, "vp8": true, "vp9": true,
}

// NeedsTranscoding implements spec.md §4.3's predicate: container not
// web-native, or height > 1080, or codec not in {h264, vp8, vp9}.
func (r *Result) NeedsTranscoding() bool {
	if !webNativeContainers[r.Container()] {
		return true
	}
	if r.Height() > 1080 {
		return true
	}
	return !webNativeCodecs[r.VideoCodec()]
}
