// Package transcode spawns and supervises external ffmpeg processes to
// produce MP4 or HLS output, grounded on the teacher's
// internal/stream/transcoder.go (sessions map[string]*Session + mutex idiom,
// HW-accel-aware flag construction) and generalized to a suture-supervised
// job table per tomtom215-cartographus's internal/supervisor/tree.go, so a
// crashing encoder goroutine is reported through suture's event hook instead
// of silently vanishing.
package transcode

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/thejerf/suture/v4"

	"github.com/JustinTDCT/mediaserver/internal/apperr"
	"github.com/JustinTDCT/mediaserver/internal/probe"
)

// Transcoder owns the encoder job table: at most one running external
// process per job key, per spec.md §4.4's process-supervision contract.
type Transcoder struct {
	ffmpegPath string
	sup        *suture.Supervisor
	hw         hwAccel

	mu      sync.Mutex
	jobs    map[string]*jobState
	cancels map[string]context.CancelFunc

	mediaMu sync.Map // media_id (int64) -> *sync.Mutex, serializes HLS generation per spec.md Open Question (a)
}

type jobState struct {
	done       chan struct{}
	outputPath string
	err        error
}

func New(ffmpegPath string) *Transcoder {
	sup := suture.New("transcoder", suture.Spec{})
	t := &Transcoder{
		ffmpegPath: ffmpegPath,
		sup:        sup,
		jobs:       make(map[string]*jobState),
		cancels:    make(map[string]context.CancelFunc),
	}
	return t
}

// Serve runs the job supervisor until ctx is cancelled; wire it into the
// composition root's supervisor tree.
func (t *Transcoder) Serve(ctx context.Context) error {
	return t.sup.Serve(ctx)
}

type jobFunc func(ctx context.Context) (string, error)

// jobService adapts a jobFunc to suture.Service; it always returns
// suture.ErrDoNotRestart so suture never restarts a one-shot encode (success
// or failure is recorded in the associated jobState instead).
type jobService struct {
	name   string
	run    jobFunc
	ctx    context.Context
	result *jobState
}

func (j *jobService) Serve(ctx context.Context) error {
	out, err := j.run(j.ctx)
	j.result.outputPath = out
	j.result.err = err
	close(j.result.done)
	return suture.ErrDoNotRestart
}

func (j *jobService) String() string { return j.name }

// runJob enforces "at most one running process per key": a concurrent
// caller for a key already in flight blocks on the same jobState instead of
// spawning a second encoder.
func (t *Transcoder) runJob(parent context.Context, key string, fn jobFunc) (string, error) {
	t.mu.Lock()
	if js, ok := t.jobs[key]; ok {
		t.mu.Unlock()
		<-js.done
		return js.outputPath, js.err
	}
	js := &jobState{done: make(chan struct{})}
	ctx, cancel := context.WithCancel(parent)
	t.jobs[key] = js
	t.cancels[key] = cancel
	t.mu.Unlock()

	token := t.sup.Add(&jobService{name: key, run: fn, ctx: ctx, result: js})
	<-js.done
	_ = t.sup.Remove(token)

	t.mu.Lock()
	delete(t.jobs, key)
	delete(t.cancels, key)
	t.mu.Unlock()
	cancel()

	return js.outputPath, js.err
}

// Cancel kills the in-flight job for key, if any. Matches spec.md §4.4's
// `cancel(key)` surface.
func (t *Transcoder) Cancel(key string) bool {
	t.mu.Lock()
	cancel, ok := t.cancels[key]
	t.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

// TranscodeToMP4 runs a single fixed-profile encode to a file, applying
// fast-start (moov atom relocated to the head).
func (t *Transcoder) TranscodeToMP4(ctx context.Context, input, output string, profile Profile) error {
	_, err := t.runJob(ctx, output, func(jobCtx context.Context) (string, error) {
		return output, t.encodeToFile(jobCtx, input, output, profile, mp4Args)
	})
	return err
}

// TranscodeQuality returns a cached artifact path for (mediaID, label),
// encoding it first if absent. Cache-hit callers never touch the job table.
func (t *Transcoder) TranscodeQuality(ctx context.Context, mediaID int64, label, input, cacheRoot string) (string, error) {
	output := filepath.Join(cacheRoot, fmt.Sprintf("%d_%s.mp4", mediaID, label))
	if fileNonEmpty(output) {
		return output, nil
	}
	profile, err := t.profileForLabel(input, label)
	if err != nil {
		return "", err
	}
	return t.runJob(ctx, output, func(jobCtx context.Context) (string, error) {
		if fileNonEmpty(output) {
			return output, nil
		}
		return output, t.encodeToFile(jobCtx, input, output, profile, mp4Args)
	})
}

// StreamTranscode pipes a realtime fragmented-MP4 encode directly to w,
// never touching disk. Cancelling ctx kills the ffmpeg process and whatever
// partial output exists is discarded, matching spec.md §4.4/§4.6.
func (t *Transcoder) StreamTranscode(ctx context.Context, input string, w io.Writer, profile Profile) error {
	args := t.buildArgs(input, profile, "-", fragmentedMP4Args)
	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)
	cmd.Stdout = w

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return apperr.Wrap(apperr.EncodeFailed, "attach encoder stderr", err)
	}
	if err := cmd.Start(); err != nil {
		return apperr.Wrap(apperr.EncodeFailed, "start encoder", err)
	}
	go drainStderr(stderr, "stream")

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperr.Wrap(apperr.EncodeFailed, "realtime transcode failed", err)
	}
	return nil
}

// GenerateHLS produces a constant-duration HLS media playlist under
// cacheRoot/hls_<mediaID>/<label>/. Generation is serialized per media_id
// (not per label) so concurrent master-playlist writers for the same title
// never race, per spec.md's Open Question (a) decision.
func (t *Transcoder) GenerateHLS(ctx context.Context, mediaID int64, label, input, cacheRoot string, segmentSeconds int) (string, error) {
	muIface, _ := t.mediaMu.LoadOrStore(mediaID, &sync.Mutex{})
	mediaMu := muIface.(*sync.Mutex)
	mediaMu.Lock()
	defer mediaMu.Unlock()

	outDir := filepath.Join(cacheRoot, fmt.Sprintf("hls_%d", mediaID), label)
	manifest := filepath.Join(outDir, "playlist.m3u8")
	if fileNonEmpty(manifest) {
		return manifest, nil
	}

	profile, err := t.profileForLabel(input, label)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("hls:%d:%s", mediaID, label)

	return t.runJob(ctx, key, func(jobCtx context.Context) (string, error) {
		if fileNonEmpty(manifest) {
			return manifest, nil
		}
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return "", apperr.Wrap(apperr.Internal, "create hls output dir", err)
		}
		args := hlsArgs(segmentSeconds, profile.FPS)
		if err := t.encodeToFile(jobCtx, input, manifest, profile, args); err != nil {
			return "", err
		}
		return manifest, nil
	})
}

// ProfileForLabel exposes profile lookup to callers outside the package
// (the streaming HTTP layer needs it to report available qualities and to
// size realtime transcode requests without duplicating the ladder lookup).
func (t *Transcoder) ProfileForLabel(label string) (Profile, error) {
	return t.profileForLabel("", label)
}

func (t *Transcoder) profileForLabel(input, label string) (Profile, error) {
	for _, rung := range probe.FullLadder {
		if rung.Label == label {
			return profileFor(rung.Label, rung.Height, rung.VideoBitrate), nil
		}
	}
	return Profile{}, apperr.New(apperr.InvalidInput, "unknown quality label: "+label)
}

func (t *Transcoder) encodeToFile(ctx context.Context, input, output string, profile Profile, argBuilder argsFunc) error {
	tmp := output + ".part"
	args := t.buildArgs(input, profile, tmp, argBuilder)

	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return apperr.Wrap(apperr.EncodeFailed, "attach encoder stderr", err)
	}
	if err := cmd.Start(); err != nil {
		return apperr.Wrap(apperr.EncodeFailed, "start encoder", err)
	}
	go drainStderr(stderr, output)

	if err := cmd.Wait(); err != nil {
		os.Remove(tmp)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperr.Wrap(apperr.EncodeFailed, "encode failed", err)
	}
	return os.Rename(tmp, output)
}

type argsFunc func(outPath string, profile Profile, scaleFilter string, gop int) []string

func (t *Transcoder) buildArgs(input string, profile Profile, outPath string, argBuilder argsFunc) []string {
	encoder := t.hw.Detect(t.ffmpegPath)
	gop := profile.FPS * 10 // overwritten by callers that pass their own segment duration via hlsArgs
	args := []string{"-hide_banner", "-y"}
	args = append(args, preInputArgs(encoder)...)
	args = append(args, "-i", input)
	args = append(args, argBuilder(outPath, profile, profile.scaleFilter(), gop)...)
	args = append(args, "-c:v", encoder, "-b:v", fmt.Sprintf("%dk", profile.VideoBitrate), "-preset", presetFor(encoder, profile.Preset), "-c:a", "aac", "-r", fmt.Sprintf("%d", profile.FPS))
	args = append(args, outPath)
	return args
}

func presetFor(encoder, x264Preset string) string {
	if encoder == "libx264" {
		return x264Preset
	}
	// Hardware encoders use their own preset vocabularies; "fast" is a safe
	// default across nvenc/qsv/vaapi.
	return "fast"
}

func mp4Args(outPath string, profile Profile, scaleFilter string, gop int) []string {
	return []string{"-vf", scaleFilter, "-movflags", "+faststart"}
}

func fragmentedMP4Args(outPath string, profile Profile, scaleFilter string, gop int) []string {
	return []string{"-vf", scaleFilter, "-f", "mp4", "-movflags", "frag_keyframe+empty_moov+faststart"}
}

func hlsArgs(segmentSeconds, fps int) argsFunc {
	gop := segmentSeconds * fps
	return func(outPath string, profile Profile, scaleFilter string, _ int) []string {
		return []string{
			"-vf", scaleFilter,
			"-g", fmt.Sprintf("%d", gop),
			"-sc_threshold", "0",
			"-f", "hls",
			"-hls_time", fmt.Sprintf("%d", segmentSeconds),
			"-hls_list_size", "0",
			"-hls_flags", "independent_segments",
			"-hls_segment_filename", filepath.Join(filepath.Dir(outPath), "segment%03d.ts"),
		}
	}
}

func fileNonEmpty(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Size() > 0
}

func drainStderr(r io.Reader, label string) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			log.Printf("[transcode] %s: %s", label, buf[:n])
		}
		if err != nil {
			return
		}
	}
}
