package streamhttp

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/JustinTDCT/mediaserver/internal/httputil"
	"github.com/JustinTDCT/mediaserver/internal/models"
)

// contentTypeFor mirrors the teacher's direct.go extension switch, widened
// with the remaining container extensions the Indexer's video allowlist
// recognizes.
func contentTypeFor(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".mp4"), strings.HasSuffix(lower, ".m4v"):
		return "video/mp4"
	case strings.HasSuffix(lower, ".mkv"):
		return "video/x-matroska"
	case strings.HasSuffix(lower, ".webm"):
		return "video/webm"
	case strings.HasSuffix(lower, ".avi"):
		return "video/x-msvideo"
	case strings.HasSuffix(lower, ".mov"):
		return "video/quicktime"
	case strings.HasSuffix(lower, ".ts"), strings.HasSuffix(lower, ".m2ts"):
		return "video/mp2t"
	default:
		return "application/octet-stream"
	}
}

// Direct implements GET /stream/{id}/direct: a web-native file is served
// with range support; anything else is switched to a realtime fragmented-MP4
// transcode at the best-fit rung for the source's own resolution, per
// spec.md §4.6.
func (s *Streamer) Direct(w http.ResponseWriter, r *http.Request) {
	item, ok := s.mediaItem(w, r)
	if !ok {
		return
	}

	inputPath, err := s.localInputPath(item)
	if err != nil {
		// Non-local sources can't be probed or transcoded in-process; fall
		// back to serving the protocol client's own byte range, trusting
		// the file is already web-native (no ffprobe available to check).
		s.serveRemoteRange(w, r, item)
		return
	}

	result, err := s.prober.Probe(inputPath)
	if err != nil {
		httputil.WriteError(w, http.StatusUnprocessableEntity, "EncodeFailed", "could not inspect media file")
		return
	}

	if !result.NeedsTranscoding() {
		serveLocalRange(w, r, inputPath)
		return
	}

	profile, err := bestFitProfile(s.transcoder, result)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Transfer-Encoding", "chunked")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	if err := s.transcoder.StreamTranscode(r.Context(), inputPath, flushWriter{w, flusher}, profile); err != nil {
		// The client already received a 200 and a chunked body; the
		// connection simply ends short here (matches the teacher's
		// transcode-stream error handling, which also can't rewrite headers
		// mid-response).
		return
	}
}

// flushWriter flushes after every chunked write so the client sees bytes as
// soon as ffmpeg produces them instead of buffering behind net/http's
// default response buffering.
type flushWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func (fw flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if fw.f != nil {
		fw.f.Flush()
	}
	return n, err
}

func serveLocalRange(w http.ResponseWriter, r *http.Request, path string) {
	file, err := os.Open(path)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "NotFound", "media file not found on disk")
		return
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "Internal", "stat media file")
		return
	}

	contentType := contentTypeFor(path)
	size := stat.Size()

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.Header().Set("Accept-Ranges", "bytes")
		w.WriteHeader(http.StatusOK)
		io.Copy(w, file)
		return
	}
	serveRangeFromReadSeeker(w, file, size, rangeHeader, contentType)
}

// serveRemoteRange serves a non-local MediaItem's bytes through its pooled
// ProtocolClient. UPnP sources don't implement OpenRange (per spec.md §4.2)
// and surface that as an apperr the caller already knows how to render.
func (s *Streamer) serveRemoteRange(w http.ResponseWriter, r *http.Request, item *models.MediaItem) {
	if item.SourceID == nil {
		httputil.WriteError(w, http.StatusUnprocessableEntity, "Internal", "media item has no source")
		return
	}
	client, err := s.pool.Acquire(r.Context(), *item.SourceID, item.FilePath)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	entry, err := client.Stat(r.Context(), item.FilePath)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	contentType := contentTypeFor(item.FilePath)
	size := entry.Size

	rangeHeader := r.Header.Get("Range")
	start, end := int64(0), size-1
	status := http.StatusOK
	if rangeHeader != "" {
		var ok bool
		start, end, ok = parseByteRange(rangeHeader, size)
		if !ok {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		status = http.StatusPartialContent
	}

	rc, err := client.OpenRange(r.Context(), item.FilePath, start, end)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
	if status == http.StatusPartialContent {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	}
	w.WriteHeader(status)
	io.Copy(w, rc)
}

func serveRangeFromReadSeeker(w http.ResponseWriter, rs io.ReadSeeker, size int64, rangeHeader, contentType string) {
	start, end, ok := parseByteRange(rangeHeader, size)
	if !ok {
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}
	if _, err := rs.Seek(start, io.SeekStart); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "Internal", "seek media file")
		return
	}

	length := end - start + 1
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("Accept-Ranges", "bytes")
	w.WriteHeader(http.StatusPartialContent)
	io.CopyN(w, rs, length)
}

// parseByteRange parses a single "bytes=a-b" Range header value, clamping
// the end to size-1. ok is false when the range is malformed or unsatisfiable.
func parseByteRange(header string, size int64) (start, end int64, ok bool) {
	header = strings.TrimPrefix(header, "bytes=")
	parts := strings.SplitN(header, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	if parts[0] != "" {
		s, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return 0, 0, false
		}
		start = s
	}
	if parts[1] != "" {
		e, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return 0, 0, false
		}
		end = e
	} else {
		end = size - 1
	}
	if start >= size || start > end {
		return 0, 0, false
	}
	if end >= size {
		end = size - 1
	}
	return start, end, true
}
