// Package hls writes and inspects M3U8 playlists, modeled on
// mogiioin-hls-m3u8's struct-based playlist approach (Segment/Playlist
// structs with an Encode-to-buffer method) without importing it, since the
// spec's manifest format is a small, fixed subset of the protocol.
package hls

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const Version = 3

// Segment is one #EXTINF entry in a media playlist.
type Segment struct {
	Filename string
	Duration float64
}

// MediaPlaylist is a fixed-duration VOD playlist for a single rendition.
type MediaPlaylist struct {
	TargetDuration int
	Segments       []Segment
}

func (p *MediaPlaylist) Encode() *bytes.Buffer {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "#EXTM3U\n#EXT-X-VERSION:%d\n#EXT-X-TARGETDURATION:%d\n#EXT-X-PLAYLIST-TYPE:VOD\n", Version, p.TargetDuration)
	for _, seg := range p.Segments {
		fmt.Fprintf(&buf, "#EXTINF:%.3f,\n%s\n", seg.Duration, seg.Filename)
	}
	buf.WriteString("#EXT-X-ENDLIST\n")
	return &buf
}

func (p *MediaPlaylist) String() string { return p.Encode().String() }

// ReadMediaPlaylist parses an existing media playlist far enough to count
// its segments, used by the Streamer to decide whether HLS generation has
// produced at least one playable segment yet.
func ReadMediaPlaylist(path string) (*MediaPlaylist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p := &MediaPlaylist{}
	scanner := bufio.NewScanner(f)
	var pendingDuration float64
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
			p.TargetDuration, _ = strconv.Atoi(strings.TrimPrefix(line, "#EXT-X-TARGETDURATION:"))
		case strings.HasPrefix(line, "#EXTINF:"):
			value := strings.TrimSuffix(strings.TrimPrefix(line, "#EXTINF:"), ",")
			pendingDuration, _ = strconv.ParseFloat(value, 64)
		case line != "" && !strings.HasPrefix(line, "#"):
			p.Segments = append(p.Segments, Segment{Filename: line, Duration: pendingDuration})
		}
	}
	return p, scanner.Err()
}

// Variant is one adaptive-ladder rung referenced from a master playlist.
type Variant struct {
	Label        string
	BandwidthBPS int
	Width        int
	Height       int
	PlaylistPath string // relative to the master, e.g. "720p/playlist.m3u8"
}

// MasterPlaylist lists the available renditions for adaptive selection.
type MasterPlaylist struct {
	Variants []Variant
}

func (m *MasterPlaylist) Encode() *bytes.Buffer {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "#EXTM3U\n#EXT-X-VERSION:%d\n", Version)
	for _, v := range m.Variants {
		fmt.Fprintf(&buf, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%dx%d\n%s\n",
			v.BandwidthBPS, v.Width, v.Height, v.PlaylistPath)
	}
	return &buf
}

func (m *MasterPlaylist) String() string { return m.Encode().String() }

func WriteMasterPlaylist(path string, m *MasterPlaylist) error {
	return os.WriteFile(path, m.Encode().Bytes(), 0o644)
}
