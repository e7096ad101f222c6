package hls

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matryer/is"
)

func TestMediaPlaylistEncode(t *testing.T) {
	is := is.New(t)
	p := &MediaPlaylist{
		TargetDuration: 10,
		Segments: []Segment{
			{Filename: "segment000.ts", Duration: 10.0},
			{Filename: "segment001.ts", Duration: 6.5},
		},
	}
	out := p.String()
	is.True(strings.HasPrefix(out, "#EXTM3U\n"))
	is.True(strings.Contains(out, "#EXT-X-VERSION:3"))
	is.True(strings.Contains(out, "#EXT-X-TARGETDURATION:10"))
	is.True(strings.Contains(out, "#EXTINF:10.000,\nsegment000.ts"))
	is.True(strings.Contains(out, "#EXT-X-ENDLIST"))
}

func TestReadMediaPlaylist(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "playlist.m3u8")

	// ffmpeg's own -f hls muxer writes this file in production; the test
	// stands in for that writer.
	raw := "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:10\n#EXT-X-PLAYLIST-TYPE:VOD\n" +
		"#EXTINF:10.000,\nsegment000.ts\n#EXTINF:4.200,\nsegment001.ts\n#EXT-X-ENDLIST\n"
	is.NoErr(os.WriteFile(path, []byte(raw), 0o644))

	got, err := ReadMediaPlaylist(path)
	is.NoErr(err)
	is.Equal(got.TargetDuration, 10)
	is.Equal(len(got.Segments), 2)
	is.Equal(got.Segments[0].Filename, "segment000.ts")
	is.Equal(got.Segments[1].Duration, 4.2)
}

func TestMasterPlaylistEncode(t *testing.T) {
	is := is.New(t)
	m := &MasterPlaylist{
		Variants: []Variant{
			{Label: "1080p", BandwidthBPS: 5_000_000, Width: 1920, Height: 1080, PlaylistPath: "1080p/playlist.m3u8"},
			{Label: "720p", BandwidthBPS: 2_500_000, Width: 1280, Height: 720, PlaylistPath: "720p/playlist.m3u8"},
		},
	}
	out := m.String()
	is.True(strings.Contains(out, "#EXT-X-STREAM-INF:BANDWIDTH=5000000,RESOLUTION=1920x1080\n1080p/playlist.m3u8"))
	is.True(strings.Contains(out, "#EXT-X-STREAM-INF:BANDWIDTH=2500000,RESOLUTION=1280x720\n720p/playlist.m3u8"))
}

func TestWriteMasterPlaylist(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "master.m3u8")

	m := &MasterPlaylist{Variants: []Variant{
		{Label: "720p", BandwidthBPS: 2_500_000, Width: 1280, Height: 720, PlaylistPath: "manifest.m3u8?quality=720p"},
	}}
	is.NoErr(WriteMasterPlaylist(path, m))

	data, err := os.ReadFile(path)
	is.NoErr(err)
	is.True(strings.Contains(string(data), "manifest.m3u8?quality=720p"))
}
