package indexer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFilenameMovie(t *testing.T) {
	p := ParseFilename("Movies/The Matrix (1999) 1080p.mp4", "The Matrix (1999) 1080p.mp4")
	require.False(t, p.IsEpisode)
	require.Equal(t, "The Matrix", p.Title)
	require.NotNil(t, p.Year)
	require.Equal(t, 1999, *p.Year)
}

func TestParseFilenameEpisode(t *testing.T) {
	p := ParseFilename("tv-shows/Breaking Bad/Breaking.Bad.S01E02.720p.mkv", "Breaking.Bad.S01E02.720p.mkv")
	require.True(t, p.IsEpisode)
	require.Equal(t, 1, p.Season)
	require.Equal(t, 2, p.Episode)
	require.Equal(t, "Breaking Bad", p.ShowName)
	require.Equal(t, "", p.Title, "show-name leading the stem should not leak into the episode title")
}

func TestParseFilenameEpisodeKeepsDistinctEpisodeTitle(t *testing.T) {
	p := ParseFilename("tv-shows/Breaking Bad/The.Cat's.in.the.Bag.S01E02.720p.mkv", "The.Cat's.in.the.Bag.S01E02.720p.mkv")
	require.True(t, p.IsEpisode)
	require.Equal(t, "Breaking Bad", p.ShowName)
	require.Equal(t, "The Cat's in the Bag", p.Title)
}

func TestParseFilenameEpisodeAltFormat(t *testing.T) {
	p := ParseFilename("tv-shows/Show/Show.1x02.mkv", "Show.1x02.mkv")
	require.True(t, p.IsEpisode)
	require.Equal(t, 1, p.Season)
	require.Equal(t, 2, p.Episode)
}

func TestParseFilenameNotUnderTvShowsIsMovie(t *testing.T) {
	p := ParseFilename("Movies/Show.S01E02.mkv", "Show.S01E02.mkv")
	require.False(t, p.IsEpisode)
}

func TestSubtitleLangLabel(t *testing.T) {
	lang, label := subtitleLangLabel(".en")
	require.Equal(t, "en", lang)
	require.Equal(t, "English", label)

	lang, label = subtitleLangLabel(".xx")
	require.Equal(t, "xx", lang)
	require.Equal(t, "XX", label)

	lang, label = subtitleLangLabel("")
	require.Equal(t, "en", lang)
	require.Equal(t, "English", label)
}
