package indexer

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var videoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true,
	".m4v": true, ".wmv": true, ".flv": true, ".webm": true,
	".ts": true, ".m2ts": true, ".mpg": true, ".mpeg": true,
}

var subtitleExtensions = map[string]bool{
	".srt": true, ".vtt": true, ".ass": true,
}

func isVideoFile(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

// IsVideoFile exposes the same allowlist to callers outside the package
// (the filesystem Watcher needs to filter fsnotify events the same way the
// walk-based scan filters directory entries).
func IsVideoFile(path string) bool {
	return isVideoFile(path)
}

// episodePattern recognizes S01E02 / 1x02, per spec.md §4.1 step 3. The
// match's whole span is the "season/episode token" step 5 strips from the
// episode title.
var episodePattern = regexp.MustCompile(`(?i)S(\d{1,2})E(\d{1,3})|(\d{1,2})x(\d{1,3})`)

// isUnderTvShows reports whether path has a "tv-shows" path segment, and if
// so the segment immediately following it (the show name folder).
func isUnderTvShows(path string) (showFolder string, ok bool) {
	parts := strings.Split(filepath.ToSlash(path), "/")
	for i, p := range parts {
		if strings.EqualFold(p, "tv-shows") {
			if i+1 < len(parts) {
				return parts[i+1], true
			}
			return "", true
		}
	}
	return "", false
}

// qualityTokenPattern matches the closed set of quality/source/codec tokens
// spec.md §4.1 step 4 names, case-insensitive.
var qualityTokenPattern = regexp.MustCompile(`(?i)\b(720p|1080p|2160p|4k|bluray|web-dl|webrip|hdtv|x264|x265|hevc)\b`)

var yearPattern = regexp.MustCompile(`\(?((?:19|20)\d{2})\)?`)

// ParsedFilename is the structured result of tokenizing a media filename.
type ParsedFilename struct {
	Title     string
	Year      *int
	Season    int
	Episode   int
	IsEpisode bool
	ShowName  string
}

// ParseFilename applies spec.md §4.1 steps 3–5: classification, title/year
// extraction for movies, and season/episode/show derivation for episodes.
// fullPath is the source-relative path (used to detect the "tv-shows"
// segment and show-name folder); name is the bare filename.
func ParseFilename(fullPath, name string) ParsedFilename {
	stem := strings.TrimSuffix(name, filepath.Ext(name))

	showFolder, underShows := isUnderTvShows(fullPath)
	epMatch := episodePattern.FindStringSubmatchIndex(stem)

	if underShows && epMatch != nil {
		m := episodePattern.FindStringSubmatch(stem)
		var season, episode int
		if m[1] != "" {
			season, _ = strconv.Atoi(m[1])
			episode, _ = strconv.Atoi(m[2])
		} else {
			season, _ = strconv.Atoi(m[3])
			episode, _ = strconv.Atoi(m[4])
		}

		// Step 5 strips the season/episode token; when the stem leads with
		// the show name itself (the common "Show.Name.S01E02" layout) that
		// leftover is dropped too, leaving an empty title rather than a
		// second copy of the show name.
		showName := cleanTitle(strings.ReplaceAll(showFolder, "-", " "))
		prefix := cleanTitle(stripQualityTokens(stem[:epMatch[0]]))
		title := stem[:epMatch[0]] + stem[epMatch[1]:]
		if strings.EqualFold(prefix, showName) {
			title = stem[epMatch[1]:]
		}
		title = stripQualityTokens(title)
		return ParsedFilename{
			Title:     cleanTitle(title),
			Season:    season,
			Episode:   episode,
			IsEpisode: true,
			ShowName:  showName,
		}
	}

	year, title := extractYear(stem)
	title = stripQualityTokens(title)
	return ParsedFilename{Title: cleanTitle(title), Year: year}
}

// stripQualityTokens removes the closed token set spec.md §4.1 step 4 names.
func stripQualityTokens(s string) string {
	return qualityTokenPattern.ReplaceAllString(s, "")
}

// extractYear finds a bracketed or bare 4-digit 1900-2099 year and returns
// the remainder of the string with the year (and any wrapping parens)
// removed.
func extractYear(s string) (*int, string) {
	loc := yearPattern.FindStringSubmatchIndex(s)
	if loc == nil {
		return nil, s
	}
	yearStr := s[loc[2]:loc[3]]
	y, err := strconv.Atoi(yearStr)
	if err != nil {
		return nil, s
	}
	remainder := s[:loc[0]] + s[loc[1]:]
	return &y, remainder
}

func cleanTitle(s string) string {
	s = strings.ReplaceAll(s, ".", " ")
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.Trim(s, " -")
}

// knownSubtitleLangs maps a lowercased BCP-47-ish tag to a human label, per
// spec.md §4.1 step 7. Unknown tags echo the code uppercased.
var knownSubtitleLangs = map[string]string{
	"en": "English", "es": "Spanish", "fr": "French", "de": "German",
	"it": "Italian", "pt": "Portuguese", "ja": "Japanese", "ko": "Korean",
	"zh": "Chinese", "ru": "Russian", "ar": "Arabic", "nl": "Dutch",
}

// subtitleLangLabel derives the BCP-47-ish suffix between a subtitle's stem
// (after the matching video stem) and extracts a human label.
func subtitleLangLabel(suffix string) (lang, label string) {
	suffix = strings.TrimPrefix(suffix, ".")
	suffix = strings.TrimPrefix(suffix, "-")
	suffix = strings.TrimPrefix(suffix, "_")
	if suffix == "" {
		return "en", "English"
	}
	code := suffix
	if len(code) > 3 {
		code = code[:3]
	}
	code = strings.ToLower(code)
	if label, ok := knownSubtitleLangs[code]; ok {
		return code, label
	}
	if label, ok := knownSubtitleLangs[code[:2]]; ok {
		return code[:2], label
	}
	return code, strings.ToUpper(code)
}
