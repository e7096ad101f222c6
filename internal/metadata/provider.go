// Package metadata is a thin client for the external movie/TV metadata
// provider — one of the core's external collaborators (spec.md §6), not a
// subsystem of its own. It is grounded on the teacher's
// internal/metadata/scraper.go TMDBScraper, trimmed to the single
// HTTPS/JSON provider the spec treats as a black box: the per-provider
// scraper fan-out (MusicBrainz, Open Library, OMDb) the teacher carried for
// its music/book verticals has no counterpart here and is dropped.
package metadata

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JustinTDCT/mediaserver/internal/models"
)

// Match is a single search or details result from the provider.
type Match struct {
	ExternalID string
	Title      string
	Year       *int
	Overview   string
	PosterURL  string
	Backdrop   string
	Rating     float64
	Genres     []string
	Cast       []string
	Confidence float64
}

// EpisodeMatch enriches a single episode with title/overview/air date.
type EpisodeMatch struct {
	Title     string
	Overview  string
	AirDate   string
	StillPath string
}

// Provider is the enrichment collaborator used by the jobs package. Its
// shape tracks spec.md's data model: movies and TV shows are searched by
// title, episodes are fetched by (show external id, season, episode).
type Provider interface {
	Search(query string, kind models.MediaKind) ([]Match, error)
	Details(externalID string, kind models.MediaKind) (*Match, error)
	EpisodeDetails(showExternalID string, season, episode int) (*EpisodeMatch, error)
}

// TMDBProvider talks to api.themoviedb.org. It is the only Provider
// implementation shipped, matching spec.md's "single external provider"
// framing.
type TMDBProvider struct {
	apiKey   string
	language string
	client   *http.Client
}

func NewTMDBProvider(apiKey, language string) *TMDBProvider {
	if language == "" {
		language = "en"
	}
	return &TMDBProvider{
		apiKey:   apiKey,
		language: language,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

var genreNames = map[int]string{
	28: "Action", 12: "Adventure", 16: "Animation", 35: "Comedy", 80: "Crime",
	99: "Documentary", 18: "Drama", 10751: "Family", 14: "Fantasy", 36: "History",
	27: "Horror", 10402: "Music", 9648: "Mystery", 10749: "Romance",
	878: "Science Fiction", 10770: "TV Movie", 53: "Thriller", 10752: "War", 37: "Western",
	10759: "Action & Adventure", 10762: "Kids", 10763: "News", 10764: "Reality",
	10765: "Sci-Fi & Fantasy", 10766: "Soap", 10767: "Talk", 10768: "War & Politics",
}

type tmdbSearchResult struct {
	Results []struct {
		ID           int     `json:"id"`
		Title        string  `json:"title"`
		Name         string  `json:"name"`
		Overview     string  `json:"overview"`
		PosterPath   string  `json:"poster_path"`
		BackdropPath string  `json:"backdrop_path"`
		ReleaseDate  string  `json:"release_date"`
		FirstAirDate string  `json:"first_air_date"`
		VoteAverage  float64 `json:"vote_average"`
		GenreIDs     []int   `json:"genre_ids"`
	} `json:"results"`
}

func (p *TMDBProvider) searchPath(kind models.MediaKind) string {
	if kind == models.MediaTvShow || kind == models.MediaEpisode {
		return "tv"
	}
	return "movie"
}

func (p *TMDBProvider) Search(query string, kind models.MediaKind) ([]Match, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("metadata provider: no API key configured")
	}
	reqURL := fmt.Sprintf("https://api.themoviedb.org/3/search/%s?api_key=%s&language=%s&query=%s",
		p.searchPath(kind), p.apiKey, p.language, url.QueryEscape(query))

	resp, err := p.client.Get(reqURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result tmdbSearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(result.Results))
	for _, r := range result.Results {
		title := r.Title
		if title == "" {
			title = r.Name
		}
		dateStr := r.ReleaseDate
		if dateStr == "" {
			dateStr = r.FirstAirDate
		}
		var year *int
		if len(dateStr) >= 4 {
			var y int
			if _, err := fmt.Sscanf(dateStr[:4], "%d", &y); err == nil {
				year = &y
			}
		}
		var genres []string
		for _, gid := range r.GenreIDs {
			if name, ok := genreNames[gid]; ok {
				genres = append(genres, name)
			}
		}
		matches = append(matches, Match{
			ExternalID: fmt.Sprintf("%d", r.ID),
			Title:      title,
			Year:       year,
			Overview:   r.Overview,
			PosterURL:  posterURL(r.PosterPath),
			Backdrop:   posterURL(r.BackdropPath),
			Rating:     r.VoteAverage,
			Genres:     genres,
			Confidence: titleSimilarity(query, title),
		})
	}
	return matches, nil
}

func (p *TMDBProvider) Details(externalID string, kind models.MediaKind) (*Match, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("metadata provider: no API key configured")
	}
	reqURL := fmt.Sprintf("https://api.themoviedb.org/3/%s/%s?api_key=%s&language=%s",
		p.searchPath(kind), externalID, p.apiKey, p.language)

	resp, err := p.client.Get(reqURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var r struct {
		ID            int     `json:"id"`
		Title         string  `json:"title"`
		Name          string  `json:"name"`
		Overview      string  `json:"overview"`
		PosterPath    string  `json:"poster_path"`
		BackdropPath  string  `json:"backdrop_path"`
		ReleaseDate   string  `json:"release_date"`
		FirstAirDate  string  `json:"first_air_date"`
		VoteAverage   float64 `json:"vote_average"`
		Genres        []struct {
			Name string `json:"name"`
		} `json:"genres"`
		Credits struct {
			Cast []struct {
				Name string `json:"name"`
			} `json:"cast"`
		} `json:"credits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, err
	}

	title := r.Title
	if title == "" {
		title = r.Name
	}
	dateStr := r.ReleaseDate
	if dateStr == "" {
		dateStr = r.FirstAirDate
	}
	var year *int
	if len(dateStr) >= 4 {
		var y int
		if _, err := fmt.Sscanf(dateStr[:4], "%d", &y); err == nil {
			year = &y
		}
	}

	var genres []string
	for _, g := range r.Genres {
		genres = append(genres, g.Name)
	}
	var cast []string
	for i, c := range r.Credits.Cast {
		if i >= 10 {
			break
		}
		cast = append(cast, c.Name)
	}

	return &Match{
		ExternalID: fmt.Sprintf("%d", r.ID),
		Title:      title,
		Year:       year,
		Overview:   r.Overview,
		PosterURL:  posterURL(r.PosterPath),
		Backdrop:   posterURL(r.BackdropPath),
		Rating:     r.VoteAverage,
		Genres:     genres,
		Cast:       cast,
		Confidence: 1.0,
	}, nil
}

func (p *TMDBProvider) EpisodeDetails(showExternalID string, season, episode int) (*EpisodeMatch, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("metadata provider: no API key configured")
	}
	reqURL := fmt.Sprintf("https://api.themoviedb.org/3/tv/%s/season/%d/episode/%d?api_key=%s&language=%s",
		showExternalID, season, episode, p.apiKey, p.language)

	resp, err := p.client.Get(reqURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata provider: episode lookup returned %d", resp.StatusCode)
	}

	var r struct {
		Name      string `json:"name"`
		Overview  string `json:"overview"`
		AirDate   string `json:"air_date"`
		StillPath string `json:"still_path"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, err
	}
	return &EpisodeMatch{Title: r.Name, Overview: r.Overview, AirDate: r.AirDate, StillPath: posterURL(r.StillPath)}, nil
}

func posterURL(path string) string {
	if path == "" {
		return ""
	}
	return "https://image.tmdb.org/t/p/w500" + path
}

// titleSimilarity scores how well a search query matches a candidate title:
// exact match scores 1.0, a prefix match scores 0.9, otherwise falls back to
// word-overlap (Jaccard-like) scoring penalized for extra words.
func titleSimilarity(query, result string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	r := strings.ToLower(strings.TrimSpace(result))

	if q == r {
		return 1.0
	}
	if strings.HasPrefix(r, q+" ") || strings.HasPrefix(q, r+" ") {
		return 0.9
	}

	qWords := strings.Fields(q)
	rWords := strings.Fields(r)
	if len(qWords) == 0 || len(rWords) == 0 {
		return 0.0
	}

	rSet := make(map[string]bool, len(rWords))
	for _, w := range rWords {
		rSet[w] = true
	}
	matched := 0
	for _, w := range qWords {
		if rSet[w] {
			matched++
		}
	}

	total := len(qWords)
	if len(rWords) > total {
		total = len(rWords)
	}
	score := float64(matched) / float64(total)
	if len(rWords) > len(qWords) {
		score *= float64(len(qWords)) / float64(len(rWords))
	}
	return score
}
