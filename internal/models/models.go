// Package models defines the persisted entities of the media library.
package models

import "time"

// MediaKind tags the variant a MediaItem row represents.
type MediaKind string

const (
	MediaMovie   MediaKind = "movie"
	MediaTvShow  MediaKind = "tvshow"
	MediaEpisode MediaKind = "episode"
)

// SourceKind identifies which ProtocolClient a MediaItem's file path resolves through.
type SourceKind string

const (
	SourceLocal SourceKind = "local"
	SourceFTP   SourceKind = "ftp"
	SourceSMB   SourceKind = "smb"
	SourceUPnP  SourceKind = "upnp"
)

// MediaItem is the tagged-variant row shared by movies, TV-show containers, and episodes.
//
// Invariant: (SourceKind, SourceID, FilePath) is unique. Rows of kind
// MediaEpisode must have a paired Episode row referencing them.
type MediaItem struct {
	ID              int64      `json:"id"`
	Kind            MediaKind  `json:"kind"`
	Title           string     `json:"title"`
	Year            *int       `json:"year,omitempty"`
	DurationSeconds *float64   `json:"durationSeconds,omitempty"`
	FilePath        string     `json:"filePath"`
	FileSize        int64      `json:"fileSize"`
	SourceKind      SourceKind `json:"sourceKind"`
	SourceID        *int64     `json:"sourceId,omitempty"`
	ExternalID      *string    `json:"externalId,omitempty"`
	PosterURI       *string    `json:"posterUri,omitempty"`
	BackdropURI     *string    `json:"backdropUri,omitempty"`
	Overview        *string    `json:"overview,omitempty"`
	Rating          *float64   `json:"rating,omitempty"`
	Genres          *string    `json:"genres,omitempty"` // comma-joined
	Cast            *string    `json:"cast,omitempty"`   // comma-joined
	QualityLabel    string     `json:"qualityLabel"`
	AddedAt         time.Time  `json:"addedAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// TvShow is the parent container for a run of Episodes. A TvShow may exist
// with zero episodes during partial scans.
type TvShow struct {
	ID           int64   `json:"id"`
	MediaItemID  int64   `json:"mediaItemId"` // unique back-reference, variant MediaTvShow
	ExternalID   *string `json:"externalId,omitempty"`
	Title        string  `json:"title"`
	Overview     *string `json:"overview,omitempty"`
	FirstAirDate *string `json:"firstAirDate,omitempty"`
	SeasonCount  int     `json:"seasonCount"`
	EpisodeCount int     `json:"episodeCount"`
	Status       *string `json:"status,omitempty"`
	PosterURI    *string `json:"posterUri,omitempty"`
	BackdropURI  *string `json:"backdropUri,omitempty"`
	Genres       *string `json:"genres,omitempty"`
}

// Episode attaches season/episode numbering to a MediaItem of variant MediaEpisode.
//
// Invariant: (TvShowID, Season, EpisodeNumber) is unique within the show.
type Episode struct {
	ID            int64   `json:"id"`
	TvShowID      int64   `json:"tvShowId"`
	Season        int     `json:"season"`      // >= 1
	EpisodeNumber int     `json:"episode"`      // >= 1
	MediaItemID   int64   `json:"mediaItemId"`  // unique, variant MediaEpisode
	Title         *string `json:"title,omitempty"`
	Overview      *string `json:"overview,omitempty"`
	AirDate       *string `json:"airDate,omitempty"`
	StillPath     *string `json:"stillPath,omitempty"`
}

// ProtocolKind names which ProtocolClient variant a Source speaks.
type ProtocolKind string

const (
	ProtocolLocal ProtocolKind = "local"
	ProtocolFTP   ProtocolKind = "ftp"
	ProtocolSMB   ProtocolKind = "smb"
	ProtocolUPnP  ProtocolKind = "upnp"
)

// Source is a remote or local origin of media files. It is created by an
// operator and soft-disabled (never hard-deleted) while MediaItems reference it.
type Source struct {
	ID                  int64        `json:"id"`
	Name                string       `json:"name"`
	Protocol            ProtocolKind `json:"protocol"`
	Host                string       `json:"host"`
	Port                *int         `json:"port,omitempty"`
	Username            *string      `json:"username,omitempty"`
	EncryptedCredential []byte       `json:"-"` // never serialized to API responses
	BasePath            *string      `json:"basePath,omitempty"`
	Domain              *string      `json:"domain,omitempty"` // SMB
	Enabled             bool         `json:"enabled"`
	CreatedAt           time.Time    `json:"createdAt"`
}

// SubtitleFormat enumerates the subtitle container formats the Indexer and
// Streamer understand.
type SubtitleFormat string

const (
	SubtitleSRT SubtitleFormat = "srt"
	SubtitleVTT SubtitleFormat = "vtt"
	SubtitleASS SubtitleFormat = "ass"
)

// Subtitle cascade-deletes with its MediaItem.
type Subtitle struct {
	ID          int64          `json:"id"`
	MediaItemID int64          `json:"mediaItemId"`
	Language    string         `json:"language"` // BCP-47-ish tag, e.g. "en"
	Label       string         `json:"label"`    // human label, e.g. "English"
	FilePath    string         `json:"filePath"`
	Format      SubtitleFormat `json:"format"`
	IsDefault   bool           `json:"isDefault"`
}

// User is a local account. PasswordHash is a bcrypt digest and is never
// serialized to API responses.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
}

// WatchRecord is the per-(user, media item) progress row.
//
// Invariants: Progress == CurrentSeconds/TotalSeconds when TotalSeconds > 0;
// Completed iff Progress >= 0.95; at most one row per (UserID, MediaItemID);
// a repeat watch increments WatchCount rather than inserting a new row.
type WatchRecord struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"userId"`
	MediaItemID    int64     `json:"mediaItemId"`
	CurrentSeconds float64   `json:"currentSeconds"`
	TotalSeconds   float64   `json:"totalSeconds"`
	Progress       float64   `json:"progress"` // fraction in [0,1]
	Completed      bool      `json:"completed"`
	WatchCount     int       `json:"watchCount"` // >= 1
	LastWatched    time.Time `json:"lastWatched"`
	CreatedAt      time.Time `json:"createdAt"`
}
