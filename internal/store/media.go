package store

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/JustinTDCT/mediaserver/internal/apperr"
	"github.com/JustinTDCT/mediaserver/internal/models"
)

// FindByPath looks up a MediaItem by its uniqueness key, used by the
// Indexer to skip files it has already added.
func (s *Store) FindByPath(sourceKind models.SourceKind, sourceID *int64, filePath string) (*models.MediaItem, error) {
	row := s.db.QueryRow(`SELECT id, kind, title, year, duration_seconds, file_path, file_size,
		source_kind, source_id, external_id, poster_uri, backdrop_uri, overview, rating, genres,
		cast_list, quality_label, added_at, updated_at
		FROM media_items WHERE source_kind = ? AND source_id IS ? AND file_path = ?`,
		sourceKind, sourceID, filePath)
	item, err := scanMediaItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "find media item", err)
	}
	return item, nil
}

// CreateMediaItem inserts a new row and reports its assigned id and timestamps.
func (s *Store) CreateMediaItem(m *models.MediaItem) error {
	res, err := s.db.Exec(`INSERT INTO media_items
		(kind, title, year, duration_seconds, file_path, file_size, source_kind, source_id,
		 external_id, poster_uri, backdrop_uri, overview, rating, genres, cast_list, quality_label)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		m.Kind, m.Title, m.Year, m.DurationSeconds, m.FilePath, m.FileSize, m.SourceKind, m.SourceID,
		m.ExternalID, m.PosterURI, m.BackdropURI, m.Overview, m.Rating, m.Genres, m.Cast, m.QualityLabel)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.New(apperr.Conflict, "already indexed")
		}
		return apperr.Wrap(apperr.Internal, "insert media item", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return apperr.Wrap(apperr.Internal, "insert media item", err)
	}
	m.ID = id
	return s.db.QueryRow("SELECT added_at, updated_at FROM media_items WHERE id = ?", id).Scan(&m.AddedAt, &m.UpdatedAt)
}

func (s *Store) GetMediaItem(id int64) (*models.MediaItem, error) {
	row := s.db.QueryRow(`SELECT id, kind, title, year, duration_seconds, file_path, file_size,
		source_kind, source_id, external_id, poster_uri, backdrop_uri, overview, rating, genres,
		cast_list, quality_label, added_at, updated_at FROM media_items WHERE id = ?`, id)
	item, err := scanMediaItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "media item not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "get media item", err)
	}
	return item, nil
}

// UpdateEnrichment applies metadata-enricher results onto a MediaItem.
func (s *Store) UpdateEnrichment(id int64, externalID, overview, posterURI, backdropURI, genres, castList *string, rating *float64) error {
	_, err := s.db.Exec(`UPDATE media_items SET external_id = COALESCE(?, external_id),
		overview = COALESCE(?, overview), poster_uri = COALESCE(?, poster_uri),
		backdrop_uri = COALESCE(?, backdrop_uri), genres = COALESCE(?, genres),
		cast_list = COALESCE(?, cast_list), rating = COALESCE(?, rating),
		updated_at = datetime('now') WHERE id = ?`,
		externalID, overview, posterURI, backdropURI, genres, castList, rating, id)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "update enrichment", err)
	}
	return nil
}

func (s *Store) ListMovies() ([]*models.MediaItem, error) {
	return s.listByKind(models.MediaMovie)
}

func (s *Store) ListTvShowItems() ([]*models.MediaItem, error) {
	return s.listByKind(models.MediaTvShow)
}

func (s *Store) listByKind(kind models.MediaKind) ([]*models.MediaItem, error) {
	rows, err := s.db.Query(`SELECT id, kind, title, year, duration_seconds, file_path, file_size,
		source_kind, source_id, external_id, poster_uri, backdrop_uri, overview, rating, genres,
		cast_list, quality_label, added_at, updated_at FROM media_items WHERE kind = ? ORDER BY title`, kind)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list media items", err)
	}
	defer rows.Close()
	var out []*models.MediaItem
	for rows.Next() {
		item, err := scanMediaItemRows(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "scan media item", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// DeleteMediaItem removes a row and cascades to its Episode/Subtitle/
// WatchRecord children, for the admin media-management routes.
func (s *Store) DeleteMediaItem(id int64) error {
	if _, err := s.db.Exec("DELETE FROM media_items WHERE id = ?", id); err != nil {
		return apperr.Wrap(apperr.Internal, "delete media item", err)
	}
	return nil
}

// LibraryStats is the admin dashboard's summary counter set.
type LibraryStats struct {
	Movies   int `json:"movies"`
	TvShows  int `json:"tvShows"`
	Episodes int `json:"episodes"`
	Users    int `json:"users"`
}

func (s *Store) GetLibraryStats() (*LibraryStats, error) {
	var stats LibraryStats
	if err := s.db.QueryRow("SELECT COUNT(*) FROM media_items WHERE kind = ?", models.MediaMovie).Scan(&stats.Movies); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "count movies", err)
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM media_items WHERE kind = ?", models.MediaTvShow).Scan(&stats.TvShows); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "count tv shows", err)
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM media_items WHERE kind = ?", models.MediaEpisode).Scan(&stats.Episodes); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "count episodes", err)
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&stats.Users); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "count users", err)
	}
	return &stats, nil
}

// Search ranks results by prefix-match then rating then year, per spec.md §6.
func (s *Store) Search(q string, kind models.MediaKind, limit int) ([]*models.MediaItem, error) {
	like := q + "%"
	contains := "%" + q + "%"
	query := `SELECT id, kind, title, year, duration_seconds, file_path, file_size,
		source_kind, source_id, external_id, poster_uri, backdrop_uri, overview, rating, genres,
		cast_list, quality_label, added_at, updated_at FROM media_items
		WHERE title LIKE ?`
	args := []interface{}{contains}
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}
	query += ` ORDER BY (CASE WHEN title LIKE ? THEN 0 ELSE 1 END), rating DESC, year DESC LIMIT ?`
	args = append(args, like, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "search", err)
	}
	defer rows.Close()
	var out []*models.MediaItem
	for rows.Next() {
		item, err := scanMediaItemRows(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "scan search result", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMediaItem(row *sql.Row) (*models.MediaItem, error)      { return scanMediaItemAny(row) }
func scanMediaItemRows(rows *sql.Rows) (*models.MediaItem, error) { return scanMediaItemAny(rows) }

func scanMediaItemAny(sc rowScanner) (*models.MediaItem, error) {
	var m models.MediaItem
	if err := sc.Scan(&m.ID, &m.Kind, &m.Title, &m.Year, &m.DurationSeconds, &m.FilePath, &m.FileSize,
		&m.SourceKind, &m.SourceID, &m.ExternalID, &m.PosterURI, &m.BackdropURI, &m.Overview, &m.Rating,
		&m.Genres, &m.Cast, &m.QualityLabel, &m.AddedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// ──────────────────── TV shows & episodes ────────────────────

// UpsertTvShow returns the TvShow row for title, creating its backing
// MediaItem + TvShow pair if it does not already exist.
func (s *Store) UpsertTvShow(title string, sourceKind models.SourceKind, sourceID *int64, showDirPath string) (*models.TvShow, error) {
	row := s.db.QueryRow(`SELECT t.id, t.media_item_id, t.external_id, t.title, t.overview,
		t.first_air_date, t.season_count, t.episode_count, t.status, t.poster_uri, t.backdrop_uri, t.genres
		FROM tv_shows t JOIN media_items m ON m.id = t.media_item_id
		WHERE m.title = ? AND m.source_kind = ? AND m.source_id IS ?`, title, sourceKind, sourceID)
	show, err := scanTvShow(row)
	if err == nil {
		return show, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Wrap(apperr.Internal, "lookup tv show", err)
	}

	mediaItem := &models.MediaItem{
		Kind:       models.MediaTvShow,
		Title:      title,
		FilePath:   showDirPath,
		SourceKind: sourceKind,
		SourceID:   sourceID,
	}
	if err := s.CreateMediaItem(mediaItem); err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) && ae.Kind == apperr.Conflict {
			existing, ferr := s.FindByPath(sourceKind, sourceID, showDirPath)
			if ferr != nil || existing == nil {
				return nil, apperr.Wrap(apperr.Internal, "resolve tv show media item", ferr)
			}
			mediaItem = existing
		} else {
			return nil, err
		}
	}

	res, err := s.db.Exec(`INSERT INTO tv_shows (media_item_id, title) VALUES (?, ?)`, mediaItem.ID, title)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "insert tv show", err)
	}
	id, _ := res.LastInsertId()
	return &models.TvShow{ID: id, MediaItemID: mediaItem.ID, Title: title}, nil
}

func scanTvShow(row *sql.Row) (*models.TvShow, error) {
	var t models.TvShow
	err := row.Scan(&t.ID, &t.MediaItemID, &t.ExternalID, &t.Title, &t.Overview, &t.FirstAirDate,
		&t.SeasonCount, &t.EpisodeCount, &t.Status, &t.PosterURI, &t.BackdropURI, &t.Genres)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) GetTvShow(id int64) (*models.TvShow, error) {
	row := s.db.QueryRow(`SELECT id, media_item_id, external_id, title, overview, first_air_date,
		season_count, episode_count, status, poster_uri, backdrop_uri, genres FROM tv_shows WHERE id = ?`, id)
	show, err := scanTvShow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "tv show not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "get tv show", err)
	}
	return show, nil
}

func (s *Store) ListEpisodesByShow(showID int64) ([]*models.Episode, error) {
	rows, err := s.db.Query(`SELECT id, tv_show_id, season, episode_number, media_item_id, title,
		overview, air_date, still_path FROM episodes WHERE tv_show_id = ? ORDER BY season, episode_number`, showID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list episodes", err)
	}
	defer rows.Close()
	var out []*models.Episode
	for rows.Next() {
		var e models.Episode
		if err := rows.Scan(&e.ID, &e.TvShowID, &e.Season, &e.EpisodeNumber, &e.MediaItemID, &e.Title,
			&e.Overview, &e.AirDate, &e.StillPath); err != nil {
			return nil, apperr.Wrap(apperr.Internal, "scan episode", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// CreateEpisode inserts an Episode row paired with an already-inserted
// MediaItem of variant MediaEpisode, and rolls up the parent show's counts.
func (s *Store) CreateEpisode(e *models.Episode) error {
	res, err := s.db.Exec(`INSERT INTO episodes (tv_show_id, season, episode_number, media_item_id,
		title, overview, air_date, still_path) VALUES (?,?,?,?,?,?,?,?)`,
		e.TvShowID, e.Season, e.EpisodeNumber, e.MediaItemID, e.Title, e.Overview, e.AirDate, e.StillPath)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.New(apperr.Conflict, "already indexed")
		}
		return apperr.Wrap(apperr.Internal, "insert episode", err)
	}
	id, _ := res.LastInsertId()
	e.ID = id

	_, err = s.db.Exec(`UPDATE tv_shows SET episode_count = (SELECT COUNT(*) FROM episodes WHERE tv_show_id = ?),
		season_count = (SELECT COUNT(DISTINCT season) FROM episodes WHERE tv_show_id = ?) WHERE id = ?`,
		e.TvShowID, e.TvShowID, e.TvShowID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "roll up show counts", err)
	}
	return nil
}

func (s *Store) GetEpisode(id int64) (*models.Episode, error) {
	row := s.db.QueryRow(`SELECT id, tv_show_id, season, episode_number, media_item_id, title,
		overview, air_date, still_path FROM episodes WHERE id = ?`, id)
	var e models.Episode
	if err := row.Scan(&e.ID, &e.TvShowID, &e.Season, &e.EpisodeNumber, &e.MediaItemID, &e.Title,
		&e.Overview, &e.AirDate, &e.StillPath); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "episode not found")
		}
		return nil, apperr.Wrap(apperr.Internal, "get episode", err)
	}
	return &e, nil
}

// NeighborEpisode returns the next or previous episode across season
// boundaries: next-in-season, else first-of-next-season (symmetric for previous).
func (s *Store) NeighborEpisode(episodeID int64, forward bool) (*models.Episode, error) {
	cur, err := s.GetEpisode(episodeID)
	if err != nil {
		return nil, err
	}
	eps, err := s.ListEpisodesByShow(cur.TvShowID)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, e := range eps {
		if e.ID == cur.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, apperr.New(apperr.NotFound, "episode not found")
	}
	if forward {
		if idx+1 < len(eps) {
			return eps[idx+1], nil
		}
	} else if idx-1 >= 0 {
		return eps[idx-1], nil
	}
	return nil, apperr.New(apperr.NotFound, "no neighboring episode")
}

// ──────────────────── Subtitles ────────────────────

func (s *Store) CreateSubtitle(sub *models.Subtitle) error {
	res, err := s.db.Exec(`INSERT INTO subtitles (media_item_id, language, label, file_path, format, is_default)
		VALUES (?,?,?,?,?,?)`, sub.MediaItemID, sub.Language, sub.Label, sub.FilePath, sub.Format, sub.IsDefault)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "insert subtitle", err)
	}
	id, _ := res.LastInsertId()
	sub.ID = id
	return nil
}

func (s *Store) ListSubtitlesByMedia(mediaItemID int64) ([]*models.Subtitle, error) {
	rows, err := s.db.Query(`SELECT id, media_item_id, language, label, file_path, format, is_default
		FROM subtitles WHERE media_item_id = ?`, mediaItemID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list subtitles", err)
	}
	defer rows.Close()
	var out []*models.Subtitle
	for rows.Next() {
		var sub models.Subtitle
		if err := rows.Scan(&sub.ID, &sub.MediaItemID, &sub.Language, &sub.Label, &sub.FilePath, &sub.Format, &sub.IsDefault); err != nil {
			return nil, apperr.Wrap(apperr.Internal, "scan subtitle", err)
		}
		out = append(out, &sub)
	}
	return out, rows.Err()
}

func (s *Store) GetSubtitle(id int64) (*models.Subtitle, error) {
	row := s.db.QueryRow(`SELECT id, media_item_id, language, label, file_path, format, is_default
		FROM subtitles WHERE id = ?`, id)
	var sub models.Subtitle
	if err := row.Scan(&sub.ID, &sub.MediaItemID, &sub.Language, &sub.Label, &sub.FilePath, &sub.Format, &sub.IsDefault); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "subtitle not found")
		}
		return nil, apperr.Wrap(apperr.Internal, "get subtitle", err)
	}
	return &sub, nil
}

// AnySubtitleIsDefault reports whether media_item_id already has a default subtitle.
func (s *Store) AnySubtitleIsDefault(mediaItemID int64) (bool, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM subtitles WHERE media_item_id = ? AND is_default = 1", mediaItemID).Scan(&n)
	if err != nil {
		return false, apperr.Wrap(apperr.Internal, "check default subtitle", err)
	}
	return n > 0, nil
}
