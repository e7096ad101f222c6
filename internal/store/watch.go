package store

import (
	"database/sql"
	"errors"

	"github.com/JustinTDCT/mediaserver/internal/apperr"
	"github.com/JustinTDCT/mediaserver/internal/models"
)

// UpsertWatch is grounded on the teacher's watchhistory.Repository.Upsert:
// one row per (user, media item), a repeat watch bumps watch_count instead
// of inserting, per spec.md §3 and §4.7.
func (s *Store) UpsertWatch(userID, mediaItemID int64, current, total float64) (*models.WatchRecord, error) {
	progress := 0.0
	if total > 0 {
		progress = current / total
		if progress > 1 {
			progress = 1
		}
	}
	completed := progress >= 0.95

	_, err := s.db.Exec(`INSERT INTO watch_records
		(user_id, media_item_id, current_seconds, total_seconds, progress, completed, watch_count)
		VALUES (?,?,?,?,?,?,1)
		ON CONFLICT (user_id, media_item_id) DO UPDATE SET
			current_seconds = excluded.current_seconds,
			total_seconds   = excluded.total_seconds,
			progress        = excluded.progress,
			completed       = excluded.completed,
			watch_count     = watch_records.watch_count + 1,
			last_watched    = datetime('now')`,
		userID, mediaItemID, current, total, progress, completed)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "upsert watch record", err)
	}
	return s.GetWatch(userID, mediaItemID)
}

// MarkWatched sets current = total = duration, per spec.md §4.7.
func (s *Store) MarkWatched(userID, mediaItemID int64, duration float64) (*models.WatchRecord, error) {
	return s.UpsertWatch(userID, mediaItemID, duration, duration)
}

func (s *Store) GetWatch(userID, mediaItemID int64) (*models.WatchRecord, error) {
	row := s.db.QueryRow(`SELECT id, user_id, media_item_id, current_seconds, total_seconds,
		progress, completed, watch_count, last_watched, created_at FROM watch_records
		WHERE user_id = ? AND media_item_id = ?`, userID, mediaItemID)
	return scanWatch(row)
}

func (s *Store) DeleteWatch(userID, mediaItemID int64) error {
	_, err := s.db.Exec("DELETE FROM watch_records WHERE user_id = ? AND media_item_id = ?", userID, mediaItemID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "delete watch record", err)
	}
	return nil
}

// ContinueWatching returns in-progress, non-completed rows ordered by recency.
func (s *Store) ContinueWatching(userID int64, limit int) ([]*models.WatchRecord, error) {
	rows, err := s.db.Query(`SELECT id, user_id, media_item_id, current_seconds, total_seconds,
		progress, completed, watch_count, last_watched, created_at FROM watch_records
		WHERE user_id = ? AND completed = 0 AND progress > 0
		ORDER BY last_watched DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "continue watching", err)
	}
	defer rows.Close()
	return scanWatchRows(rows)
}

func (s *Store) RecentlyWatched(userID int64, limit int) ([]*models.WatchRecord, error) {
	rows, err := s.db.Query(`SELECT id, user_id, media_item_id, current_seconds, total_seconds,
		progress, completed, watch_count, last_watched, created_at FROM watch_records
		WHERE user_id = ? ORDER BY last_watched DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "recently watched", err)
	}
	defer rows.Close()
	return scanWatchRows(rows)
}

func (s *Store) WatchHistory(userID int64, limit, offset int) ([]*models.WatchRecord, error) {
	rows, err := s.db.Query(`SELECT id, user_id, media_item_id, current_seconds, total_seconds,
		progress, completed, watch_count, last_watched, created_at FROM watch_records
		WHERE user_id = ? ORDER BY last_watched DESC LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "watch history", err)
	}
	defer rows.Close()
	return scanWatchRows(rows)
}

// WatchStats aggregates counts and total watched seconds for a user.
type WatchStats struct {
	TotalWatched    int     `json:"totalWatched"`
	CompletedCount  int     `json:"completedCount"`
	TotalSeconds    float64 `json:"totalSeconds"`
}

func (s *Store) WatchStatsFor(userID int64) (*WatchStats, error) {
	var stats WatchStats
	err := s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(CASE WHEN completed THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(current_seconds), 0) FROM watch_records WHERE user_id = ?`, userID).
		Scan(&stats.TotalWatched, &stats.CompletedCount, &stats.TotalSeconds)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "watch stats", err)
	}
	return &stats, nil
}

func scanWatch(row *sql.Row) (*models.WatchRecord, error) {
	var w models.WatchRecord
	err := row.Scan(&w.ID, &w.UserID, &w.MediaItemID, &w.CurrentSeconds, &w.TotalSeconds,
		&w.Progress, &w.Completed, &w.WatchCount, &w.LastWatched, &w.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "no watch record")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "get watch record", err)
	}
	return &w, nil
}

func scanWatchRows(rows *sql.Rows) ([]*models.WatchRecord, error) {
	var out []*models.WatchRecord
	for rows.Next() {
		var w models.WatchRecord
		if err := rows.Scan(&w.ID, &w.UserID, &w.MediaItemID, &w.CurrentSeconds, &w.TotalSeconds,
			&w.Progress, &w.Completed, &w.WatchCount, &w.LastWatched, &w.CreatedAt); err != nil {
			return nil, apperr.Wrap(apperr.Internal, "scan watch record", err)
		}
		out = append(out, &w)
	}
	return out, rows.Err()
}
