package store

import (
	"database/sql"
	"errors"

	"github.com/JustinTDCT/mediaserver/internal/apperr"
	"github.com/JustinTDCT/mediaserver/internal/models"
)

func (s *Store) CreateSource(src *models.Source) error {
	res, err := s.db.Exec(`INSERT INTO sources (name, protocol, host, port, username,
		encrypted_credential, base_path, domain, enabled) VALUES (?,?,?,?,?,?,?,?,?)`,
		src.Name, src.Protocol, src.Host, src.Port, src.Username, src.EncryptedCredential,
		src.BasePath, src.Domain, src.Enabled)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "create source", err)
	}
	id, _ := res.LastInsertId()
	src.ID = id
	return s.db.QueryRow("SELECT created_at FROM sources WHERE id = ?", id).Scan(&src.CreatedAt)
}

func (s *Store) UpdateSource(src *models.Source) error {
	_, err := s.db.Exec(`UPDATE sources SET name=?, protocol=?, host=?, port=?, username=?,
		encrypted_credential=?, base_path=?, domain=?, enabled=? WHERE id=?`,
		src.Name, src.Protocol, src.Host, src.Port, src.Username, src.EncryptedCredential,
		src.BasePath, src.Domain, src.Enabled, src.ID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "update source", err)
	}
	return nil
}

// DeleteSource soft-disables rather than removing the row, per spec.md §3's
// "soft-disabled never deleted while MediaItems reference it" lifecycle.
func (s *Store) DeleteSource(id int64) error {
	_, err := s.db.Exec("UPDATE sources SET enabled = 0 WHERE id = ?", id)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "disable source", err)
	}
	return nil
}

func (s *Store) GetSource(id int64) (*models.Source, error) {
	row := s.db.QueryRow(`SELECT id, name, protocol, host, port, username, encrypted_credential,
		base_path, domain, enabled, created_at FROM sources WHERE id = ?`, id)
	return scanSource(row)
}

func (s *Store) ListSources() ([]*models.Source, error) {
	rows, err := s.db.Query(`SELECT id, name, protocol, host, port, username, encrypted_credential,
		base_path, domain, enabled, created_at FROM sources ORDER BY name`)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list sources", err)
	}
	defer rows.Close()
	var out []*models.Source
	for rows.Next() {
		src, err := scanSourceRows(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "scan source", err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// DueForScan returns enabled sources whose next_scan_at has elapsed, for the
// scheduled-scan background loop.
func (s *Store) DueForScan() ([]*models.Source, error) {
	rows, err := s.db.Query(`SELECT id, name, protocol, host, port, username, encrypted_credential,
		base_path, domain, enabled, created_at FROM sources
		WHERE enabled = 1 AND (next_scan_at IS NULL OR next_scan_at <= datetime('now'))`)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list due sources", err)
	}
	defer rows.Close()
	var out []*models.Source
	for rows.Next() {
		src, err := scanSourceRows(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "scan source", err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// AdvanceNextScan pushes a source's next_scan_at forward immediately so a
// scheduler tick does not re-trigger it while the scan runs.
func (s *Store) AdvanceNextScan(sourceID int64, interval string) error {
	_, err := s.db.Exec("UPDATE sources SET next_scan_at = datetime('now', ?) WHERE id = ?", interval, sourceID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "advance next scan", err)
	}
	return nil
}

func scanSource(row *sql.Row) (*models.Source, error) {
	var src models.Source
	err := row.Scan(&src.ID, &src.Name, &src.Protocol, &src.Host, &src.Port, &src.Username,
		&src.EncryptedCredential, &src.BasePath, &src.Domain, &src.Enabled, &src.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "source not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "get source", err)
	}
	return &src, nil
}

func scanSourceRows(rows *sql.Rows) (*models.Source, error) {
	var src models.Source
	err := rows.Scan(&src.ID, &src.Name, &src.Protocol, &src.Host, &src.Port, &src.Username,
		&src.EncryptedCredential, &src.BasePath, &src.Domain, &src.Enabled, &src.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &src, nil
}
