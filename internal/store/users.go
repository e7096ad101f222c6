package store

import (
	"database/sql"
	"errors"

	"github.com/JustinTDCT/mediaserver/internal/apperr"
	"github.com/JustinTDCT/mediaserver/internal/models"
)

func (s *Store) CreateUser(username, passwordHash string, isAdmin bool) (*models.User, error) {
	res, err := s.db.Exec(`INSERT INTO users (username, password_hash, is_admin) VALUES (?,?,?)`,
		username, passwordHash, isAdmin)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.New(apperr.Conflict, "username already registered")
		}
		return nil, apperr.Wrap(apperr.Internal, "create user", err)
	}
	id, _ := res.LastInsertId()
	return s.GetUser(id)
}

func (s *Store) GetUser(id int64) (*models.User, error) {
	row := s.db.QueryRow("SELECT id, username, password_hash, is_admin, created_at FROM users WHERE id = ?", id)
	return scanUser(row)
}

func (s *Store) GetUserByUsername(username string) (*models.User, error) {
	row := s.db.QueryRow("SELECT id, username, password_hash, is_admin, created_at FROM users WHERE username = ?", username)
	return scanUser(row)
}

// ListUsers is used by the admin user-management routes.
func (s *Store) ListUsers() ([]*models.User, error) {
	rows, err := s.db.Query("SELECT id, username, password_hash, is_admin, created_at FROM users ORDER BY username")
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list users", err)
	}
	defer rows.Close()
	var out []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt); err != nil {
			return nil, apperr.Wrap(apperr.Internal, "scan user", err)
		}
		out = append(out, &u)
	}
	return out, rows.Err()
}

// DeleteUser removes an account and cascades to its watch records.
func (s *Store) DeleteUser(id int64) error {
	if _, err := s.db.Exec("DELETE FROM users WHERE id = ?", id); err != nil {
		return apperr.Wrap(apperr.Internal, "delete user", err)
	}
	return nil
}

// CountUsers is used to decide whether the next registrant becomes admin.
func (s *Store) CountUsers() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&n)
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, "count users", err)
	}
	return n, nil
}

// IsAdmin re-fetches the admin flag from the Store — never trusted from a credential.
func (s *Store) IsAdmin(userID int64) (bool, error) {
	var admin bool
	err := s.db.QueryRow("SELECT is_admin FROM users WHERE id = ?", userID).Scan(&admin)
	if errors.Is(err, sql.ErrNoRows) {
		return false, apperr.New(apperr.Unauthorized, "user not found")
	}
	if err != nil {
		return false, apperr.Wrap(apperr.Internal, "check admin flag", err)
	}
	return admin, nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "user not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "get user", err)
	}
	return &u, nil
}
