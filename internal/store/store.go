// Package store holds the relational repositories backing every other
// component, grounded on the teacher's internal/repository package
// translated from lib/pq's $N placeholders to SQLite's ?.
package store

import "database/sql"

// Store is the single logical writer, many-readers relational handle.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *sql.DB { return s.db }
