// Copyright 2025 Matthew Gall <me@matthewgall.dev>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"database/sql"
	"errors"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/Amenkhnisi/strom-sense/internal/apperr"
	"github.com/Amenkhnisi/strom-sense/internal/logger"
)

// SQLiteStore implements Store using modernc.org/sqlite
type SQLiteStore struct {
	*queries
	db   *sql.DB
	path string
	log  *logger.Logger
}

// NewSQLite opens a SQLite database at the given path with WAL journaling
// and foreign keys enabled on every connection.
func NewSQLite(path string) (*SQLiteStore, error) {
	params := url.Values{}
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "synchronous(NORMAL)")
	params.Set("_time_format", "sqlite")

	db, err := sql.Open("sqlite", "file:"+path+"?"+params.Encode())
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// A single writer connection serialises transactions from batch workers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, eris.Wrapf(err, "sqlite: ping %s", path)
	}
	return &SQLiteStore{queries: &queries{c: sqlConn{q: db}}, db: db, path: path, log: logger.NewNop()}, nil
}

// Migrate applies all pending schema migrations
func (s *SQLiteStore) Migrate(_ context.Context) error {
	s.log.LogStorageOperation("migrate", s.path)
	if err := s.migrateUp(); err != nil {
		return &apperr.StorageError{Operation: "migrate", Path: s.path, Err: err}
	}
	return nil
}

func (s *SQLiteStore) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations/sqlite")
	if err != nil {
		return eris.Wrap(err, "sqlite: load migrations")
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return eris.Wrap(err, "sqlite: create migrate driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return eris.Wrap(err, "sqlite: create migrate instance")
	}
	// m is not closed here because that would close the shared *sql.DB.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return eris.Wrap(err, "sqlite: migrate up")
	}
	return nil
}

// InTx runs fn inside a database transaction
func (s *SQLiteStore) InTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	if err := fn(txStore{queries: &queries{c: sqlConn{q: tx}}}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
