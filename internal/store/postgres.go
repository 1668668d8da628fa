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
	"errors"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/Amenkhnisi/strom-sense/internal/apperr"
	"github.com/Amenkhnisi/strom-sense/internal/logger"
)

// Pool is the subset of *pgxpool.Pool used by PostgresStore
type Pool interface {
	pgxQuerier
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PoolConfig holds optional connection pool tuning parameters
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// PostgresStore implements Store using pgxpool
type PostgresStore struct {
	*queries
	pool Pool
	dsn  string
	log  *logger.Logger
}

// NewPostgres creates a PostgresStore with a connection pool
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return newPostgresStore(pool, connString), nil
}

func newPostgresStore(pool Pool, dsn string) *PostgresStore {
	return &PostgresStore{queries: &queries{c: pgxConn{q: pool}}, pool: pool, dsn: dsn, log: logger.NewNop()}
}

// Migrate applies all pending schema migrations over a dedicated connection
func (s *PostgresStore) Migrate(_ context.Context) error {
	target := redactDSN(s.dsn)
	s.log.LogStorageOperation("migrate", target)
	if err := s.migrateUp(); err != nil {
		return &apperr.StorageError{Operation: "migrate", Path: target, Err: err}
	}
	return nil
}

func (s *PostgresStore) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations/postgres")
	if err != nil {
		return eris.Wrap(err, "postgres: load migrations")
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, s.dsn)
	if err != nil {
		return eris.Wrap(err, "postgres: create migrate instance")
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return eris.Wrap(err, "postgres: migrate up")
	}
	return nil
}

// InTx runs fn inside a database transaction
func (s *PostgresStore) InTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	if err := fn(txStore{queries: &queries{c: pgxConn{q: tx}}}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
