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

// Package store persists users, bills and every value derived from them.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/Amenkhnisi/strom-sense/internal/apperr"
	"github.com/Amenkhnisi/strom-sense/internal/config"
	"github.com/Amenkhnisi/strom-sense/internal/logger"
	"github.com/Amenkhnisi/strom-sense/internal/model"
)

//go:embed migrations
var migrationsFS embed.FS

// BillFilter narrows ListBills. Zero values match everything.
type BillFilter struct {
	UserID int64
	Year   int
}

// AnomalyFilter narrows ListAnomalies. Zero values match everything.
type AnomalyFilter struct {
	UserID     int64
	Year       int
	OnlyActive bool
}

// Store defines the persistence interface for bills and their derived data.
// Lookups by natural key return nil without error when nothing is stored;
// lookups by id return an apperr not-found error.
type Store interface {
	// Users
	CreateUser(ctx context.Context, u *model.UserProfile) error
	GetUser(ctx context.Context, userID int64) (*model.UserProfile, error)
	ListUsers(ctx context.Context) ([]model.UserProfile, error)
	HouseholdSizes(ctx context.Context) ([]int, error)

	// Bills
	CreateBill(ctx context.Context, b *model.Bill) error
	UpdateBill(ctx context.Context, b *model.Bill) error
	GetBill(ctx context.Context, billID int64) (*model.Bill, error)
	FindBill(ctx context.Context, userID int64, year int) (*model.Bill, error)
	ListBills(ctx context.Context, filter BillFilter) ([]model.Bill, error)
	CohortBills(ctx context.Context, householdSize int, propertyType string, year int) ([]model.Bill, error)
	BillYears(ctx context.Context) ([]int, error)
	DeleteBill(ctx context.Context, billID int64) error

	// Metrics
	UpsertMetrics(ctx context.Context, m *model.BillMetrics) error
	GetMetrics(ctx context.Context, billID int64) (*model.BillMetrics, error)

	// Peer statistics
	UpsertPeerStats(ctx context.Context, p *model.PeerStatistics) error
	GetPeerStats(ctx context.Context, key model.PeerKey) (*model.PeerStatistics, error)
	ListPeerStats(ctx context.Context, year int) ([]model.PeerStatistics, error)

	// Weather cache
	GetWeather(ctx context.Context, postalCode string, year int) (*model.WeatherCacheEntry, error)
	UpsertWeather(ctx context.Context, e *model.WeatherCacheEntry) error
	ListWeather(ctx context.Context) ([]model.WeatherCacheEntry, error)
	DeleteWeather(ctx context.Context, postalCode string, year int) (int64, error)

	// Anomalies
	UpsertAnomaly(ctx context.Context, a *model.AnomalyDetection) error
	GetAnomaly(ctx context.Context, anomalyID int64) (*model.AnomalyDetection, error)
	GetAnomalyForBill(ctx context.Context, billID int64) (*model.AnomalyDetection, error)
	ListAnomalies(ctx context.Context, filter AnomalyFilter) ([]model.AnomalyDetection, error)
	DismissAnomaly(ctx context.Context, anomalyID int64, feedback *string, at time.Time) error

	// InTx runs fn against a store bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates the store selected by the configuration
func Open(ctx context.Context, cfg config.StoreConfig, log *logger.Logger) (Store, error) {
	if log == nil {
		log = logger.NewNop()
	}
	log = log.WithComponent("store")

	switch cfg.Driver {
	case "sqlite":
		log.LogStorageOperation("open", cfg.SQLitePath)
		s, err := NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, &apperr.StorageError{Operation: "open", Path: cfg.SQLitePath, Err: err}
		}
		s.log = log
		return s, nil
	case "postgres":
		target := redactDSN(cfg.PostgresDSN)
		log.LogStorageOperation("open", target)
		s, err := NewPostgres(ctx, cfg.PostgresDSN, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
		if err != nil {
			return nil, &apperr.StorageError{Operation: "open", Path: target, Err: err}
		}
		s.log = log
		return s, nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// redactDSN hides the password of a URL-style connection string. Key/value
// strings are reduced to the driver name.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return "postgres"
	}
	return u.Redacted()
}

type scanner interface {
	Scan(dest ...any) error
}

type rowSet interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// conn hides the difference between database/sql and pgx handles. Queries
// are written with ? placeholders.
type conn interface {
	exec(ctx context.Context, query string, args ...any) (int64, error)
	queryRow(ctx context.Context, query string, args ...any) scanner
	query(ctx context.Context, query string, args ...any) (rowSet, error)
}

type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlConn struct {
	q sqlQuerier
}

func (c sqlConn) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := c.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c sqlConn) queryRow(ctx context.Context, query string, args ...any) scanner {
	return c.q.QueryRowContext(ctx, query, args...)
}

func (c sqlConn) query(ctx context.Context, query string, args ...any) (rowSet, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows}, nil
}

type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() { _ = r.Rows.Close() }

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgxConn struct {
	q pgxQuerier
}

func (c pgxConn) exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := c.q.Exec(ctx, rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (c pgxConn) queryRow(ctx context.Context, query string, args ...any) scanner {
	return c.q.QueryRow(ctx, rebind(query), args...)
}

func (c pgxConn) query(ctx context.Context, query string, args ...any) (rowSet, error) {
	return c.q.Query(ctx, rebind(query), args...)
}

// rebind rewrites ? placeholders into Postgres $n form
func rebind(query string) string {
	if !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}

// txStore is the Store handed to InTx callbacks
type txStore struct {
	*queries
}

func (t txStore) InTx(_ context.Context, fn func(Store) error) error {
	return fn(t)
}

func (t txStore) Migrate(context.Context) error {
	return eris.New("store: migrate inside a transaction")
}

func (t txStore) Close() error {
	return nil
}
