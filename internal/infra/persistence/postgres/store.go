// Package postgres provides a Postgres-backed record store that mirrors the
// in-memory semantics and writes each committed change as a row upsert.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"pictor/internal/infra/persistence/memory"
	"pictor/internal/infra/persistence/migrations"
	"pictor/internal/infra/persistence/sqlrecords"
	"pictor/pkg/domain"

	"github.com/cenkalti/backoff"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const defaultDSN = "postgres://localhost/pictor?sslmode=disable"

// PoolConfig tunes the pgx connection pool.
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DefaultPoolConfig sizes the pool for a single local writer.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:        3,
		MinConns:        1,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}
}

// Options configures NewStore.
type Options struct {
	DSN  string
	Pool PoolConfig
	// ConnectRetries bounds the extra ping attempts made while the server
	// starts. Zero pings once.
	ConnectRetries uint64
}

// OpenFunc opens a database handle and returns a function releasing any
// resources behind it.
type OpenFunc func(ctx context.Context, dsn string, pool PoolConfig) (*sql.DB, func(), error)

var (
	openDB OpenFunc = openPool
	openMu sync.Mutex
)

func openPool(ctx context.Context, dsn string, pc PoolConfig) (*sql.DB, func(), error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("parse dsn: %w", err)
	}
	if pc.MaxConns > 0 {
		cfg.MaxConns = pc.MaxConns
	}
	if pc.MinConns > 0 {
		cfg.MinConns = pc.MinConns
	}
	if pc.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = pc.MaxConnLifetime
	}
	if pc.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = pc.MaxConnIdleTime
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create pool: %w", err)
	}
	return stdlib.OpenDBFromPool(pool), pool.Close, nil
}

// Store persists state to Postgres while reusing the in-memory implementation for transactions.
type Store struct {
	*memory.Store
	db      *sql.DB
	release func()
}

// NewStore connects, applies migrations, and hydrates the in-memory store from
// the record tables.
func NewStore(ctx context.Context, opts Options, engine *domain.RulesEngine, memOpts ...memory.Option) (*Store, error) {
	if opts.DSN == "" {
		opts.DSN = defaultDSN
	}
	if opts.Pool == (PoolConfig{}) {
		opts.Pool = DefaultPoolConfig()
	}
	openMu.Lock()
	open := openDB
	openMu.Unlock()
	db, release, err := open(ctx, opts.DSN, opts.Pool)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if release == nil {
		release = func() {}
	}
	fail := func(err error) (*Store, error) {
		_ = db.Close()
		release()
		return nil, err
	}

	if err := backoff.Retry(func() error { return db.PingContext(ctx) }, backoff.WithContext(connectPolicy(opts.ConnectRetries), ctx)); err != nil {
		return fail(fmt.Errorf("ping postgres: %w", err))
	}
	if err := migrations.Up(ctx, db, migrations.Postgres); err != nil {
		return fail(err)
	}
	snapshot, err := sqlrecords.Load(ctx, db)
	if err != nil {
		return fail(err)
	}
	s := &Store{db: db, release: release}
	s.Store = memory.NewStore(engine, append(memOpts, memory.WithCommitHook(s.persist))...)
	s.ImportState(snapshot)
	return s, nil
}

// connectPolicy retries a failed ping at most retries times. WithMaxRetries
// treats zero as unlimited, so zero maps to StopBackOff instead.
func connectPolicy(retries uint64) backoff.BackOff {
	if retries == 0 {
		return &backoff.StopBackOff{}
	}
	return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), retries)
}

func (s *Store) persist(ctx context.Context, changes []domain.Change) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := sqlrecords.Apply(ctx, tx, sqlrecords.Postgres, changes); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Close releases the database handle and its pool.
func (s *Store) Close() error {
	err := s.db.Close()
	s.release()
	return err
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideOpenDB swaps the connection opener for tests and returns a restore function.
func OverrideOpenDB(fn OpenFunc) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := openDB
	openDB = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		openDB = prev
	}
}
