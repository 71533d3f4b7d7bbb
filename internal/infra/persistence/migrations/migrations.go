// Package migrations embeds the goose migrations for the SQL record stores.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

// Migrations holds one directory of goose files per dialect.
//
//go:embed sqlite/*.sql postgres/*.sql
var Migrations embed.FS

// Dialect names a goose dialect with its migration directory.
type Dialect string

// Supported dialects.
const (
	SQLite   Dialect = "sqlite3"
	Postgres Dialect = "pgx"
)

func (d Dialect) dir() (string, error) {
	switch d {
	case SQLite:
		return "sqlite", nil
	case Postgres:
		return "postgres", nil
	default:
		return "", fmt.Errorf("unsupported migration dialect %q", d)
	}
}

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Up applies every pending migration for the dialect.
func Up(ctx context.Context, db *sql.DB, dialect Dialect) error {
	dir, err := dialect.dir()
	if err != nil {
		return err
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()
	goose.SetBaseFS(Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(string(dialect)); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("apply %s migrations: %w", dir, err)
	}
	return nil
}

// OverrideUp swaps the goose runner for tests and returns a restore function.
func OverrideUp(fn func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error) func() {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	prev := gooseUpContext
	gooseUpContext = fn
	return func() {
		gooseMu.Lock()
		defer gooseMu.Unlock()
		gooseUpContext = prev
	}
}
