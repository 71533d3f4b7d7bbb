package migrations

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsCoverEveryTable(t *testing.T) {
	tables := []string{"drones", "flights", "flight_plans", "projects", "project_pix4ds", "gutma_links", "thumbnails", "users", "sessions"}
	for _, dir := range []string{"sqlite", "postgres"} {
		body, err := fs.ReadFile(Migrations, dir+"/00001_records.sql")
		require.NoError(t, err)
		text := string(body)
		require.True(t, strings.HasPrefix(text, "-- +goose Up"), dir)
		require.Contains(t, text, "-- +goose Down")
		for _, table := range tables {
			require.Contains(t, text, "CREATE TABLE IF NOT EXISTS "+table+" (", "%s/%s", dir, table)
		}
	}
}

func TestUpRoutesDialectToDirectory(t *testing.T) {
	var dirs []string
	restore := OverrideUp(func(_ context.Context, _ *sql.DB, dir string, _ ...goose.OptionsFunc) error {
		dirs = append(dirs, dir)
		return nil
	})
	defer restore()

	require.NoError(t, Up(context.Background(), nil, SQLite))
	require.NoError(t, Up(context.Background(), nil, Postgres))
	require.Equal(t, []string{"sqlite", "postgres"}, dirs)
}

func TestUpWrapsRunnerError(t *testing.T) {
	boom := errors.New("boom")
	restore := OverrideUp(func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error { return boom })
	defer restore()

	err := Up(context.Background(), nil, Postgres)
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "apply postgres migrations")
}

func TestUpRejectsUnknownDialect(t *testing.T) {
	require.Error(t, Up(context.Background(), nil, Dialect("oracle")))
}
