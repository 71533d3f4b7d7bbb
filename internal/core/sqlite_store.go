package core

import (
	"context"

	"pictor/internal/infra/persistence/memory"
	"pictor/internal/infra/persistence/sqlite"
)

// NewSQLiteStore opens the sqlite file at path (empty for the default) and
// hydrates the record tables.
func NewSQLiteStore(ctx context.Context, path string, engine *RulesEngine, opts ...memory.Option) (*sqlite.Store, error) {
	return sqlite.NewStore(ctx, path, engine, opts...)
}
