package core

import (
	"context"

	"pictor/internal/config"
	"pictor/internal/infra/persistence/memory"
	"pictor/internal/infra/persistence/postgres"
)

// NewPostgresStore connects to the server named by cfg.
func NewPostgresStore(ctx context.Context, cfg config.StorageConfig, engine *RulesEngine, opts ...memory.Option) (*postgres.Store, error) {
	pool := postgres.DefaultPoolConfig()
	if cfg.PostgresMaxConns > 0 {
		pool.MaxConns = cfg.PostgresMaxConns
		if pool.MinConns > pool.MaxConns {
			pool.MinConns = pool.MaxConns
		}
	}
	return postgres.NewStore(ctx, postgres.Options{
		DSN:            cfg.PostgresDSN,
		Pool:           pool,
		ConnectRetries: cfg.ConnectRetries,
	}, engine, opts...)
}
