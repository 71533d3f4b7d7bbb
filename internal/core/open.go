package core

import (
	"context"
	"fmt"
	"time"

	"pictor/internal/blob"
	"pictor/internal/config"
)

// Open builds a Context from configuration: record store, thumbnail blob
// store, metrics backend and error reporter. Explicit opts win over config.
func Open(ctx context.Context, cfg config.Config, opts ...Option) (*Context, error) {
	store, err := OpenPersistentStore(ctx, cfg.Storage, NewDefaultRulesEngine())
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	thumbs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	var base []Option
	if thumbs != nil {
		base = append(base, WithThumbnailStore(thumbs))
	}
	switch cfg.Metrics.Backend {
	case "prometheus":
		rec, err := NewPrometheusMetricsRecorder(nil)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		base = append(base, WithMetrics(rec))
	case "expvar":
		base = append(base, WithMetrics(NewExpvarMetricsRecorder("")))
	}
	if cfg.Sentry.DSN != "" {
		rep, err := NewSentryReporterFromConfig(cfg.Sentry)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("init sentry: %w", err)
		}
		base = append(base, WithReporter(rep))
	}
	return NewContext(store, append(base, opts...)...), nil
}

// Close shuts the bus and then the record store.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bus.Close()
	if f, ok := c.reporter.(interface{ Flush(time.Duration) bool }); ok {
		f.Flush(2 * time.Second)
	}
	return c.store.Close()
}
