package core

import (
	"context"
	"time"
)

// MetricsRecorder receives the outcome of every write batch and of every
// skipped batch item.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts a span around a write batch.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended with the batch error, or with a summary error when items
// were skipped.
type TraceSpan interface {
	End(err error)
}

// Reporter forwards dropped writes to an error tracker.
type Reporter interface {
	Report(ctx context.Context, err error, tags map[string]string)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

type noopReporter struct{}

func (noopReporter) Report(context.Context, error, map[string]string) {}
