package core

import (
	"context"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"pictor/internal/config"
)

// SentryReporter sends dropped writes to Sentry as warning events on a
// private hub, leaving the global hub untouched.
type SentryReporter struct {
	hub *sentry.Hub
}

// NewSentryReporter builds a reporter from explicit client options. An empty
// DSN yields a client that drops every event.
func NewSentryReporter(opts sentry.ClientOptions) (*SentryReporter, error) {
	client, err := sentry.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &SentryReporter{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// NewSentryReporterFromConfig maps the sentry config section onto client options.
func NewSentryReporterFromConfig(cfg config.SentryConfig) (*SentryReporter, error) {
	return NewSentryReporter(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
	})
}

// Report captures err with the given tags.
func (r *SentryReporter) Report(_ context.Context, err error, tags map[string]string) {
	if err == nil {
		return
	}
	event := sentry.NewEvent()
	event.Level = sentry.LevelWarning
	event.Message = err.Error()
	event.Exception = []sentry.Exception{{
		Type:       errorTitle(err),
		Value:      err.Error(),
		Stacktrace: sentry.ExtractStacktrace(err),
	}}
	event.Tags = make(map[string]string, len(tags))
	for k, v := range tags {
		event.Tags[k] = v
	}
	r.hub.CaptureEvent(event)
}

// Flush waits for buffered events to be delivered.
func (r *SentryReporter) Flush(timeout time.Duration) bool {
	return r.hub.Flush(timeout)
}

// errorTitle keeps the leading phrase of the message so similar failures group together.
func errorTitle(err error) string {
	message := err.Error()
	if idx := strings.IndexAny(message, ".,:"); idx > 0 {
		message = message[:idx]
	}
	if len(message) > 100 {
		message = message[:97] + "..."
	}
	return message
}
