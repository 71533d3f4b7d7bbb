// Package core implements the write path: the Context serializes every batch of
// creates, updates and deletes, applies cascades and derived fields, and
// publishes the committed changes on the bus.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	blobcore "pictor/internal/blob/core"
	"pictor/internal/bus"
	"pictor/internal/logging"
	"pictor/pkg/domain"
)

type (
	Change          = domain.Change
	Result          = domain.Result
	RulesEngine     = domain.RulesEngine
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
)

// errUnknownRecord aborts an item whose target row does not exist.
var errUnknownRecord = errors.New("unknown record")

// Context is the single write gateway over a PersistentStore. Every batch
// holds mu from session resolution to the last published event.
type Context struct {
	mu       sync.Mutex
	store    PersistentStore
	bus      *bus.Bus
	log      logging.Logger
	now      func() time.Time
	metrics  MetricsRecorder
	tracer   Tracer
	reporter Reporter
	thumbs   blobcore.Store
	newID    func() string
}

// Option configures a Context.
type Option func(*Context)

// WithBus publishes events on b instead of a private bus.
func WithBus(b *bus.Bus) Option {
	return func(c *Context) {
		if b != nil {
			c.bus = b
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(c *Context) {
		if l != nil {
			c.log = l
		}
	}
}

// WithClock overrides the time used for local and sync stamps.
func WithClock(now func() time.Time) Option {
	return func(c *Context) {
		if now != nil {
			c.now = now
		}
	}
}

func WithMetrics(m MetricsRecorder) Option {
	return func(c *Context) {
		if m != nil {
			c.metrics = m
		}
	}
}

func WithTracer(t Tracer) Option {
	return func(c *Context) {
		if t != nil {
			c.tracer = t
		}
	}
}

func WithReporter(r Reporter) Option {
	return func(c *Context) {
		if r != nil {
			c.reporter = r
		}
	}
}

// WithThumbnailStore offloads thumbnail bytes to s under thumbnails/<uuid>.
func WithThumbnailStore(s blobcore.Store) Option {
	return func(c *Context) {
		c.thumbs = s
	}
}

// WithIDGenerator overrides the uuid source for records created without one.
func WithIDGenerator(fn func() string) Option {
	return func(c *Context) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// NewContext wraps store. Without options it logs nothing, records no metrics
// and publishes on a private bus.
func NewContext(store PersistentStore, opts ...Option) *Context {
	c := &Context{
		store:    store,
		bus:      bus.New(),
		log:      logging.Nop{},
		now:      func() time.Time { return time.Now().UTC() },
		metrics:  noopMetrics{},
		tracer:   noopTracer{},
		reporter: noopReporter{},
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the underlying record store. Callers must not write to it.
func (c *Context) Store() PersistentStore { return c.store }

// Bus returns the bus the Context publishes on.
func (c *Context) Bus() *bus.Bus { return c.bus }

// Thumbnails returns the configured thumbnail blob store, or nil.
func (c *Context) Thumbnails() blobcore.Store { return c.thumbs }

func (c *Context) Logger() logging.Logger { return c.log }

// WriteMode selects which fields of an incoming model are written.
type WriteMode int

const (
	// ModeDefault writes domain fields and cloudID, and stamps local and sync dates.
	ModeDefault WriteMode = iota
	// ModeEngine writes every field as given, sync fields included, without stamping.
	ModeEngine
	// ModeEngineOnly writes only the sync fields onto the stored row.
	ModeEngineOnly
)

func (m WriteMode) String() string {
	switch m {
	case ModeEngine:
		return "engine"
	case ModeEngineOnly:
		return "engine_only"
	default:
		return "default"
	}
}

type writeOptions struct {
	mode  WriteMode
	local bool
}

// WriteOption adjusts a single Create or Update call.
type WriteOption func(*writeOptions)

// Engine applies synchronizer models verbatim.
func Engine() WriteOption { return func(o *writeOptions) { o.mode = ModeEngine } }

// EngineOnly applies only the sync bookkeeping of the models.
func EngineOnly() WriteOption { return func(o *writeOptions) { o.mode = ModeEngineOnly } }

// Local marks a create as a restore that must not trigger an outward sync.
func Local() WriteOption { return func(o *writeOptions) { o.local = true } }

// BatchReport lists the uuids of the items a batch applied and skipped.
type BatchReport struct {
	Applied []string
	Skipped []string
}

// Create stores every model, overwriting rows that already carry its uuid.
func (c *Context) Create(ctx context.Context, sess domain.SessionContext, models domain.Models, opts ...WriteOption) (BatchReport, error) {
	return c.run(ctx, sess, "create", models, opts, func(b *batch) { b.save(models, true) })
}

// Update rewrites the stored rows matching the models. Unknown uuids are
// logged and skipped. A non-local update flags the rows for the synchronizer.
func (c *Context) Update(ctx context.Context, sess domain.SessionContext, models domain.Models, local bool, opts ...WriteOption) (BatchReport, error) {
	opts = append(opts, func(o *writeOptions) { o.local = local })
	return c.run(ctx, sess, "update", models, opts, func(b *batch) { b.save(models, false) })
}

// Delete removes rows never acknowledged by the cloud and tombstones the
// others, cascading to owned records.
func (c *Context) Delete(ctx context.Context, sess domain.SessionContext, models domain.Models) (BatchReport, error) {
	return c.run(ctx, sess, "delete", models, nil, func(b *batch) { b.remove(models) })
}

// DeleteUserData hard-deletes every record owned by userUUID together with
// the user row. Sessions pointing at the user are kept but detached.
//
// It is an administrative entry point: it takes no session and resolves
// none, so it can purge a user no session is attached to. Writes made on
// behalf of the session user go through Delete(Users).
func (c *Context) DeleteUserData(ctx context.Context, userUUID string) BatchReport {
	ctx, span := c.tracer.Start(ctx, "purge_user")
	start := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	b := c.newBatch(ctx, "purge_user", userUUID, nil)
	b.purgeUser(userUUID)
	b.flush()
	c.finish(ctx, span, "purge_user", start, b)
	return b.report
}

func (c *Context) run(ctx context.Context, sess domain.SessionContext, op string, models domain.Models, opts []WriteOption, body func(*batch)) (BatchReport, error) {
	name := op
	if models != nil {
		name = op + "." + string(models.Kind())
	}
	ctx, span := c.tracer.Start(ctx, name)
	start := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	user, err := c.resolve(ctx, sess)
	if err != nil {
		span.End(err)
		c.metrics.Observe(ctx, name, false, time.Since(start))
		return BatchReport{}, err
	}
	b := c.newBatch(ctx, op, user, opts)
	if models != nil {
		body(b)
	}
	b.flush()
	c.finish(ctx, span, name, start, b)
	return b.report, nil
}

func (c *Context) finish(ctx context.Context, span TraceSpan, name string, start time.Time, b *batch) {
	var err error
	if n := len(b.report.Skipped); n > 0 {
		err = fmt.Errorf("%s: %d of %d items skipped", name, n, n+len(b.report.Applied))
	}
	span.End(err)
	c.metrics.Observe(ctx, name, err == nil, time.Since(start))
}
