package core_test

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pictor/internal/bus"
	"pictor/internal/core"
	"pictor/internal/infra/persistence/memory"
	"pictor/internal/logging"
	"pictor/pkg/domain"
)

var epoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

// clock hands out a fixed time that tests move forward explicitly.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: epoch} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

type fixture struct {
	ctx   context.Context
	c     *core.Context
	store *memory.Store
	clock *clock
	sess  domain.SessionContext
	logs  *bytes.Buffer
}

func newFixture(t *testing.T, opts ...core.Option) *fixture {
	t.Helper()
	return newFixtureWithStore(t, memory.NewStore(core.NewDefaultRulesEngine()), opts...)
}

func newFixtureWithStore(t *testing.T, store *memory.Store, opts ...core.Option) *fixture {
	t.Helper()
	clk := newClock()
	logs := &bytes.Buffer{}
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
	base := []core.Option{core.WithClock(clk.Now), core.WithLogger(logger)}
	c := core.NewContext(store, append(base, opts...)...)
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	sess, err := c.StartSession(ctx)
	require.NoError(t, err)
	return &fixture{ctx: ctx, c: c, store: store, clock: clk, sess: sess, logs: logs}
}

func (f *fixture) create(t *testing.T, models domain.Models, opts ...core.WriteOption) core.BatchReport {
	t.Helper()
	report, err := f.c.Create(f.ctx, f.sess, models, opts...)
	require.NoError(t, err)
	return report
}

func (f *fixture) update(t *testing.T, models domain.Models, local bool, opts ...core.WriteOption) core.BatchReport {
	t.Helper()
	report, err := f.c.Update(f.ctx, f.sess, models, local, opts...)
	require.NoError(t, err)
	return report
}

func (f *fixture) delete(t *testing.T, models domain.Models) core.BatchReport {
	t.Helper()
	report, err := f.c.Delete(f.ctx, f.sess, models)
	require.NoError(t, err)
	return report
}

func (f *fixture) view(t *testing.T, fn func(v domain.TransactionView)) {
	t.Helper()
	require.NoError(t, f.store.View(f.ctx, func(v domain.TransactionView) error {
		fn(v)
		return nil
	}))
}

func (f *fixture) plan(t *testing.T, uuid string) (domain.FlightPlan, bool) {
	t.Helper()
	var (
		fp domain.FlightPlan
		ok bool
	)
	f.view(t, func(v domain.TransactionView) { fp, ok = v.FlightPlans().Get(uuid) })
	return fp, ok
}

func (f *fixture) project(t *testing.T, uuid string) (domain.Project, bool) {
	t.Helper()
	var (
		p  domain.Project
		ok bool
	)
	f.view(t, func(v domain.TransactionView) { p, ok = v.Projects().Get(uuid) })
	return p, ok
}

func (f *fixture) thumbnail(t *testing.T, uuid string) (domain.Thumbnail, bool) {
	t.Helper()
	var (
		th domain.Thumbnail
		ok bool
	)
	f.view(t, func(v domain.TransactionView) { th, ok = v.Thumbnails().Get(uuid) })
	return th, ok
}

// drain collects the events already queued on sub. Publishing happens
// before the write call returns, so a short idle gap ends the stream.
func drain(sub *bus.Subscription) []bus.Event {
	var out []bus.Event
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-time.After(100 * time.Millisecond):
			return out
		}
	}
}

type eventKey struct {
	Entity domain.EntityType
	Kind   bus.Kind
}

func keys(events []bus.Event) []eventKey {
	out := make([]eventKey, 0, len(events))
	for _, ev := range events {
		out = append(out, eventKey{ev.Entity, ev.Kind})
	}
	return out
}

func find(events []bus.Event, entity domain.EntityType, kind bus.Kind) (bus.Event, bool) {
	for _, ev := range events {
		if ev.Entity == entity && ev.Kind == kind {
			return ev, true
		}
	}
	return bus.Event{}, false
}

func project(uuid, title string) domain.Project {
	p := domain.Project{Title: title, Type: "classic", LastUpdated: epoch}
	p.UUID = uuid
	return p
}

func plan(uuid, projectUUID string, state domain.FlightPlanState, lastUpdated time.Time) domain.FlightPlan {
	fp := domain.FlightPlan{
		Name:          uuid,
		State:         state,
		FormatVersion: domain.LatestFormatVersion,
		DataSetting:   []byte(`{"waypoints":[]}`),
		ProjectUUID:   projectUUID,
		LastUpdated:   lastUpdated,
	}
	fp.UUID = uuid
	return fp
}

func flight(uuid string) domain.Flight {
	fl := domain.Flight{Title: uuid, FormatVersion: "1.0.3", GutmaFile: []byte(`{"exchange":{}}`), RunDate: epoch, Duration: 60, Distance: 100}
	fl.UUID = uuid
	return fl
}

func link(uuid, flightUUID, planUUID string) domain.GutmaLink {
	l := domain.GutmaLink{FlightUUID: flightUUID, FlightPlanUUID: planUUID, ExecutionDate: epoch}
	l.UUID = uuid
	return l
}

func thumb(uuid string, data []byte) *domain.Thumbnail {
	th := &domain.Thumbnail{Data: data}
	th.UUID = uuid
	return th
}

// synced marks a model as acknowledged by the cloud.
func synced[T any, P domain.Record[T]](model T, cloudID int64) T {
	meta := P(&model).Meta()
	meta.CloudID = cloudID
	meta.SynchroStatus = domain.SynchroSynced
	return model
}
