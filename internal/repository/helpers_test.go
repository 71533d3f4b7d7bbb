package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	blobcore "pictor/internal/blob/core"
	"pictor/internal/core"
	"pictor/internal/infra/persistence/memory"
	"pictor/internal/repository"
	"pictor/pkg/domain"
)

var epoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func at(minutes int) time.Time { return epoch.Add(time.Duration(minutes) * time.Minute) }

type env struct {
	ctx   context.Context
	c     *core.Context
	repos *repository.Repositories
	sess  domain.SessionContext
}

func newEnv(t *testing.T, thumbs blobcore.Store) *env {
	t.Helper()
	var opts []core.Option
	if thumbs != nil {
		opts = append(opts, core.WithThumbnailStore(thumbs))
	}
	c := core.NewContext(memory.NewStore(core.NewDefaultRulesEngine()), opts...)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()
	sess, err := c.StartSession(ctx)
	require.NoError(t, err)
	return &env{ctx: ctx, c: c, repos: repository.FromContext(c), sess: sess}
}

func (e *env) create(t *testing.T, models domain.Models, opts ...core.WriteOption) {
	t.Helper()
	report, err := e.c.Create(e.ctx, e.sess, models, opts...)
	require.NoError(t, err)
	require.Empty(t, report.Skipped)
}

func (e *env) delete(t *testing.T, models domain.Models) {
	t.Helper()
	_, err := e.c.Delete(e.ctx, e.sess, models)
	require.NoError(t, err)
}

// switchUser moves the session to a fresh signed-in user and returns the
// previous context.
func (e *env) switchUser(t *testing.T, uuid string) domain.SessionContext {
	t.Helper()
	prev := e.sess
	u := domain.User{ApcID: "apc-" + uuid}
	u.UUID = uuid
	sess, err := e.c.SwitchUser(e.ctx, e.sess, u)
	require.NoError(t, err)
	e.sess = sess
	return prev
}

func uuids[T domain.Entity](items []T) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Sync().UUID)
	}
	return out
}

func project(uuid, title string, lastUpdated time.Time) domain.Project {
	p := domain.Project{Title: title, Type: "classic", LastUpdated: lastUpdated}
	p.UUID = uuid
	return p
}

func plan(uuid, projectUUID string, state domain.FlightPlanState, lastUpdated time.Time) domain.FlightPlan {
	fp := domain.FlightPlan{
		Name:          uuid,
		State:         state,
		FormatVersion: domain.LatestFormatVersion,
		ProjectUUID:   projectUUID,
		LastUpdated:   lastUpdated,
	}
	fp.UUID = uuid
	return fp
}

func execution(uuid, projectUUID string, rank int) domain.FlightPlan {
	fp := plan(uuid, projectUUID, domain.FlightPlanCompleted, at(rank))
	fp.ExecutionRank = rank
	fp.HasReachedFirstWaypoint = true
	return fp
}

func flight(uuid string, runDate time.Time) domain.Flight {
	f := domain.Flight{Title: uuid, RunDate: runDate, Duration: 90, Distance: 250}
	f.UUID = uuid
	return f
}

func link(uuid, flightUUID, planUUID string, executed time.Time) domain.GutmaLink {
	l := domain.GutmaLink{FlightUUID: flightUUID, FlightPlanUUID: planUUID, ExecutionDate: executed}
	l.UUID = uuid
	return l
}

func thumb(uuid string, data []byte) *domain.Thumbnail {
	th := &domain.Thumbnail{Data: data}
	th.UUID = uuid
	return th
}

func drone(uuid, serial string) domain.Drone {
	d := domain.Drone{SerialNumber: serial}
	d.UUID = uuid
	return d
}

func synced[T any, P domain.Record[T]](model T, cloudID int64) T {
	meta := P(&model).Meta()
	meta.CloudID = cloudID
	meta.SynchroStatus = domain.SynchroSynced
	return model
}

func ptr[T any](v T) *T { return &v }
