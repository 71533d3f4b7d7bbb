package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelsKindsCoverEveryEntity(t *testing.T) {
	batches := []Models{
		Drones{}, Flights{}, FlightPlans{}, Projects{}, ProjectPix4ds{},
		GutmaLinks{}, Thumbnails{}, Users{}, Sessions{},
	}
	seen := make(map[EntityType]bool, len(batches))
	for _, b := range batches {
		seen[b.Kind()] = true
	}
	for _, kind := range AllEntities {
		assert.Truef(t, seen[kind], "no batch type for %s", kind)
	}
}

func TestModelsUUIDsPreserveOrder(t *testing.T) {
	plans := FlightPlans{
		{SyncState: SyncState{UUID: "b"}},
		{SyncState: SyncState{UUID: "a"}},
	}
	require.Equal(t, 2, plans.Len())
	assert.Equal(t, []string{"b", "a"}, plans.UUIDs())
	assert.Empty(t, Users(nil).UUIDs())
}

func TestRecordMetaMutatesInPlace(t *testing.T) {
	project := Project{SyncState: SyncState{UUID: "p1"}}
	touch(&project, 42)
	assert.Equal(t, int64(42), project.CloudID)
	assert.Equal(t, EntityProject, project.Kind())
}

func touch[T any, P Record[T]](record P, cloudID int64) {
	record.Meta().CloudID = cloudID
}

func TestSyncStateHelpers(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var s SyncState
	assert.False(t, s.IsSynchronized())
	assert.True(t, s.NeedsSync(now), "never synced records need sync")

	s.CloudID = 7
	s.SynchroStatus = SynchroSynced
	assert.True(t, s.IsSynchronized())
	assert.False(t, s.NeedsSync(now))

	later := now.Add(time.Minute)
	s.SynchroLatestUpdatedDate = &later
	assert.True(t, s.NeedsSync(now))

	s.UserUUID = "u1"
	assert.True(t, s.VisibleTo("u1"))
	s.MarkDeleted(later)
	assert.False(t, s.VisibleTo("u1"))
	require.NotNil(t, s.LocalModificationDate)
	assert.Equal(t, later, *s.LocalModificationDate)
}

func TestSyncStateAssignEngineCopiesSyncFieldsOnly(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	dst := SyncState{UUID: "x", UserUUID: "u", LocalCreationDate: created}
	src := SyncState{UUID: "other", CloudID: 9, SynchroStatus: SynchroFailed, SynchroError: "E42"}
	dst.AssignEngine(src)
	assert.Equal(t, "x", dst.UUID)
	assert.Equal(t, "u", dst.UserUUID)
	assert.Equal(t, created, dst.LocalCreationDate)
	assert.Equal(t, int64(9), dst.CloudID)
	assert.True(t, dst.SynchroStatus.IsError())
	assert.Equal(t, "error", dst.SynchroStatus.String())
}

func TestFlightPlanExecutionPredicates(t *testing.T) {
	editable := FlightPlan{State: FlightPlanEditable, HasReachedFirstWaypoint: true}
	run := FlightPlan{State: FlightPlanCompleted, HasReachedFirstWaypoint: true}
	aborted := FlightPlan{State: FlightPlanStopped}
	assert.True(t, editable.IsEditable())
	assert.False(t, editable.IsExecution())
	assert.True(t, run.IsExecution())
	assert.False(t, aborted.IsExecution())
	assert.True(t, User{}.IsAnonymous())
	assert.False(t, SessionContext{UserUUID: "u"}.Valid())
}
