package core_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pictor/internal/bus"
	"pictor/internal/core"
	"pictor/pkg/domain"
)

func TestProjectDerivedFieldsFollowPlans(t *testing.T) {
	f := newFixture(t)
	f.create(t, domain.Projects{project("p1", "Roof")})
	created, _ := f.project(t, "p1")
	assert.False(t, created.HasEditableFlightPlan)

	f.clock.Advance(time.Hour)
	edit := plan("fp-edit", "p1", domain.FlightPlanEditable, epoch.Add(2*time.Hour))
	run := plan("fp-run", "p1", domain.FlightPlanCompleted, epoch.Add(3*time.Hour))
	run.HasReachedFirstWaypoint = true
	stopped := plan("fp-stopped", "p1", domain.FlightPlanStopped, epoch.Add(4*time.Hour))
	f.create(t, domain.FlightPlans{edit, run, stopped})

	p, _ := f.project(t, "p1")
	assert.True(t, p.HasEditableFlightPlan)
	require.NotNil(t, p.LatestUpdatedEditableFlightPlanDate)
	assert.Equal(t, epoch.Add(2*time.Hour), *p.LatestUpdatedEditableFlightPlanDate)
	require.NotNil(t, p.LatestExecutedFlightPlanDate)
	assert.Equal(t, epoch.Add(3*time.Hour), *p.LatestExecutedFlightPlanDate, "plans that never reached a waypoint do not count")
	assert.Equal(t, created.SynchroLatestUpdatedDate, p.SynchroLatestUpdatedDate, "derived rewrites never stamp")
	assert.Equal(t, created.LocalModificationDate, p.LocalModificationDate)
}

func TestProjectDerivedFieldsAreIgnoredOnInput(t *testing.T) {
	f := newFixture(t)
	p := project("p1", "Roof")
	p.HasEditableFlightPlan = true
	stamp := epoch.Add(time.Hour)
	p.LatestExecutedFlightPlanDate = &stamp
	f.create(t, domain.Projects{p})

	stored, _ := f.project(t, "p1")
	assert.False(t, stored.HasEditableFlightPlan)
	assert.Nil(t, stored.LatestExecutedFlightPlanDate)
}

func TestMovingPlanRefreshesBothProjects(t *testing.T) {
	f := newFixture(t)
	f.create(t, domain.Projects{project("a", "A"), project("b", "B")})
	fp := plan("fp1", "a", domain.FlightPlanEditable, epoch)
	f.create(t, domain.FlightPlans{fp})

	sub := f.c.Bus().Subscribe(domain.EntityProject)
	defer sub.Close()
	fp.ProjectUUID = "b"
	f.update(t, domain.FlightPlans{fp}, false)

	a, _ := f.project(t, "a")
	b, _ := f.project(t, "b")
	assert.False(t, a.HasEditableFlightPlan)
	assert.Nil(t, a.LatestUpdatedEditableFlightPlanDate)
	assert.True(t, b.HasEditableFlightPlan)

	ev, ok := find(drain(sub), domain.EntityProject, bus.Updated)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"a", "b"}, ev.UUIDs)
}

func TestUnchangedDerivedFieldsLeaveProjectUntouched(t *testing.T) {
	f := newFixture(t)
	f.create(t, domain.Projects{project("p1", "Roof")})
	fp := plan("fp1", "p1", domain.FlightPlanEditable, epoch)
	f.create(t, domain.FlightPlans{fp})

	sub := f.c.Bus().Subscribe(domain.EntityProject)
	defer sub.Close()
	fp.Name = "renamed"
	f.update(t, domain.FlightPlans{fp}, false)
	assert.Empty(t, drain(sub))
}

func TestDerivedFieldsRefreshInEngineModes(t *testing.T) {
	f := newFixture(t)
	f.create(t, domain.Projects{synced(project("p1", "Roof"), 1)}, core.Engine())
	f.create(t, domain.FlightPlans{synced(plan("fp1", "p1", domain.FlightPlanEditable, epoch), 2)}, core.Engine())

	p, _ := f.project(t, "p1")
	assert.True(t, p.HasEditableFlightPlan)

	gone := synced(plan("fp1", "p1", domain.FlightPlanEditable, epoch), 2)
	gone.SynchroIsDeleted = true
	f.update(t, domain.FlightPlans{gone}, false, core.EngineOnly())

	p, _ = f.project(t, "p1")
	assert.False(t, p.HasEditableFlightPlan, "tombstoned plans do not count")
}

func TestPlanWithoutProjectIsAccepted(t *testing.T) {
	f := newFixture(t)
	report := f.create(t, domain.FlightPlans{plan("fp1", "", domain.FlightPlanEditable, epoch)})
	assert.Equal(t, []string{"fp1"}, report.Applied)
}

func TestPlanForMissingProjectLogsViolation(t *testing.T) {
	f := newFixture(t)
	report := f.create(t, domain.FlightPlans{plan("fp1", "nowhere", domain.FlightPlanEditable, epoch)})
	assert.Equal(t, []string{"fp1"}, report.Applied, "reference violations only warn")
	assert.Contains(t, f.logs.String(), "references missing project nowhere")
}

func TestServerUpdateKeepsDerivedFieldsOfPlannedProject(t *testing.T) {
	f := newFixture(t)
	f.create(t, domain.Projects{project("p1", "Roof")})
	f.create(t, domain.FlightPlans{plan("fp1", "p1", domain.FlightPlanEditable, epoch)})
	before, _ := f.project(t, "p1")
	require.True(t, before.HasEditableFlightPlan)

	incoming := project("p1", "Roof")
	incoming.CloudID = 42
	f.update(t, domain.Projects{incoming}, false)

	p, _ := f.project(t, "p1")
	assert.Equal(t, int64(42), p.CloudID)
	assert.True(t, p.HasEditableFlightPlan, "input cannot clear a derived field")
	assert.Equal(t, before.LatestUpdatedEditableFlightPlanDate, p.LatestUpdatedEditableFlightPlanDate)
}
