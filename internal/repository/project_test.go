package repository_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pictor/internal/repository"
	"pictor/pkg/domain"
)

func TestProjectEditablePlanIsJoined(t *testing.T) {
	e := newEnv(t, nil)
	e.create(t, domain.Projects{project("p1", "Roof", at(1)), project("p2", "Barn", at(2))})
	older := plan("edit-old", "p1", domain.FlightPlanEditable, at(10))
	newer := plan("edit-new", "p1", domain.FlightPlanEditable, at(20))
	newer.Thumbnail = thumb("th", []byte("png"))
	e.create(t, domain.FlightPlans{older, newer, execution("run", "p1", 1)})

	p, err := e.repos.Projects.Get(e.ctx, e.sess, "p1")
	require.NoError(t, err)
	require.NotNil(t, p.EditableFlightPlan)
	assert.Equal(t, "edit-new", p.EditableFlightPlan.UUID)
	require.NotNil(t, p.EditableFlightPlan.Thumbnail)
	assert.Equal(t, []byte("png"), p.EditableFlightPlan.Thumbnail.Data)
	assert.True(t, p.HasEditableFlightPlan)
	require.NotNil(t, p.LatestExecutedFlightPlanDate)

	barn, err := e.repos.Projects.Get(e.ctx, e.sess, "p2")
	require.NoError(t, err)
	assert.Nil(t, barn.EditableFlightPlan)
}

func TestProjectFind(t *testing.T) {
	e := newEnv(t, nil)
	survey := project("survey", "Survey", at(3))
	survey.Type = "pix4d"
	e.create(t, domain.Projects{project("roof", "Roof", at(1)), project("barn", "Barn", at(2)), survey})
	e.create(t, domain.FlightPlans{
		plan("edit", "roof", domain.FlightPlanEditable, at(5)),
		execution("run", "barn", 1),
	})
	projects := e.repos.Projects

	tests := []struct {
		name string
		q    repository.ProjectQuery
		want []string
	}{
		{"all", repository.ProjectQuery{}, []string{"survey", "barn", "roof"}},
		{"by type", repository.ProjectQuery{Type: "pix4d"}, []string{"survey"}},
		{"executed", repository.ProjectQuery{HasExecutedFlightPlans: ptr(true)}, []string{"barn"}},
		{"never executed", repository.ProjectQuery{HasExecutedFlightPlans: ptr(false)}, []string{"survey", "roof"}},
		{"editable only", repository.ProjectQuery{EditableOnly: true}, []string{"roof"}},
		{"excluded", repository.ProjectQuery{ExcludedUUIDs: []string{"survey"}}, []string{"barn", "roof"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := projects.Find(e.ctx, e.sess, tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, uuids(got))
			n, err := projects.CountWhere(e.ctx, e.sess, tt.q)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), n)
		})
	}

	page, err := projects.PageWhere(e.ctx, e.sess, repository.ProjectQuery{Type: "classic"}, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"roof"}, uuids(page))
}

func TestProjectGetLatestOpened(t *testing.T) {
	e := newEnv(t, nil)
	opened := project("opened", "A", at(1))
	opened.LastOpened = ptr(at(30))
	reopened := project("reopened", "B", at(0))
	reopened.LastOpened = ptr(at(40))
	e.create(t, domain.Projects{opened, reopened, project("fresh", "C", at(50))})

	p, err := e.repos.Projects.GetLatestOpened(e.ctx, e.sess, "classic")
	require.NoError(t, err)
	assert.Equal(t, "reopened", p.UUID, "never opened projects come last")

	_, err = e.repos.Projects.GetLatestOpened(e.ctx, e.sess, "pix4d")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProjectTitles(t *testing.T) {
	e := newEnv(t, nil)
	e.create(t, domain.Projects{
		project("p1", "Église Saint-Étienne", at(1)),
		project("p2", "ETIENNE farm", at(2)),
		project("p3", "Barn", at(3)),
	})
	projects := e.repos.Projects

	titles, err := projects.GetTitles(e.ctx, e.sess, "étienne", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"ETIENNE farm", "Église Saint-Étienne"}, titles)

	titles, err = projects.GetTitles(e.ctx, e.sess, "EGLISE", []string{"p1"})
	require.NoError(t, err)
	assert.Empty(t, titles)

	titles, err = projects.GetAllTitles(e.ctx, e.sess)
	require.NoError(t, err)
	assert.Equal(t, []string{"Barn", "ETIENNE farm", "Église Saint-Étienne"}, titles)

	found, err := projects.Find(e.ctx, e.sess, repository.ProjectQuery{TitleContains: "saint-etienne"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, uuids(found))
}
