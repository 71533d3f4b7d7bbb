package core

import (
	"time"

	"pictor/pkg/domain"
)

// derived holds the project fields summarizing its live flight plans.
type derived struct {
	hasEditable    bool
	latestEditable *time.Time
	latestExecuted *time.Time
}

// projectDerived scans the non-deleted plans of projectUUID. A project
// without plans, or a missing project, yields the zero value.
func projectDerived(plans domain.TableView[domain.FlightPlan], projectUUID string) derived {
	var d derived
	if projectUUID == "" {
		return d
	}
	plans.Count(func(fp domain.FlightPlan) bool {
		if fp.ProjectUUID != projectUUID || fp.SynchroIsDeleted {
			return false
		}
		switch {
		case fp.IsEditable():
			d.hasEditable = true
			d.latestEditable = later(d.latestEditable, fp.LastUpdated)
		case fp.HasReachedFirstWaypoint:
			d.latestExecuted = later(d.latestExecuted, fp.LastUpdated)
		}
		return true
	})
	return d
}

func later(cur *time.Time, t time.Time) *time.Time {
	if cur == nil || t.After(*cur) {
		return &t
	}
	return cur
}

// apply copies d onto p and reports whether anything changed.
func (d derived) apply(p *domain.Project) bool {
	changed := p.HasEditableFlightPlan != d.hasEditable ||
		!sameTime(p.LatestUpdatedEditableFlightPlanDate, d.latestEditable) ||
		!sameTime(p.LatestExecutedFlightPlanDate, d.latestExecuted)
	p.HasEditableFlightPlan = d.hasEditable
	p.LatestUpdatedEditableFlightPlanDate = d.latestEditable
	p.LatestExecutedFlightPlanDate = d.latestExecuted
	return changed
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// refreshProject rewrites the project row only when a derived value moved.
// Sync dates are left alone: the fields are local bookkeeping.
func refreshProject(tx Transaction, projectUUID string) error {
	if projectUUID == "" {
		return nil
	}
	projects := tx.Projects()
	p, ok := projects.Get(projectUUID)
	if !ok || p.SynchroIsDeleted {
		return nil
	}
	if !projectDerived(tx.FlightPlans(), projectUUID).apply(&p) {
		return nil
	}
	return projects.Put(p)
}
