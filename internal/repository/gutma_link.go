package repository

import (
	"context"
	"time"

	"pictor/pkg/domain"
)

// GutmaLinkQuery bounds the execution date of links. Zero bounds are open.
type GutmaLinkQuery struct {
	ExecutionDateFrom time.Time
	ExecutionDateTo   time.Time
	FlightUUIDs       []string
	FlightPlanUUIDs   []string
}

func (q GutmaLinkQuery) match() func(domain.GutmaLink) bool {
	flights, plans := optionalSet(q.FlightUUIDs), optionalSet(q.FlightPlanUUIDs)
	return func(l domain.GutmaLink) bool {
		switch {
		case !q.ExecutionDateFrom.IsZero() && l.ExecutionDate.Before(q.ExecutionDateFrom):
			return false
		case !q.ExecutionDateTo.IsZero() && l.ExecutionDate.After(q.ExecutionDateTo):
			return false
		case flights != nil && !has(flights, l.FlightUUID):
			return false
		case plans != nil && !has(plans, l.FlightPlanUUID):
			return false
		}
		return true
	}
}

// GutmaLinkRepository reads the links between executions and flights, most
// recent execution first.
type GutmaLinkRepository struct {
	*Repository[domain.GutmaLink]
	flights *FlightRepository
	plans   *FlightPlanRepository
}

func newGutmaLinkRepository(src *source) *GutmaLinkRepository {
	return &GutmaLinkRepository{Repository: newRepository(src, domain.EntityGutmaLink,
		func(v domain.TransactionView) domain.TableView[domain.GutmaLink] { return v.GutmaLinks() },
		byExecutionDate)}
}

func byExecutionDate(a, b domain.GutmaLink) int { return newestFirst(a.ExecutionDate, b.ExecutionDate) }

// Find returns the links matching q.
func (r *GutmaLinkRepository) Find(ctx context.Context, sess domain.SessionContext, q GutmaLinkQuery) ([]domain.GutmaLink, error) {
	return r.find(ctx, sess, q.match(), nil)
}

// GetByFlightUUIDs returns the links of the given flights.
func (r *GutmaLinkRepository) GetByFlightUUIDs(ctx context.Context, sess domain.SessionContext, uuids []string) ([]domain.GutmaLink, error) {
	return r.Find(ctx, sess, GutmaLinkQuery{FlightUUIDs: nonNil(uuids)})
}

// GetByFlightPlanUUIDs returns the links of the given flight plans.
func (r *GutmaLinkRepository) GetByFlightPlanUUIDs(ctx context.Context, sess domain.SessionContext, uuids []string) ([]domain.GutmaLink, error) {
	return r.Find(ctx, sess, GutmaLinkQuery{FlightPlanUUIDs: nonNil(uuids)})
}

// RelatedFlights returns the flights recorded by executions of the plan.
func (r *GutmaLinkRepository) RelatedFlights(ctx context.Context, sess domain.SessionContext, flightPlanUUID string) ([]domain.Flight, error) {
	links, err := r.GetByFlightPlanUUIDs(ctx, sess, []string{flightPlanUUID})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.FlightUUID)
	}
	return r.flights.GetByUUIDs(ctx, sess, ids)
}

// RelatedFlightPlans returns the plans whose executions recorded the flight.
func (r *GutmaLinkRepository) RelatedFlightPlans(ctx context.Context, sess domain.SessionContext, flightUUID string) ([]domain.FlightPlan, error) {
	links, err := r.GetByFlightUUIDs(ctx, sess, []string{flightUUID})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.FlightPlanUUID)
	}
	return r.plans.GetByUUIDs(ctx, sess, ids)
}
