package repository

import (
	"context"

	"pictor/pkg/domain"
)

// FlightSummary aggregates recorded flights.
type FlightSummary struct {
	Count         int     `json:"count"`
	TotalDuration float64 `json:"total_duration"`
	TotalDistance float64 `json:"total_distance"`
}

// FlightRepository reads flights, most recent run first, with their thumbnail.
type FlightRepository struct {
	*Repository[domain.Flight]
}

func newFlightRepository(src *source) *FlightRepository {
	r := &FlightRepository{newRepository(src, domain.EntityFlight,
		func(v domain.TransactionView) domain.TableView[domain.Flight] { return v.Flights() },
		func(a, b domain.Flight) int { return newestFirst(a.RunDate, b.RunDate) })}
	r.join = joinFlightThumbnails
	r.finish = func(ctx context.Context, items []domain.Flight) error {
		ptrs := make([]*domain.Thumbnail, 0, len(items))
		for i := range items {
			ptrs = append(ptrs, items[i].Thumbnail)
		}
		return hydrate(ctx, src, ptrs)
	}
	return r
}

func joinFlightThumbnails(_ context.Context, v domain.TransactionView, items []domain.Flight) error {
	ids := make([]string, 0, len(items))
	for _, f := range items {
		if f.ThumbnailUUID != "" {
			ids = append(ids, f.ThumbnailUUID)
		}
	}
	thumbs := lookupThumbnails(v, ids)
	for i := range items {
		if th, ok := thumbs[items[i].ThumbnailUUID]; ok {
			items[i].Thumbnail = &th
		}
	}
	return nil
}

// GetAllWithoutThumbnail returns the flights that reference no thumbnail.
func (r *FlightRepository) GetAllWithoutThumbnail(ctx context.Context, sess domain.SessionContext) ([]domain.Flight, error) {
	return r.find(ctx, sess, func(f domain.Flight) bool { return f.ThumbnailUUID == "" }, nil)
}

// Summary aggregates every flight of the session user.
func (r *FlightRepository) Summary(ctx context.Context, sess domain.SessionContext) (FlightSummary, error) {
	return r.summary(ctx, sess, nil)
}

// SummaryFor aggregates the flights among uuids.
func (r *FlightRepository) SummaryFor(ctx context.Context, sess domain.SessionContext, uuids []string) (FlightSummary, error) {
	return r.summary(ctx, sess, inSet[domain.Flight](uuids))
}

func (r *FlightRepository) summary(ctx context.Context, sess domain.SessionContext, match func(domain.Flight) bool) (FlightSummary, error) {
	var s FlightSummary
	err := r.view(ctx, sess, func(v domain.TransactionView, user string) error {
		for _, f := range v.Flights().Filter(visible(user, match)) {
			s.Count++
			s.TotalDuration += f.Duration
			s.TotalDistance += f.Distance
		}
		return nil
	})
	return s, err
}
