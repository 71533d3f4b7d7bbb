package repository

import (
	"cmp"
	"context"
	"slices"

	"pictor/pkg/domain"
)

// FlightPlanQuery filters flight plans. Empty fields do not constrain.
// Query finders only return plans attached to a project.
type FlightPlanQuery struct {
	UUIDs                   []string
	ExcludedUUIDs           []string
	ProjectUUIDs            []string
	ProjectPix4dUUIDs       []string
	States                  []domain.FlightPlanState
	ExcludedStates          []domain.FlightPlanState
	Types                   []string
	ExcludedTypes           []string
	HasReachedFirstWaypoint *bool
	FormatVersions          []domain.FormatVersion
	WithoutThumbnail        bool
	ExecutionRanks          []int
}

func (q FlightPlanQuery) match() func(domain.FlightPlan) bool {
	uuids, excluded := optionalSet(q.UUIDs), optionalSet(q.ExcludedUUIDs)
	projects, pix4d := optionalSet(q.ProjectUUIDs), optionalSet(q.ProjectPix4dUUIDs)
	types, excludedTypes := optionalSet(q.Types), optionalSet(q.ExcludedTypes)
	return func(p domain.FlightPlan) bool {
		switch {
		case p.ProjectUUID == "":
			return false
		case uuids != nil && !has(uuids, p.UUID):
			return false
		case excluded != nil && has(excluded, p.UUID):
			return false
		case projects != nil && !has(projects, p.ProjectUUID):
			return false
		case pix4d != nil && !has(pix4d, p.ProjectPix4dUUID):
			return false
		case len(q.States) > 0 && !slices.Contains(q.States, p.State):
			return false
		case slices.Contains(q.ExcludedStates, p.State):
			return false
		case types != nil && !has(types, p.FlightPlanType):
			return false
		case excludedTypes != nil && has(excludedTypes, p.FlightPlanType):
			return false
		case q.HasReachedFirstWaypoint != nil && p.HasReachedFirstWaypoint != *q.HasReachedFirstWaypoint:
			return false
		case len(q.FormatVersions) > 0 && !slices.Contains(q.FormatVersions, p.FormatVersion):
			return false
		case q.WithoutThumbnail && p.ThumbnailUUID != "":
			return false
		case len(q.ExecutionRanks) > 0 && !slices.Contains(q.ExecutionRanks, p.ExecutionRank):
			return false
		}
		return true
	}
}

// FlightPlanRepository reads flight plans, most recently updated first, with
// their thumbnail and gutma links.
type FlightPlanRepository struct {
	*Repository[domain.FlightPlan]
}

func newFlightPlanRepository(src *source) *FlightPlanRepository {
	r := &FlightPlanRepository{newRepository(src, domain.EntityFlightPlan,
		func(v domain.TransactionView) domain.TableView[domain.FlightPlan] { return v.FlightPlans() },
		byLastUpdated)}
	r.join = joinPlanCompanions
	r.finish = func(ctx context.Context, items []domain.FlightPlan) error {
		ptrs := make([]*domain.Thumbnail, 0, len(items))
		for i := range items {
			ptrs = append(ptrs, items[i].Thumbnail)
		}
		return hydrate(ctx, src, ptrs)
	}
	return r
}

func byLastUpdated(a, b domain.FlightPlan) int { return newestFirst(a.LastUpdated, b.LastUpdated) }

// byExecution orders executions by rank, then name, both descending.
func byExecution(a, b domain.FlightPlan) int {
	return cmp.Or(cmp.Compare(b.ExecutionRank, a.ExecutionRank), descending(a.Name, b.Name))
}

// joinPlanCompanions resolves thumbnails and gutma links with one lookup each.
func joinPlanCompanions(_ context.Context, v domain.TransactionView, items []domain.FlightPlan) error {
	planIDs := make([]string, 0, len(items))
	thumbIDs := make([]string, 0, len(items))
	for _, p := range items {
		planIDs = append(planIDs, p.UUID)
		if p.ThumbnailUUID != "" {
			thumbIDs = append(thumbIDs, p.ThumbnailUUID)
		}
	}

	thumbs := lookupThumbnails(v, thumbIDs)
	links := linksByPlan(v, planIDs)
	for i := range items {
		if th, ok := thumbs[items[i].ThumbnailUUID]; ok {
			items[i].Thumbnail = &th
		}
		items[i].GutmaLinks = links[items[i].UUID]
	}
	return nil
}

func linksByPlan(v domain.TransactionView, planIDs []string) map[string][]domain.GutmaLink {
	set := stringSet(planIDs)
	rows := v.GutmaLinks().Filter(func(l domain.GutmaLink) bool {
		_, ok := set[l.FlightPlanUUID]
		return ok && !l.SynchroIsDeleted
	})
	slices.SortStableFunc(rows, byExecutionDate)
	out := make(map[string][]domain.GutmaLink, len(set))
	for _, l := range rows {
		out[l.FlightPlanUUID] = append(out[l.FlightPlanUUID], l)
	}
	return out
}

// Find returns the plans matching q.
func (r *FlightPlanRepository) Find(ctx context.Context, sess domain.SessionContext, q FlightPlanQuery) ([]domain.FlightPlan, error) {
	return r.find(ctx, sess, q.match(), nil)
}

// CountWhere counts the plans matching q.
func (r *FlightPlanRepository) CountWhere(ctx context.Context, sess domain.SessionContext, q FlightPlanQuery) (int, error) {
	return r.count(ctx, sess, q.match())
}

// GetByProjectPix4dUUIDs returns the plans processed by the given Pix4D projects.
func (r *FlightPlanRepository) GetByProjectPix4dUUIDs(ctx context.Context, sess domain.SessionContext, uuids []string) ([]domain.FlightPlan, error) {
	return r.Find(ctx, sess, FlightPlanQuery{ProjectPix4dUUIDs: nonNil(uuids)})
}

// GetByFormatVersions returns the plans stored in one of versions.
func (r *FlightPlanRepository) GetByFormatVersions(ctx context.Context, sess domain.SessionContext, versions []domain.FormatVersion) ([]domain.FlightPlan, error) {
	if len(versions) == 0 {
		return nil, r.check(ctx, sess)
	}
	return r.Find(ctx, sess, FlightPlanQuery{FormatVersions: versions})
}

// CountByFormatVersions counts the plans stored in one of versions.
func (r *FlightPlanRepository) CountByFormatVersions(ctx context.Context, sess domain.SessionContext, versions []domain.FormatVersion) (int, error) {
	if len(versions) == 0 {
		return 0, r.check(ctx, sess)
	}
	return r.CountWhere(ctx, sess, FlightPlanQuery{FormatVersions: versions})
}

// GetAllWithoutThumbnail returns the plans that reference no thumbnail.
func (r *FlightPlanRepository) GetAllWithoutThumbnail(ctx context.Context, sess domain.SessionContext) ([]domain.FlightPlan, error) {
	return r.Find(ctx, sess, FlightPlanQuery{WithoutThumbnail: true})
}

// GetLatestExecution returns the highest ranked plan of the project that
// reached its first waypoint, or domain.ErrNotFound.
func (r *FlightPlanRepository) GetLatestExecution(ctx context.Context, sess domain.SessionContext, projectUUID string) (domain.FlightPlan, error) {
	reached := true
	q := FlightPlanQuery{ProjectUUIDs: []string{projectUUID}, HasReachedFirstWaypoint: &reached}
	items, err := r.findOrdered(ctx, sess, q.match(), byExecution, window[domain.FlightPlan](0, 1))
	if err != nil {
		return domain.FlightPlan{}, err
	}
	if len(items) == 0 {
		return domain.FlightPlan{}, domain.ErrNotFound
	}
	return items[0], nil
}

// GetExecutions returns the executed plans of the project, highest rank first.
func (r *FlightPlanRepository) GetExecutions(ctx context.Context, sess domain.SessionContext, projectUUID string) ([]domain.FlightPlan, error) {
	reached := true
	q := FlightPlanQuery{
		ProjectUUIDs:            []string{projectUUID},
		ExcludedStates:          []domain.FlightPlanState{domain.FlightPlanEditable},
		HasReachedFirstWaypoint: &reached,
	}
	return r.findOrdered(ctx, sess, q.match(), byExecution, nil)
}

// optionalSet returns nil for a nil slice so that an absent filter differs
// from an empty one.
func optionalSet(values []string) map[string]struct{} {
	if values == nil {
		return nil
	}
	return stringSet(values)
}

func has(set map[string]struct{}, v string) bool {
	_, ok := set[v]
	return ok
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
