package repository

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"pictor/pkg/domain"
)

// ProjectQuery filters projects. Empty fields do not constrain.
type ProjectQuery struct {
	Type                   string
	HasExecutedFlightPlans *bool
	EditableOnly           bool
	TitleContains          string
	ExcludedUUIDs          []string
}

func (q ProjectQuery) match() func(domain.Project) bool {
	excluded := optionalSet(q.ExcludedUUIDs)
	needle := foldTitle(q.TitleContains)
	return func(p domain.Project) bool {
		switch {
		case q.Type != "" && p.Type != q.Type:
			return false
		case q.HasExecutedFlightPlans != nil && (p.LatestExecutedFlightPlanDate != nil) != *q.HasExecutedFlightPlans:
			return false
		case q.EditableOnly && !p.HasEditableFlightPlan:
			return false
		case excluded != nil && has(excluded, p.UUID):
			return false
		case needle != "" && !strings.Contains(foldTitle(p.Title), needle):
			return false
		}
		return true
	}
}

// ProjectRepository reads projects, most recently updated first, joined with
// their editable flight plan.
type ProjectRepository struct {
	*Repository[domain.Project]
}

func newProjectRepository(src *source) *ProjectRepository {
	r := &ProjectRepository{newRepository(src, domain.EntityProject,
		func(v domain.TransactionView) domain.TableView[domain.Project] { return v.Projects() },
		byProjectLastUpdated)}
	r.join = joinEditablePlans
	r.finish = func(ctx context.Context, items []domain.Project) error {
		var ptrs []*domain.Thumbnail
		for _, p := range items {
			if p.EditableFlightPlan != nil {
				ptrs = append(ptrs, p.EditableFlightPlan.Thumbnail)
			}
		}
		return hydrate(ctx, src, ptrs)
	}
	return r
}

func byProjectLastUpdated(a, b domain.Project) int { return newestFirst(a.LastUpdated, b.LastUpdated) }

func byLastOpened(a, b domain.Project) int {
	return cmp.Or(newestFirstPtr(a.LastOpened, b.LastOpened), byProjectLastUpdated(a, b))
}

func joinEditablePlans(ctx context.Context, v domain.TransactionView, items []domain.Project) error {
	set := make(map[string]struct{}, len(items))
	for _, p := range items {
		set[p.UUID] = struct{}{}
	}
	plans := v.FlightPlans().Filter(func(fp domain.FlightPlan) bool {
		_, ok := set[fp.ProjectUUID]
		return ok && fp.IsEditable() && !fp.SynchroIsDeleted
	})
	if len(plans) == 0 {
		return nil
	}
	slices.SortStableFunc(plans, byLastUpdated)
	if err := joinPlanCompanions(ctx, v, plans); err != nil {
		return err
	}
	byProject := make(map[string]domain.FlightPlan, len(plans))
	for _, fp := range plans {
		if _, ok := byProject[fp.ProjectUUID]; !ok {
			byProject[fp.ProjectUUID] = fp
		}
	}
	for i := range items {
		if fp, ok := byProject[items[i].UUID]; ok {
			items[i].EditableFlightPlan = &fp
		}
	}
	return nil
}

// Find returns the projects matching q.
func (r *ProjectRepository) Find(ctx context.Context, sess domain.SessionContext, q ProjectQuery) ([]domain.Project, error) {
	return r.find(ctx, sess, q.match(), nil)
}

// CountWhere counts the projects matching q.
func (r *ProjectRepository) CountWhere(ctx context.Context, sess domain.SessionContext, q ProjectQuery) (int, error) {
	return r.count(ctx, sess, q.match())
}

// PageWhere returns a window of the projects matching q.
func (r *ProjectRepository) PageWhere(ctx context.Context, sess domain.SessionContext, q ProjectQuery, from, count int) ([]domain.Project, error) {
	return r.find(ctx, sess, q.match(), window[domain.Project](from, count))
}

// GetLatestOpened returns the project of type projectType opened last, or
// domain.ErrNotFound. Projects never opened come after opened ones.
func (r *ProjectRepository) GetLatestOpened(ctx context.Context, sess domain.SessionContext, projectType string) (domain.Project, error) {
	q := ProjectQuery{Type: projectType}
	items, err := r.findOrdered(ctx, sess, q.match(), byLastOpened, window[domain.Project](0, 1))
	if err != nil {
		return domain.Project{}, err
	}
	if len(items) == 0 {
		return domain.Project{}, domain.ErrNotFound
	}
	return items[0], nil
}

// GetTitles returns the titles containing like, ignoring case and diacritics.
func (r *ProjectRepository) GetTitles(ctx context.Context, sess domain.SessionContext, like string, excluded []string) ([]string, error) {
	return r.titles(ctx, sess, ProjectQuery{TitleContains: like, ExcludedUUIDs: excluded})
}

// GetAllTitles returns every project title.
func (r *ProjectRepository) GetAllTitles(ctx context.Context, sess domain.SessionContext) ([]string, error) {
	return r.titles(ctx, sess, ProjectQuery{})
}

func (r *ProjectRepository) titles(ctx context.Context, sess domain.SessionContext, q ProjectQuery) ([]string, error) {
	var out []string
	err := r.view(ctx, sess, func(v domain.TransactionView, user string) error {
		items := v.Projects().Filter(visible(user, q.match()))
		slices.SortStableFunc(items, byProjectLastUpdated)
		out = make([]string, 0, len(items))
		for _, p := range items {
			out = append(out, p.Title)
		}
		return nil
	})
	return out, err
}

// foldTitle strips diacritics and folds case.
func foldTitle(s string) string {
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC, cases.Fold())
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}
