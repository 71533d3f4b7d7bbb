package core

import (
	"context"
	"fmt"
	"slices"

	"pictor/pkg/domain"
)

// IdentityRule blocks user-scoped records written without an owner.
func IdentityRule() domain.Rule {
	return identityRule{}
}

type identityRule struct{}

func (identityRule) Name() string { return "identity" }

func (identityRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.After == nil || !slices.Contains(domain.UserScopedEntities, change.Entity) {
			continue
		}
		rec, ok := change.After.(domain.Entity)
		if !ok || rec.Sync().UserUUID != "" {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "identity",
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("%s %s has no owner", change.Entity, change.UUID),
			Entity:   change.Entity,
			EntityID: change.UUID,
		})
	}
	return res, nil
}
