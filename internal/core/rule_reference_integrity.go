package core

import (
	"context"
	"fmt"

	"pictor/pkg/domain"
)

// ReferenceIntegrityRule warns when a written flight plan or gutma link points
// at a record that does not exist. References are plain uuids, so nothing
// below the Context enforces them.
func ReferenceIntegrityRule() domain.Rule {
	return referenceIntegrityRule{}
}

type referenceIntegrityRule struct{}

func (referenceIntegrityRule) Name() string { return "reference_integrity" }

func (referenceIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.After == nil {
			continue
		}
		switch rec := change.After.(type) {
		case domain.FlightPlan:
			if rec.ProjectUUID == "" {
				continue
			}
			if _, ok := view.Projects().Get(rec.ProjectUUID); !ok {
				res.Violations = append(res.Violations, referenceViolation(change, fmt.Sprintf("flight plan %s references missing project %s", rec.UUID, rec.ProjectUUID)))
			}
		case domain.GutmaLink:
			if _, ok := view.Flights().Get(rec.FlightUUID); !ok {
				res.Violations = append(res.Violations, referenceViolation(change, fmt.Sprintf("gutma link %s references missing flight %s", rec.UUID, rec.FlightUUID)))
			}
			if _, ok := view.FlightPlans().Get(rec.FlightPlanUUID); !ok {
				res.Violations = append(res.Violations, referenceViolation(change, fmt.Sprintf("gutma link %s references missing flight plan %s", rec.UUID, rec.FlightPlanUUID)))
			}
		}
	}
	return res, nil
}

func referenceViolation(change domain.Change, message string) domain.Violation {
	return domain.Violation{
		Rule:     "reference_integrity",
		Severity: domain.SeverityWarn,
		Message:  message,
		Entity:   change.Entity,
		EntityID: change.UUID,
	}
}
