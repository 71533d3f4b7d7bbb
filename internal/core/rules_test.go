package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pictor/internal/core"
	"pictor/internal/infra/persistence/memory"
	"pictor/pkg/domain"
)

func ruleView(t *testing.T, seed func(tx domain.Transaction) error) domain.RuleView {
	t.Helper()
	store := memory.NewStore(core.NewRulesEngine())
	if seed != nil {
		_, err := store.RunInTransaction(t.Context(), seed)
		require.NoError(t, err)
	}
	var view domain.RuleView
	require.NoError(t, store.View(t.Context(), func(v domain.TransactionView) error {
		view = v
		return nil
	}))
	return view
}

func TestIdentityRuleBlocksOwnerlessRecords(t *testing.T) {
	owned := flight("f1")
	owned.UserUUID = "u1"
	changes := []domain.Change{
		{Entity: domain.EntityFlight, Action: domain.ActionCreate, UUID: "f1", After: owned},
		{Entity: domain.EntityFlight, Action: domain.ActionCreate, UUID: "f2", After: flight("f2")},
		{Entity: domain.EntitySession, Action: domain.ActionCreate, UUID: "s1", After: domain.Session{}},
		{Entity: domain.EntityFlight, Action: domain.ActionDelete, UUID: "f3", Before: flight("f3")},
	}
	res, err := core.IdentityRule().Evaluate(t.Context(), ruleView(t, nil), changes)
	require.NoError(t, err)
	require.Len(t, res.Violations, 1)
	v := res.Violations[0]
	assert.Equal(t, "identity", v.Rule)
	assert.Equal(t, domain.SeverityBlock, v.Severity)
	assert.Equal(t, "f2", v.EntityID)
	assert.True(t, res.HasBlocking())
}

func TestReferenceIntegrityRuleWarns(t *testing.T) {
	view := ruleView(t, func(tx domain.Transaction) error {
		if err := tx.Projects().Put(project("p1", "Roof")); err != nil {
			return err
		}
		return tx.Flights().Put(flight("f1"))
	})
	changes := []domain.Change{
		{Entity: domain.EntityFlightPlan, UUID: "ok", After: plan("ok", "p1", domain.FlightPlanEditable, epoch)},
		{Entity: domain.EntityFlightPlan, UUID: "loose", After: plan("loose", "", domain.FlightPlanEditable, epoch)},
		{Entity: domain.EntityFlightPlan, UUID: "bad", After: plan("bad", "p9", domain.FlightPlanEditable, epoch)},
		{Entity: domain.EntityGutmaLink, UUID: "l1", After: link("l1", "f1", "missing")},
	}
	res, err := core.ReferenceIntegrityRule().Evaluate(t.Context(), view, changes)
	require.NoError(t, err)
	require.Len(t, res.Violations, 2)
	assert.Equal(t, "bad", res.Violations[0].EntityID)
	assert.Contains(t, res.Violations[1].Message, "missing flight plan missing")
	assert.False(t, res.HasBlocking())
}

func TestDefaultRulesEngineRegistersBuiltins(t *testing.T) {
	var names []string
	for _, r := range core.NewDefaultRulesEngine().Rules() {
		names = append(names, r.Name())
	}
	assert.Equal(t, []string{"reference_integrity", "identity"}, names)
}
