package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"pictor/pkg/domain"
)

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := NewStore(context.Background(), path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	return store
}

func TestSQLiteStorePersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store := openStore(t, path)
	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	plan := domain.FlightPlan{
		SyncState:   domain.SyncState{UUID: "fp1", UserUUID: "u1", LocalCreationDate: created, CloudID: 42},
		Name:        "Survey",
		State:       domain.FlightPlanEditable,
		DataSetting: []byte(`{"alt":30}`),
	}
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if err := tx.FlightPlans().Put(plan); err != nil {
			return err
		}
		return tx.Drones().Put(domain.Drone{SyncState: domain.SyncState{UUID: "d1", UserUUID: "u1"}, SerialNumber: "PI040"})
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		tx.Drones().Delete("d1")
		return nil
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded := openStore(t, path)
	t.Cleanup(func() { _ = reloaded.Close() })
	if reloaded.Path() != path {
		t.Fatalf("unexpected path %s", reloaded.Path())
	}
	_ = reloaded.View(context.Background(), func(v domain.TransactionView) error {
		got, ok := v.FlightPlans().Get("fp1")
		if !ok {
			t.Fatalf("expected flight plan after reload")
		}
		if got.Name != "Survey" || got.CloudID != 42 || string(got.DataSetting) != `{"alt":30}` || !got.LocalCreationDate.Equal(created) {
			t.Fatalf("unexpected reloaded plan %+v", got)
		}
		if v.Drones().Len() != 0 {
			t.Fatalf("expected deleted drone to stay deleted")
		}
		return nil
	})
}

func TestSQLiteStoreCreatesEntityTables(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "state.db"))
	t.Cleanup(func() { _ = store.Close() })
	for _, table := range []string{"drones", "flight_plans", "gutma_links", "sessions"} {
		var name string
		if err := store.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", table).Scan(&name); err != nil {
			t.Fatalf("lookup %s table: %v", table, err)
		}
	}
}

func TestSQLiteStoreTracksOwnerAndTombstoneColumns(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "state.db"))
	t.Cleanup(func() { _ = store.Close() })
	now := time.Now().UTC()
	project := domain.Project{SyncState: domain.SyncState{UUID: "p1", UserUUID: "u9", CloudID: 7}, Title: "Roof"}
	project.MarkDeleted(now)
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.Projects().Put(project)
	}); err != nil {
		t.Fatalf("put: %v", err)
	}
	var owner string
	var deleted bool
	if err := store.DB().QueryRow("SELECT user_uuid, deleted FROM projects WHERE uuid = ?", "p1").Scan(&owner, &deleted); err != nil {
		t.Fatalf("query row: %v", err)
	}
	if owner != "u9" || !deleted {
		t.Fatalf("unexpected columns owner=%s deleted=%v", owner, deleted)
	}
}

func TestSQLiteStorePersistFailureKeepsMemoryUnchanged(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "state.db"))
	_ = store.DB().Close()
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.Users().Put(domain.User{SyncState: domain.SyncState{UUID: "u1"}})
	})
	if err == nil {
		t.Fatalf("expected persist error on closed db")
	}
	var violation domain.RuleViolationError
	if errors.As(err, &violation) {
		t.Fatalf("expected storage error, got rule violation")
	}
	_ = store.View(context.Background(), func(v domain.TransactionView) error {
		if v.Users().Len() != 0 {
			t.Fatalf("failed persist must not expose the write")
		}
		return nil
	})
}
