// Package sqlrecords maps entity records onto one SQL table per entity type
// and applies committed changes as row-level upserts and deletes.
package sqlrecords

import (
	"context"
	"database/sql"
	"fmt"
	"pictor/internal/infra/persistence/memory"
	"pictor/pkg/domain"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// Dialect selects placeholder syntax.
type Dialect string

// Supported SQL dialects.
const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func (d Dialect) placeholder(n int) string {
	if d == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

var tableNames = map[domain.EntityType]string{
	domain.EntityDrone:        "drones",
	domain.EntityFlight:       "flights",
	domain.EntityFlightPlan:   "flight_plans",
	domain.EntityProject:      "projects",
	domain.EntityProjectPix4d: "project_pix4ds",
	domain.EntityGutmaLink:    "gutma_links",
	domain.EntityThumbnail:    "thumbnails",
	domain.EntityUser:         "users",
	domain.EntitySession:      "sessions",
}

// TableName returns the table backing the entity type.
func TableName(kind domain.EntityType) (string, error) {
	name, ok := tableNames[kind]
	if !ok {
		return "", fmt.Errorf("no table for entity %q", kind)
	}
	return name, nil
}

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Load reads every table into a snapshot suitable for memory.Store.ImportState.
func Load(ctx context.Context, q Querier) (memory.Snapshot, error) {
	snap := memory.NewSnapshot()
	loaders := []func() error{
		func() error { return loadInto(ctx, q, domain.EntityDrone, snap.Drones) },
		func() error { return loadInto(ctx, q, domain.EntityFlight, snap.Flights) },
		func() error { return loadInto(ctx, q, domain.EntityFlightPlan, snap.FlightPlans) },
		func() error { return loadInto(ctx, q, domain.EntityProject, snap.Projects) },
		func() error { return loadInto(ctx, q, domain.EntityProjectPix4d, snap.ProjectPix4ds) },
		func() error { return loadInto(ctx, q, domain.EntityGutmaLink, snap.GutmaLinks) },
		func() error { return loadInto(ctx, q, domain.EntityThumbnail, snap.Thumbnails) },
		func() error { return loadInto(ctx, q, domain.EntityUser, snap.Users) },
		func() error { return loadInto(ctx, q, domain.EntitySession, snap.Sessions) },
	}
	for _, load := range loaders {
		if err := load(); err != nil {
			return memory.Snapshot{}, err
		}
	}
	return snap, nil
}

func loadInto[T domain.Entity](ctx context.Context, q Querier, kind domain.EntityType, dst map[string]T) error {
	table, err := TableName(kind)
	if err != nil {
		return err
	}
	rows, err := q.QueryContext(ctx, "SELECT uuid, payload FROM "+table)
	if err != nil {
		return fmt.Errorf("select %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var uuid string
		var payload []byte
		if err := rows.Scan(&uuid, &payload); err != nil {
			return fmt.Errorf("scan %s: %w", table, err)
		}
		var record T
		if err := json.Unmarshal(payload, &record); err != nil {
			return fmt.Errorf("decode %s %s: %w", table, uuid, err)
		}
		dst[uuid] = record
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", table, err)
	}
	return nil
}

// Apply writes the given changes in order. Callers wrap it in a SQL transaction.
func Apply(ctx context.Context, ex Execer, d Dialect, changes []domain.Change) error {
	for _, change := range changes {
		table, err := TableName(change.Entity)
		if err != nil {
			return err
		}
		if change.Action == domain.ActionDelete {
			query := "DELETE FROM " + table + " WHERE uuid = " + d.placeholder(1)
			if _, err := ex.ExecContext(ctx, query, change.UUID); err != nil {
				return fmt.Errorf("delete %s %s: %w", table, change.UUID, err)
			}
			continue
		}
		record, ok := change.After.(domain.Entity)
		if !ok {
			return fmt.Errorf("change for %s %s carries no record", table, change.UUID)
		}
		payload, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", table, change.UUID, err)
		}
		state := record.Sync()
		if _, err := ex.ExecContext(ctx, upsertQuery(table, d), change.UUID, state.UserUUID, state.SynchroIsDeleted, updatedAt(state), string(payload)); err != nil {
			return fmt.Errorf("upsert %s %s: %w", table, change.UUID, err)
		}
	}
	return nil
}

func upsertQuery(table string, d Dialect) string {
	return fmt.Sprintf(`INSERT INTO %s (uuid, user_uuid, deleted, updated_at, payload) VALUES (%s, %s, %s, %s, %s)
ON CONFLICT (uuid) DO UPDATE SET user_uuid = excluded.user_uuid, deleted = excluded.deleted, updated_at = excluded.updated_at, payload = excluded.payload`,
		table, d.placeholder(1), d.placeholder(2), d.placeholder(3), d.placeholder(4), d.placeholder(5))
}

func updatedAt(state domain.SyncState) time.Time {
	if state.LocalModificationDate != nil {
		return state.LocalModificationDate.UTC()
	}
	return state.LocalCreationDate.UTC()
}
