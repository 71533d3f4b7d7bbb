package domain

import (
	"context"
	"time"
)

// TableView provides read-only access to the records of one entity type.
// A nil predicate matches every record. Results are ordered by UUID.
type TableView[T any] interface {
	Get(uuid string) (T, bool)
	Filter(match func(T) bool) []T
	Count(match func(T) bool) int
	Len() int
}

// Table is the mutable counterpart of TableView used inside a transaction.
type Table[T any] interface {
	TableView[T]
	// Put inserts or replaces the record keyed by its UUID.
	Put(record T) error
	// Delete removes the record and reports whether it existed.
	Delete(uuid string) bool
}

// TransactionView exposes a consistent read-only snapshot of every table.
type TransactionView interface {
	Drones() TableView[Drone]
	Flights() TableView[Flight]
	FlightPlans() TableView[FlightPlan]
	Projects() TableView[Project]
	ProjectPix4ds() TableView[ProjectPix4d]
	GutmaLinks() TableView[GutmaLink]
	Thumbnails() TableView[Thumbnail]
	Users() TableView[User]
	Sessions() TableView[Session]
}

// Transaction exposes the mutable tables of an atomic unit of work.
type Transaction interface {
	Drones() Table[Drone]
	Flights() Table[Flight]
	FlightPlans() Table[FlightPlan]
	Projects() Table[Project]
	ProjectPix4ds() Table[ProjectPix4d]
	GutmaLinks() Table[GutmaLink]
	Thumbnails() Table[Thumbnail]
	Users() Table[User]
	Sessions() Table[Session]
	Snapshot() TransactionView
	Now() time.Time
}

// PersistentStore is the record store shared by the write and read paths.
// RunInTransaction serializes writers; View never waits for an in-flight writer.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	Close() error
}
