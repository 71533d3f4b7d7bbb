// Package memory provides the transactional in-memory record store. Durable
// backends embed it and persist committed changes through a commit hook.
package memory

import (
	"context"
	"fmt"
	"pictor/pkg/domain"
	"sync"
	"time"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation and committed changes.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// CommitHook runs after rule evaluation and before the new state becomes
// visible. An error aborts the commit.
type CommitHook func(ctx context.Context, changes []Change) error

// Option configures a Store.
type Option func(*Store)

// WithCommitHook registers a hook invoked with the changes of every transaction.
func WithCommitHook(hook CommitHook) Option {
	return func(s *Store) {
		if hook != nil {
			s.hooks = append(s.hooks, hook)
		}
	}
}

// WithClock overrides the time source used for Transaction.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// Store provides an in-memory transactional store. Writers are serialized by
// writeMu; the committed state is immutable and swapped under stateMu, so
// readers only hold a lock long enough to grab the current pointer.
type Store struct {
	writeMu sync.Mutex
	stateMu sync.RWMutex
	state   *memoryState
	engine  *RulesEngine
	nowFn   func() time.Time
	hooks   []CommitHook
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	return s.engine
}

// NowFunc returns the time provider used by the store.
func (s *Store) NowFunc() func() time.Time {
	return s.nowFn
}

// ExportState clones the current committed state.
func (s *Store) ExportState() Snapshot {
	return snapshotFromMemoryState(s.current())
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.swap(memoryStateFromSnapshot(snapshot))
}

func (s *Store) current() *memoryState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Store) swap(next *memoryState) {
	s.stateMu.Lock()
	s.state = next
	s.stateMu.Unlock()
}

// RunInTransaction applies fn to a private copy of the state. The copy is
// committed only when fn succeeds, no rule blocks, and every hook succeeds.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx := newTransaction(s.current(), s.nowFn())
	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil && len(tx.changes) > 0 {
		res, err := s.engine.Evaluate(ctx, newTransactionView(tx.state), tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if len(tx.changes) > 0 {
		for _, hook := range s.hooks {
			if err := hook(ctx, tx.changes); err != nil {
				return result, fmt.Errorf("commit: %w", err)
			}
		}
		s.swap(tx.state)
	}
	result.Changes = tx.changes
	return result, nil
}

// View executes fn against the latest committed state. It never waits for an
// in-flight transaction.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	return fn(newTransactionView(s.current()))
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

type transaction struct {
	state   *memoryState
	owned   map[domain.EntityType]bool
	changes []Change
	now     time.Time
}

func newTransaction(committed *memoryState, now time.Time) *transaction {
	shallow := *committed
	return &transaction{
		state: &shallow,
		owned: make(map[domain.EntityType]bool),
		now:   now,
	}
}

// helper to record and append change entries.
func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

func (tx *transaction) Now() time.Time { return tx.now }

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(tx.state)
}

func (tx *transaction) Drones() domain.Table[domain.Drone] {
	return newTxTable(tx, &tx.state.drones)
}

func (tx *transaction) Flights() domain.Table[domain.Flight] {
	return newTxTable(tx, &tx.state.flights)
}

func (tx *transaction) FlightPlans() domain.Table[domain.FlightPlan] {
	return newTxTable(tx, &tx.state.flightPlans)
}

func (tx *transaction) Projects() domain.Table[domain.Project] {
	return newTxTable(tx, &tx.state.projects)
}

func (tx *transaction) ProjectPix4ds() domain.Table[domain.ProjectPix4d] {
	return newTxTable(tx, &tx.state.projectPix4ds)
}

func (tx *transaction) GutmaLinks() domain.Table[domain.GutmaLink] {
	return newTxTable(tx, &tx.state.gutmaLinks)
}

func (tx *transaction) Thumbnails() domain.Table[domain.Thumbnail] {
	return newTxTable(tx, &tx.state.thumbnails)
}

func (tx *transaction) Users() domain.Table[domain.User] {
	return newTxTable(tx, &tx.state.users)
}

func (tx *transaction) Sessions() domain.Table[domain.Session] {
	return newTxTable(tx, &tx.state.sessions)
}

// transactionView exposes a read-only snapshot of a state to rules and readers.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

func (v transactionView) Drones() domain.TableView[domain.Drone] { return v.state.drones }
func (v transactionView) Flights() domain.TableView[domain.Flight] {
	return v.state.flights
}
func (v transactionView) FlightPlans() domain.TableView[domain.FlightPlan] {
	return v.state.flightPlans
}
func (v transactionView) Projects() domain.TableView[domain.Project] {
	return v.state.projects
}
func (v transactionView) ProjectPix4ds() domain.TableView[domain.ProjectPix4d] {
	return v.state.projectPix4ds
}
func (v transactionView) GutmaLinks() domain.TableView[domain.GutmaLink] {
	return v.state.gutmaLinks
}
func (v transactionView) Thumbnails() domain.TableView[domain.Thumbnail] {
	return v.state.thumbnails
}
func (v transactionView) Users() domain.TableView[domain.User] { return v.state.users }
func (v transactionView) Sessions() domain.TableView[domain.Session] {
	return v.state.sessions
}
