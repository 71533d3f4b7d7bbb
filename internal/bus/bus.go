// Package bus fans out committed entity changes to in-process subscribers.
//
// Publishing never blocks on a subscriber: each subscription owns an unbounded
// FIFO drained by its own goroutine, so a subscriber observes events in
// publish order regardless of how slowly it reads.
package bus

import (
	"slices"
	"sync"

	"pictor/pkg/domain"
)

// Kind classifies an event.
type Kind string

// Event kinds.
const (
	// Changed is the coarse notification emitted once per entity for every commit.
	Changed Kind = "changed"
	// Inserted carries uuids of newly stored rows.
	Inserted Kind = "inserted"
	// Updated carries uuids of rewritten rows.
	Updated Kind = "updated"
	// Deleted carries uuids removed from storage or tombstoned.
	Deleted Kind = "deleted"
	// DeletedAll reports that every row of the entity owned by a user was purged.
	DeletedAll Kind = "deleted_all"
	// MarkedDeleted carries only the tombstoned uuids of a delete batch.
	MarkedDeleted Kind = "marked_deleted"
	// NeedsSync tells the synchronizer the entity has outgoing changes.
	NeedsSync Kind = "needs_sync"
)

// Event is one notification. Seq increases monotonically across the bus.
type Event struct {
	Entity domain.EntityType
	Kind   Kind
	UUIDs  []string
	Seq    uint64
}

// Bus is a process-wide multicast keyed by entity type.
type Bus struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	seq    uint64
	closed bool
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Publish stamps and enqueues the events for every interested subscriber.
// Events published by one call are delivered contiguously and in order.
func (b *Bus) Publish(events ...Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ev := range events {
		b.seq++
		ev.Seq = b.seq
		ev.UUIDs = slices.Clone(ev.UUIDs)
		for sub := range b.subs {
			if sub.wants(ev.Entity) {
				sub.enqueue(ev)
			}
		}
	}
}

// Subscribe registers a subscription for the given entities, or for every
// entity when none are given.
func (b *Bus) Subscribe(entities ...domain.EntityType) *Subscription {
	sub := newSubscription(b, entities)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.shutdown()
		return sub
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Subscribers reports the number of open subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close closes every subscription; later publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	clear(b.subs)
	b.mu.Unlock()
	for _, sub := range subs {
		sub.shutdown()
	}
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

// Subscription delivers events on Events until closed.
type Subscription struct {
	bus     *Bus
	filter  map[domain.EntityType]struct{}
	out     chan Event
	mu      sync.Mutex
	queue   []Event
	signal  chan struct{}
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func newSubscription(b *Bus, entities []domain.EntityType) *Subscription {
	sub := &Subscription{
		bus:     b,
		out:     make(chan Event),
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	if len(entities) > 0 {
		sub.filter = make(map[domain.EntityType]struct{}, len(entities))
		for _, e := range entities {
			sub.filter[e] = struct{}{}
		}
	}
	go sub.pump()
	return sub
}

// Events returns the delivery channel. It is closed once the subscription ends.
func (s *Subscription) Events() <-chan Event { return s.out }

// Close ends the subscription. No event is delivered after Close returns.
func (s *Subscription) Close() {
	s.bus.remove(s)
	s.shutdown()
}

func (s *Subscription) shutdown() {
	s.once.Do(func() { close(s.done) })
	<-s.stopped
}

func (s *Subscription) wants(entity domain.EntityType) bool {
	if s.filter == nil {
		return true
	}
	_, ok := s.filter[entity]
	return ok
}

func (s *Subscription) enqueue(ev Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.stopped)
	defer close(s.out)
	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()
		if len(batch) == 0 {
			select {
			case <-s.signal:
				continue
			case <-s.done:
				return
			}
		}
		for _, ev := range batch {
			select {
			case s.out <- ev:
			case <-s.done:
				return
			}
		}
	}
}
