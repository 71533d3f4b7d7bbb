package repository

import (
	"sync"

	"pictor/internal/bus"
	"pictor/pkg/domain"
)

// ChangeKind classifies a repository notification.
type ChangeKind string

// Repository notifications. Tombstoned rows are reported as Deleted.
const (
	Changed    ChangeKind = "changed"
	Created    ChangeKind = "created"
	Updated    ChangeKind = "updated"
	Deleted    ChangeKind = "deleted"
	DeletedAll ChangeKind = "deleted_all"
)

// Notification is one change of the watched entity.
type Notification struct {
	Kind  ChangeKind
	UUIDs []string
}

// Watcher re-publishes the bus events of one entity type. Events arrive in
// commit order on a single channel.
type Watcher[T domain.Entity] struct {
	sub  *bus.Subscription
	out  chan Notification
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// Watch subscribes to changes of the repository's entity. Close releases it.
func (r *Repository[T]) Watch() *Watcher[T] {
	w := &Watcher[T]{
		sub:  r.src.bus.Subscribe(r.kind),
		out:  make(chan Notification),
		done: make(chan struct{}),
	}
	w.wg.Add(1)
	go w.forward()
	return w
}

// C returns the notification channel. It is closed after Close or when the
// bus shuts down.
func (w *Watcher[T]) C() <-chan Notification { return w.out }

// Close stops delivery and waits for the forwarding goroutine.
func (w *Watcher[T]) Close() {
	w.once.Do(func() { close(w.done) })
	w.sub.Close()
	w.wg.Wait()
}

func (w *Watcher[T]) forward() {
	defer w.wg.Done()
	defer close(w.out)
	for ev := range w.sub.Events() {
		n, ok := translate(ev)
		if !ok {
			continue
		}
		select {
		case w.out <- n:
		case <-w.done:
			return
		}
	}
}

func translate(ev bus.Event) (Notification, bool) {
	switch ev.Kind {
	case bus.Changed:
		return Notification{Kind: Changed}, true
	case bus.Inserted:
		return Notification{Kind: Created, UUIDs: ev.UUIDs}, true
	case bus.Updated:
		return Notification{Kind: Updated, UUIDs: ev.UUIDs}, true
	case bus.Deleted:
		return Notification{Kind: Deleted, UUIDs: ev.UUIDs}, true
	case bus.DeletedAll:
		return Notification{Kind: DeletedAll}, true
	}
	return Notification{}, false
}
