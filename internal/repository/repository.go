// Package repository implements the read path. Every query resolves the
// session inside a fresh store view, filters to the session user's live rows
// and joins companions in batches.
package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	blobcore "pictor/internal/blob/core"
	"pictor/internal/bus"
	"pictor/internal/core"
	"pictor/internal/logging"
	"pictor/pkg/domain"
)

// source is shared by every repository of a Repositories set.
type source struct {
	store  domain.PersistentStore
	bus    *bus.Bus
	thumbs blobcore.Store
	log    logging.Logger
}

// joinFunc resolves companions of items in place against the open view.
type joinFunc[T any] func(ctx context.Context, v domain.TransactionView, items []T) error

// finishFunc runs after the view is released, for work that leaves the store.
type finishFunc[T any] func(ctx context.Context, items []T) error

// Repository is the generic query surface of one entity type.
type Repository[T domain.Entity] struct {
	src    *source
	kind   domain.EntityType
	table  func(domain.TransactionView) domain.TableView[T]
	order  func(a, b T) int
	join   joinFunc[T]
	finish finishFunc[T]
}

func newRepository[T domain.Entity](src *source, kind domain.EntityType, table func(domain.TransactionView) domain.TableView[T], order func(a, b T) int) *Repository[T] {
	return &Repository[T]{src: src, kind: kind, table: table, order: order}
}

// Kind returns the entity type served by the repository.
func (r *Repository[T]) Kind() domain.EntityType { return r.kind }

// Get returns the live row with uuid, or domain.ErrNotFound.
func (r *Repository[T]) Get(ctx context.Context, sess domain.SessionContext, uuid string) (T, error) {
	var zero T
	items, err := r.find(ctx, sess, func(item T) bool { return item.Sync().UUID == uuid }, nil)
	if err != nil {
		return zero, err
	}
	if len(items) == 0 {
		return zero, fmt.Errorf("%s %s: %w", r.kind, uuid, domain.ErrNotFound)
	}
	return items[0], nil
}

// GetByUUIDs returns the live rows among uuids in the repository order.
// Unknown uuids are ignored.
func (r *Repository[T]) GetByUUIDs(ctx context.Context, sess domain.SessionContext, uuids []string) ([]T, error) {
	if len(uuids) == 0 {
		return nil, r.check(ctx, sess)
	}
	return r.find(ctx, sess, inSet[T](uuids), nil)
}

// GetAll returns every live row of the session user.
func (r *Repository[T]) GetAll(ctx context.Context, sess domain.SessionContext) ([]T, error) {
	return r.find(ctx, sess, nil, nil)
}

// Page returns at most count rows starting at from. A negative from reads
// from the start and count is at least one.
func (r *Repository[T]) Page(ctx context.Context, sess domain.SessionContext, from, count int) ([]T, error) {
	return r.find(ctx, sess, nil, window[T](from, count))
}

// Count returns the number of live rows of the session user.
func (r *Repository[T]) Count(ctx context.Context, sess domain.SessionContext) (int, error) {
	return r.count(ctx, sess, nil)
}

// GetIncludingDeleted returns the session user's row even when tombstoned.
func (r *Repository[T]) GetIncludingDeleted(ctx context.Context, sess domain.SessionContext, uuid string) (T, error) {
	var (
		out   T
		found bool
	)
	err := r.view(ctx, sess, func(v domain.TransactionView, user string) error {
		item, ok := r.table(v).Get(uuid)
		if ok && item.Sync().UserUUID == user {
			out, found = item, true
		}
		return nil
	})
	if err != nil {
		return out, err
	}
	if !found {
		return out, fmt.Errorf("%s %s: %w", r.kind, uuid, domain.ErrNotFound)
	}
	return out, nil
}

// AllIncludingDeleted returns every row owned by userUUID, tombstones
// included. An empty userUUID returns the rows of every user.
func (r *Repository[T]) AllIncludingDeleted(ctx context.Context, sess domain.SessionContext, userUUID string) ([]T, error) {
	var out []T
	err := r.view(ctx, sess, func(v domain.TransactionView, _ string) error {
		out = r.table(v).Filter(func(item T) bool {
			return userUUID == "" || item.Sync().UserUUID == userUUID
		})
		return nil
	})
	return out, err
}

// PendingSync returns the session user's rows the synchronizer has to push:
// not synced yet, or updated after since. Tombstones are included.
func (r *Repository[T]) PendingSync(ctx context.Context, sess domain.SessionContext, since time.Time) ([]T, error) {
	var out []T
	err := r.view(ctx, sess, func(v domain.TransactionView, user string) error {
		out = r.table(v).Filter(func(item T) bool {
			s := item.Sync()
			return s.UserUUID == user && s.NeedsSync(since)
		})
		return nil
	})
	return out, err
}

// find runs a filtered, ordered and joined query.
func (r *Repository[T]) find(ctx context.Context, sess domain.SessionContext, match func(T) bool, limit func([]T) []T) ([]T, error) {
	return r.findOrdered(ctx, sess, match, r.order, limit)
}

func (r *Repository[T]) findOrdered(ctx context.Context, sess domain.SessionContext, match func(T) bool, order func(a, b T) int, limit func([]T) []T) ([]T, error) {
	var out []T
	err := r.view(ctx, sess, func(v domain.TransactionView, user string) error {
		out = r.table(v).Filter(visible(user, match))
		if order != nil {
			slices.SortStableFunc(out, order)
		}
		if limit != nil {
			out = limit(out)
		}
		if r.join != nil && len(out) > 0 {
			return r.join(ctx, v, out)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if r.finish != nil && len(out) > 0 {
		if err := r.finish(ctx, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Repository[T]) count(ctx context.Context, sess domain.SessionContext, match func(T) bool) (int, error) {
	var n int
	err := r.view(ctx, sess, func(v domain.TransactionView, user string) error {
		n = r.table(v).Count(visible(user, match))
		return nil
	})
	return n, err
}

func (r *Repository[T]) check(ctx context.Context, sess domain.SessionContext) error {
	return r.view(ctx, sess, func(domain.TransactionView, string) error { return nil })
}

// view opens a read view and resolves the session in it.
func (r *Repository[T]) view(ctx context.Context, sess domain.SessionContext, fn func(v domain.TransactionView, user string) error) error {
	err := r.src.store.View(ctx, func(v domain.TransactionView) error {
		user, err := core.SessionUser(v, sess)
		if err != nil {
			return err
		}
		return fn(v, user)
	})
	if err != nil && !errors.Is(err, domain.ErrNoActiveSession) {
		r.src.log.Error(ctx, "repository query failed", "entity", r.kind, "error", err)
		return fmt.Errorf("%s query: %w", r.kind, err)
	}
	return err
}

func visible[T domain.Entity](user string, match func(T) bool) func(T) bool {
	return func(item T) bool {
		return item.Sync().VisibleTo(user) && (match == nil || match(item))
	}
}

func inSet[T domain.Entity](uuids []string) func(T) bool {
	set := stringSet(uuids)
	return func(item T) bool {
		_, ok := set[item.Sync().UUID]
		return ok
	}
}

func stringSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func window[T any](from, count int) func([]T) []T {
	from = max(from, 0)
	count = max(count, 1)
	return func(items []T) []T {
		if from >= len(items) {
			return nil
		}
		return items[from:min(from+count, len(items))]
	}
}

func newestFirst(a, b time.Time) int { return b.Compare(a) }

// newestFirstPtr sorts nil dates last.
func newestFirstPtr(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return b.Compare(*a)
}

func descending(a, b string) int { return strings.Compare(b, a) }
