package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pictor/internal/bus"
	"pictor/pkg/domain"
)

// batch carries the state of one Create/Update/Delete call. Every item
// commits in its own transaction; events for an item are published right
// after its commit, batch-level signals in flush.
type batch struct {
	c      *Context
	ctx    context.Context
	op     string
	user   string
	mode   WriteMode
	local  bool
	now    time.Time
	report BatchReport

	marked    map[domain.EntityType][]string
	needsSync map[domain.EntityType]bool
	order     []domain.EntityType
}

func (c *Context) newBatch(ctx context.Context, op, user string, opts []WriteOption) *batch {
	var wo writeOptions
	for _, opt := range opts {
		opt(&wo)
	}
	return &batch{
		c:         c,
		ctx:       ctx,
		op:        op,
		user:      user,
		mode:      wo.mode,
		local:     wo.local,
		now:       c.now(),
		marked:    make(map[domain.EntityType][]string),
		needsSync: make(map[domain.EntityType]bool),
	}
}

// stamps reports whether the batch writes local and sync dates itself.
func (b *batch) stamps() bool { return b.mode == ModeDefault }

// flagSync records that kind has outgoing changes for the synchronizer.
func (b *batch) flagSync(kind domain.EntityType) {
	if !b.needsSync[kind] && len(b.marked[kind]) == 0 {
		b.order = append(b.order, kind)
	}
	b.needsSync[kind] = true
}

// commit runs fn in a transaction of its own. Failures are logged, counted
// and reported, and the item is skipped.
func (b *batch) commit(kind domain.EntityType, id string, fn func(tx domain.Transaction) error) bool {
	return b.commitWith(kind, id, fn, false)
}

func (b *batch) commitWith(kind domain.EntityType, id string, fn func(tx domain.Transaction) error, purge bool) bool {
	res, err := b.c.store.RunInTransaction(b.ctx, fn)
	if err != nil {
		if errors.Is(err, errUnknownRecord) {
			if b.op == "update" {
				b.c.log.Warn(b.ctx, "trying to update an unknown record", "entity", kind, "uuid", id)
			} else {
				b.c.log.Debug(b.ctx, "skipping unknown record", "op", b.op, "entity", kind, "uuid", id)
			}
			b.report.Skipped = append(b.report.Skipped, id)
			return false
		}
		b.fail(kind, id, err)
		return false
	}
	for _, v := range res.Violations {
		b.c.log.Warn(b.ctx, "rule violation", "rule", v.Rule, "severity", v.Severity, "entity", v.Entity, "uuid", v.EntityID, "message", v.Message)
	}
	b.report.Applied = append(b.report.Applied, id)
	b.published(res.Changes, purge)
	return true
}

func (b *batch) fail(kind domain.EntityType, id string, err error) {
	b.c.log.Error(b.ctx, "write failed", "op", b.op, "entity", kind, "uuid", id, "error", err)
	b.c.metrics.Observe(b.ctx, b.op+".item", false, 0)
	b.c.reporter.Report(b.ctx, fmt.Errorf("%s %s %s: %w", b.op, kind, id, err), map[string]string{
		"op":     b.op,
		"entity": string(kind),
		"mode":   b.mode.String(),
	})
	b.report.Skipped = append(b.report.Skipped, id)
}

type entityEvents struct {
	inserted, updated, deleted []string
}

// published turns committed changes into bus events and drops offloaded
// bytes of removed thumbnails. Tombstones are reported as deletions. A purge
// announces its removals itself as DeletedAll.
func (b *batch) published(changes []domain.Change, purge bool) {
	if len(changes) == 0 {
		return
	}
	var kinds []domain.EntityType
	grouped := make(map[domain.EntityType]*entityEvents)
	var blobKeys []string
	for _, ch := range changes {
		ev, ok := grouped[ch.Entity]
		if !ok {
			ev = &entityEvents{}
			grouped[ch.Entity] = ev
			kinds = append(kinds, ch.Entity)
		}
		switch {
		case ch.Action == domain.ActionCreate:
			ev.inserted = appendOnce(ev.inserted, ch.UUID)
		case ch.Action == domain.ActionDelete:
			if !purge {
				ev.deleted = appendOnce(ev.deleted, ch.UUID)
			}
			if th, ok := ch.Before.(domain.Thumbnail); ok && th.BlobKey != "" {
				blobKeys = append(blobKeys, th.BlobKey)
			}
		case ch.Tombstoned():
			ev.deleted = appendOnce(ev.deleted, ch.UUID)
			if !b.needsSync[ch.Entity] && len(b.marked[ch.Entity]) == 0 {
				b.order = append(b.order, ch.Entity)
			}
			b.marked[ch.Entity] = appendOnce(b.marked[ch.Entity], ch.UUID)
		default:
			ev.updated = appendOnce(ev.updated, ch.UUID)
		}
	}

	var events []bus.Event
	for _, kind := range kinds {
		ev := grouped[kind]
		if len(ev.inserted) > 0 {
			events = append(events, bus.Event{Entity: kind, Kind: bus.Inserted, UUIDs: ev.inserted})
		}
		if len(ev.updated) > 0 {
			events = append(events, bus.Event{Entity: kind, Kind: bus.Updated, UUIDs: ev.updated})
		}
		if len(ev.deleted) > 0 {
			events = append(events, bus.Event{Entity: kind, Kind: bus.Deleted, UUIDs: ev.deleted})
		}
		if len(ev.inserted)+len(ev.updated)+len(ev.deleted) > 0 {
			events = append(events, bus.Event{Entity: kind, Kind: bus.Changed})
		}
	}
	if len(events) > 0 {
		b.c.bus.Publish(events...)
	}

	for _, key := range blobKeys {
		b.dropBlob(key)
	}
}

func (b *batch) dropBlob(key string) {
	if b.c.thumbs == nil {
		return
	}
	if _, err := b.c.thumbs.Delete(b.ctx, key); err != nil {
		b.c.log.Error(b.ctx, "thumbnail blob removal failed", "key", key, "error", err)
		b.c.reporter.Report(b.ctx, fmt.Errorf("remove thumbnail blob %s: %w", key, err), map[string]string{"op": b.op})
	}
}

// flush publishes the batch-level signals: tombstoned uuids and the
// synchronizer wake-up, per entity in first-touched order.
func (b *batch) flush() {
	var events []bus.Event
	for _, kind := range b.order {
		if ids := b.marked[kind]; len(ids) > 0 {
			events = append(events, bus.Event{Entity: kind, Kind: bus.MarkedDeleted, UUIDs: ids})
			b.needsSync[kind] = true
		}
		if b.needsSync[kind] {
			events = append(events, bus.Event{Entity: kind, Kind: bus.NeedsSync})
		}
	}
	if len(events) > 0 {
		b.c.bus.Publish(events...)
	}
}

func appendOnce(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
