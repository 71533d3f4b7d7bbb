package memory

import (
	"fmt"
	"pictor/pkg/domain"
	"sort"

	"github.com/tiendc/go-deepcopy"
)

// table holds the committed rows of one entity type. Stored values are never
// mutated in place: writers clone the map and replace whole rows.
type table[T domain.Entity] struct {
	kind domain.EntityType
	rows map[string]T
}

func newTable[T domain.Entity]() *table[T] {
	var zero T
	return &table[T]{kind: zero.Kind(), rows: make(map[string]T)}
}

func (t *table[T]) clone() *table[T] {
	rows := make(map[string]T, len(t.rows))
	for k, v := range t.rows {
		rows[k] = v
	}
	return &table[T]{kind: t.kind, rows: rows}
}

// Get returns a private copy of the row.
func (t *table[T]) Get(uuid string) (T, bool) {
	v, ok := t.rows[uuid]
	if !ok {
		var zero T
		return zero, false
	}
	return cloneRecord(v), true
}

// Filter returns copies of the matching rows ordered by UUID.
func (t *table[T]) Filter(match func(T) bool) []T {
	keys := t.sortedKeys()
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		v := t.rows[k]
		if match == nil || match(v) {
			out = append(out, cloneRecord(v))
		}
	}
	return out
}

func (t *table[T]) Count(match func(T) bool) int {
	if match == nil {
		return len(t.rows)
	}
	n := 0
	for _, v := range t.rows {
		if match(v) {
			n++
		}
	}
	return n
}

func (t *table[T]) Len() int { return len(t.rows) }

func (t *table[T]) sortedKeys() []string {
	keys := make([]string, 0, len(t.rows))
	for k := range t.rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// txTable is the transactional handle on a table. The first write clones the
// committed table so concurrent readers keep seeing the previous version.
type txTable[T domain.Entity] struct {
	tx   *transaction
	slot **table[T]
}

func newTxTable[T domain.Entity](tx *transaction, slot **table[T]) domain.Table[T] {
	return &txTable[T]{tx: tx, slot: slot}
}

func (t *txTable[T]) Get(uuid string) (T, bool)     { return (*t.slot).Get(uuid) }
func (t *txTable[T]) Filter(match func(T) bool) []T { return (*t.slot).Filter(match) }
func (t *txTable[T]) Count(match func(T) bool) int  { return (*t.slot).Count(match) }
func (t *txTable[T]) Len() int                      { return (*t.slot).Len() }
func (t *txTable[T]) kind() domain.EntityType       { return (*t.slot).kind }

func (t *txTable[T]) exists(uuid string) (T, bool) {
	v, ok := (*t.slot).rows[uuid]
	return v, ok
}

func (t *txTable[T]) writable() *table[T] {
	kind := t.kind()
	if !t.tx.owned[kind] {
		*t.slot = (*t.slot).clone()
		t.tx.owned[kind] = true
	}
	return *t.slot
}

// Put inserts or replaces the row keyed by the record UUID.
func (t *txTable[T]) Put(record T) error {
	uuid := record.Sync().UUID
	if uuid == "" {
		return fmt.Errorf("%s: empty uuid", t.kind())
	}
	before, existed := t.exists(uuid)
	tbl := t.writable()
	stored := cloneRecord(record)
	tbl.rows[uuid] = stored

	change := Change{Entity: tbl.kind, Action: domain.ActionCreate, UUID: uuid, After: cloneRecord(stored)}
	if existed {
		change.Action = domain.ActionUpdate
		change.Before = cloneRecord(before)
	}
	t.tx.recordChange(change)
	return nil
}

// Delete removes the row and reports whether it existed.
func (t *txTable[T]) Delete(uuid string) bool {
	before, existed := t.exists(uuid)
	if !existed {
		return false
	}
	tbl := t.writable()
	delete(tbl.rows, uuid)
	t.tx.recordChange(Change{Entity: tbl.kind, Action: domain.ActionDelete, UUID: uuid, Before: cloneRecord(before)})
	return true
}

func cloneRecord[T any](v T) T {
	var out T
	if err := deepcopy.Copy(&out, &v); err != nil {
		panic(fmt.Errorf("memory store clone %T: %w", v, err))
	}
	return out
}
