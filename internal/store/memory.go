package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/bookshelf/internal/core"
)

// MemoryTable is a core.Store held in process. Filters are evaluated with
// Filter.Match. Keys are unique after core.DefaultNormalize, like the
// unique index on the PostgreSQL tables. Records are copied in and out.
type MemoryTable[T any] struct {
	schema *core.Schema
	now    func() time.Time

	mu     sync.RWMutex
	rows   []*T // ascending id
	nextID int64
}

// NewMemoryTable creates an empty in-memory store for schema.
func NewMemoryTable[T any](schema *core.Schema) *MemoryTable[T] {
	return &MemoryTable[T]{schema: schema, now: time.Now, nextID: 1}
}

func clone[T any](rec *T) *T {
	cp := *rec
	return &cp
}

func (m *MemoryTable[T]) Find(ctx context.Context, f core.Filter[T]) ([]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*T{}
	for _, r := range m.rows {
		if f.Match(r) {
			out = append(out, clone(r))
		}
	}
	return out, nil
}

func (m *MemoryTable[T]) FindByIDs(ctx context.Context, ids []int64) ([]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*T{}
	for _, r := range m.rows {
		if want[m.schema.ID(r)] {
			out = append(out, clone(r))
		}
	}
	return out, nil
}

func (m *MemoryTable[T]) indexOfKey(attr core.Attribute, value string) int {
	want := core.DefaultNormalize(value)
	for i, r := range m.rows {
		if v, ok := attr.StringValue(r); ok && core.DefaultNormalize(v) == want {
			return i
		}
	}
	return -1
}

func (m *MemoryTable[T]) FindByKey(ctx context.Context, attr core.Attribute, value string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if i := m.indexOfKey(attr, value); i >= 0 {
		return clone(m.rows[i]), nil
	}
	return nil, nil
}

func (m *MemoryTable[T]) ExistingKeys(ctx context.Context, attr core.Attribute, values []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := core.NewKeySet(nil, values...)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []string
	for _, r := range m.rows {
		if v, ok := attr.StringValue(r); ok && want.Has(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

// BulkInsert is all-or-nothing: a key collision inserts nothing.
func (m *MemoryTable[T]) BulkInsert(ctx context.Context, recs []*T) ([]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if keyAttr, ok := m.schema.Key(); ok {
		keys := m.keySet(keyAttr)
		for _, rec := range recs {
			k, _ := keyAttr.StringValue(rec)
			if keys.Has(k) {
				return nil, duplicateKey(keyAttr, k)
			}
			keys.Add(k)
		}
	}

	saved := make([]*T, len(recs))
	for i, rec := range recs {
		cp := clone(rec)
		m.schema.SetID(cp, m.nextID)
		m.nextID++
		m.fillGenerated(cp)
		m.rows = append(m.rows, cp)
		saved[i] = clone(cp)
	}
	return saved, nil
}

// fillGenerated stamps read-only timestamp columns, which PostgreSQL
// fills from column defaults.
func (m *MemoryTable[T]) fillGenerated(rec *T) {
	for _, a := range m.schema.Attributes {
		if a.ReadOnly && a.Kind == core.KindTime && !a.Nullable {
			a.Set(rec, m.now().UTC())
		}
	}
}

// keySet collects the keys of all stored rows.
func (m *MemoryTable[T]) keySet(attr core.Attribute) *core.KeySet {
	ks := core.NewKeySet(nil)
	for _, r := range m.rows {
		if v, ok := attr.StringValue(r); ok {
			ks.Add(v)
		}
	}
	return ks
}

func duplicateKey(attr core.Attribute, value string) error {
	return &core.Error{
		Kind:    core.KindDuplicateInStore,
		Message: "A record with " + attr.Column + " '" + value + "' already exists in database.",
	}
}

func (m *MemoryTable[T]) ExistingIDs(ctx context.Context, r core.IDRange) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []int64
	for _, row := range m.rows {
		if id := m.schema.ID(row); id >= r.From && id <= r.To {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *MemoryTable[T]) deleteWhere(ctx context.Context, match func(rec *T) bool) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.rows[:0]
	var n int64
	for _, r := range m.rows {
		if match(r) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	for i := len(kept); i < len(m.rows); i++ {
		m.rows[i] = nil
	}
	m.rows = kept
	return n, nil
}

func (m *MemoryTable[T]) DeleteRange(ctx context.Context, r core.IDRange) (int64, error) {
	return m.deleteWhere(ctx, func(rec *T) bool {
		id := m.schema.ID(rec)
		return id >= r.From && id <= r.To
	})
}

func (m *MemoryTable[T]) DeleteByID(ctx context.Context, id int64) (int64, error) {
	return m.deleteWhere(ctx, func(rec *T) bool { return m.schema.ID(rec) == id })
}

func (m *MemoryTable[T]) DeleteByKey(ctx context.Context, attr core.Attribute, value string) (int64, error) {
	want := core.DefaultNormalize(value)
	return m.deleteWhere(ctx, func(rec *T) bool {
		v, ok := attr.StringValue(rec)
		return ok && core.DefaultNormalize(v) == want
	})
}

// updateWhere applies mutate to copies of the matching rows and commits
// them only if no key collides afterwards.
func (m *MemoryTable[T]) updateWhere(ctx context.Context, match func(rec *T) bool, mutate func(rec *T) error) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	next := make([]*T, len(m.rows))
	var n int64
	for i, r := range m.rows {
		if !match(r) {
			next[i] = r
			continue
		}
		cp := clone(r)
		if err := mutate(cp); err != nil {
			return 0, err
		}
		next[i] = cp
		n++
	}

	if keyAttr, ok := m.schema.Key(); ok && n > 0 {
		keys := core.NewKeySet(nil)
		for _, r := range next {
			k, _ := keyAttr.StringValue(r)
			if keys.Has(k) {
				return 0, duplicateKey(keyAttr, k)
			}
			keys.Add(k)
		}
	}

	m.rows = next
	return n, nil
}

func (m *MemoryTable[T]) UpdateRange(ctx context.Context, r core.IDRange, set []core.Assignment) (int64, error) {
	return m.updateWhere(ctx,
		func(rec *T) bool {
			id := m.schema.ID(rec)
			return id >= r.From && id <= r.To
		},
		func(rec *T) error { return core.ApplyAssignments(rec, set) },
	)
}

func (m *MemoryTable[T]) UpdateByID(ctx context.Context, id int64, set []core.Assignment) (int64, error) {
	return m.updateWhere(ctx,
		func(rec *T) bool { return m.schema.ID(rec) == id },
		func(rec *T) error { return core.ApplyAssignments(rec, set) },
	)
}

// UpdateByKey copies the writable attributes of src onto the matching row.
func (m *MemoryTable[T]) UpdateByKey(ctx context.Context, attr core.Attribute, value string, src *T) (int64, error) {
	want := core.DefaultNormalize(value)
	return m.updateWhere(ctx,
		func(rec *T) bool {
			v, ok := attr.StringValue(rec)
			return ok && core.DefaultNormalize(v) == want
		},
		func(rec *T) error {
			for _, a := range m.schema.Writable() {
				a.Set(rec, a.Value(src))
			}
			return nil
		},
	)
}

// Len returns the number of stored records.
func (m *MemoryTable[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows)
}

// IDs returns all stored ids in ascending order.
func (m *MemoryTable[T]) IDs() []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]int64, len(m.rows))
	for i, r := range m.rows {
		ids[i] = m.schema.ID(r)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
