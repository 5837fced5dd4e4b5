package core

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

type widget struct {
	ID      int64     `db:"id" pk:"true"`
	Name    string    `db:"name" required:"true" unique:"true"`
	Note    *string   `db:"note"`
	Count   int64     `db:"count"`
	Price   float64   `db:"price"`
	Active  bool      `db:"active"`
	Created time.Time `db:"created_on" readonly:"true"`
}

var (
	widgetSchema = SchemaFor[widget]("widgets")
	widgetLabels = Labels{Singular: "widget", Plural: "widgets"}
	widgetDef    = Definition[widget]{
		Info: EntityInfo{Key: "widgets", Labels: widgetLabels, Schema: widgetSchema},
		Rules: []Rule[widget]{func(w *widget) error {
			if w.Count < 0 {
				return &FieldError{Field: "count", Value: "negative", Message: "Count cannot be negative."}
			}
			return nil
		}},
	}
)

func strPtr(s string) *string { return &s }

func named(names ...string) []*widget {
	out := make([]*widget, len(names))
	for i, n := range names {
		out[i] = &widget{Name: n}
	}
	return out
}

// fakeStore is an in-package Store[widget] that counts calls and can be
// told to fail.
type fakeStore struct {
	mu     sync.Mutex
	rows   map[int64]*widget
	nextID int64
	calls  map[string]int

	insertErr error
	keysErr   error
	inserted  [][]*widget
}

func newFakeStore(rows ...*widget) *fakeStore {
	fs := &fakeStore{rows: map[int64]*widget{}, nextID: 1, calls: map[string]int{}}
	for _, r := range rows {
		cp := *r
		if cp.ID == 0 {
			cp.ID = fs.nextID
		}
		if cp.ID >= fs.nextID {
			fs.nextID = cp.ID + 1
		}
		fs.rows[cp.ID] = &cp
	}
	return fs
}

func (fs *fakeStore) count(op string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.calls[op]
}

func (fs *fakeStore) mutations() int {
	return fs.count("BulkInsert") + fs.count("DeleteRange") + fs.count("UpdateRange") +
		fs.count("DeleteByID") + fs.count("UpdateByID")
}

func (fs *fakeStore) record(op string) {
	fs.mu.Lock()
	fs.calls[op]++
	fs.mu.Unlock()
}

func (fs *fakeStore) sorted() []*widget {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	out := make([]*widget, 0, len(fs.rows))
	for _, r := range fs.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (fs *fakeStore) Find(ctx context.Context, f Filter[widget]) ([]*widget, error) {
	fs.record("Find")
	return f.Apply(fs.sorted()), nil
}

func (fs *fakeStore) FindByIDs(ctx context.Context, ids []int64) ([]*widget, error) {
	fs.record("FindByIDs")
	var out []*widget
	for _, r := range fs.sorted() {
		for _, id := range ids {
			if r.ID == id {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (fs *fakeStore) FindByKey(ctx context.Context, attr Attribute, value string) (*widget, error) {
	fs.record("FindByKey")
	for _, r := range fs.sorted() {
		if DefaultNormalize(r.Name) == DefaultNormalize(value) {
			return r, nil
		}
	}
	return nil, nil
}

func (fs *fakeStore) ExistingKeys(ctx context.Context, attr Attribute, values []string) ([]string, error) {
	fs.record("ExistingKeys")
	if fs.keysErr != nil {
		return nil, fs.keysErr
	}
	want := NewKeySet(nil, values...)
	var out []string
	for _, r := range fs.sorted() {
		if want.Has(r.Name) {
			out = append(out, r.Name)
		}
	}
	return out, nil
}

func (fs *fakeStore) BulkInsert(ctx context.Context, recs []*widget) ([]*widget, error) {
	fs.record("BulkInsert")
	if fs.insertErr != nil {
		return nil, fs.insertErr
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.inserted = append(fs.inserted, recs)
	saved := make([]*widget, len(recs))
	for i, r := range recs {
		cp := *r
		cp.ID = fs.nextID
		fs.nextID++
		fs.rows[cp.ID] = &cp
		saved[i] = &cp
	}
	return saved, nil
}

func (fs *fakeStore) ExistingIDs(ctx context.Context, r IDRange) ([]int64, error) {
	fs.record("ExistingIDs")
	var ids []int64
	for _, row := range fs.sorted() {
		if row.ID >= r.From && row.ID <= r.To {
			ids = append(ids, row.ID)
		}
	}
	return ids, nil
}

func (fs *fakeStore) remove(match func(int64) bool) int64 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var n int64
	for id := range fs.rows {
		if match(id) {
			delete(fs.rows, id)
			n++
		}
	}
	return n
}

func (fs *fakeStore) apply(match func(int64) bool, set []Assignment) (int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var n int64
	for id, r := range fs.rows {
		if match(id) {
			if err := ApplyAssignments(r, set); err != nil {
				return 0, err
			}
			n++
		}
	}
	return n, nil
}

func (fs *fakeStore) DeleteRange(ctx context.Context, r IDRange) (int64, error) {
	fs.record("DeleteRange")
	return fs.remove(func(id int64) bool { return id >= r.From && id <= r.To }), nil
}

func (fs *fakeStore) DeleteByID(ctx context.Context, id int64) (int64, error) {
	fs.record("DeleteByID")
	return fs.remove(func(x int64) bool { return x == id }), nil
}

func (fs *fakeStore) UpdateRange(ctx context.Context, r IDRange, set []Assignment) (int64, error) {
	fs.record("UpdateRange")
	return fs.apply(func(id int64) bool { return id >= r.From && id <= r.To }, set)
}

func (fs *fakeStore) UpdateByID(ctx context.Context, id int64, set []Assignment) (int64, error) {
	fs.record("UpdateByID")
	return fs.apply(func(x int64) bool { return x == id }, set)
}

func (fs *fakeStore) UpdateByKey(ctx context.Context, attr Attribute, value string, rec *widget) (int64, error) {
	fs.record("UpdateByKey")
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for id, r := range fs.rows {
		if DefaultNormalize(r.Name) == DefaultNormalize(value) {
			cp := *rec
			cp.ID = id
			cp.Created = r.Created
			fs.rows[id] = &cp
			return 1, nil
		}
	}
	return 0, nil
}

func (fs *fakeStore) DeleteByKey(ctx context.Context, attr Attribute, value string) (int64, error) {
	fs.record("DeleteByKey")
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for id, r := range fs.rows {
		if DefaultNormalize(r.Name) == DefaultNormalize(value) {
			delete(fs.rows, id)
			return 1, nil
		}
	}
	return 0, nil
}

var errBoom = errors.New("connection reset by peer")
