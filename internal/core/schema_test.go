package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaFor_Attributes(t *testing.T) {
	s := widgetSchema

	assert.Equal(t, "widgets", s.Table)
	assert.Equal(t, []string{"id", "name", "note", "count", "price", "active", "created_on"}, s.Columns())
	assert.Equal(t, "id", s.PrimaryKey().Column)

	key, ok := s.Key()
	require.True(t, ok)
	assert.Equal(t, "name", key.Column)

	var writable []string
	for _, a := range s.Writable() {
		writable = append(writable, a.Column)
	}
	assert.Equal(t, []string{"name", "note", "count", "price", "active"}, writable)

	note, ok := s.Lookup("Note")
	require.True(t, ok)
	assert.True(t, note.Nullable)
	assert.Equal(t, KindString, note.Kind)
}

func TestSchemaFor_Malformed(t *testing.T) {
	type noPK struct {
		Name string `db:"name"`
	}
	type pointerPK struct {
		ID *int64 `db:"id" pk:"true"`
	}
	type intKey struct {
		ID   int64 `db:"id" pk:"true"`
		Code int64 `db:"code" unique:"true"`
	}
	type unsupported struct {
		ID   int64    `db:"id" pk:"true"`
		Tags []string `db:"tags"`
	}

	assert.Panics(t, func() { SchemaFor[noPK]("t") })
	assert.Panics(t, func() { SchemaFor[pointerPK]("t") })
	assert.Panics(t, func() { SchemaFor[intKey]("t") })
	assert.Panics(t, func() { SchemaFor[unsupported]("t") })
}

func TestSchema_Resolve(t *testing.T) {
	tests := []struct {
		column string
		want   string
		ok     bool
	}{
		{"name", "name", true},
		{"NAME", "name", true},
		{"Note", "note", true},
		{" note ", "note", true},
		{"count", "", false},
		{"active", "", false},
		{"created_on", "", false},
		{"missing", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			attr, ok := widgetSchema.Resolve(tt.column)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, attr.Column)
		})
	}
	assert.Equal(t, []string{"name", "note"}, widgetSchema.Filterable())
}

func TestAttribute_ValueAndSet(t *testing.T) {
	w := &widget{}
	note, _ := widgetSchema.Lookup("note")
	count, _ := widgetSchema.Lookup("count")

	assert.Nil(t, note.Value(w))
	note.Set(w, "hello")
	require.NotNil(t, w.Note)
	assert.Equal(t, "hello", *w.Note)
	assert.Equal(t, "hello", note.Value(w))

	note.Set(w, nil)
	assert.Nil(t, w.Note)

	count.Set(w, int64(7))
	assert.Equal(t, int64(7), w.Count)

	widgetSchema.SetID(w, 42)
	assert.Equal(t, int64(42), widgetSchema.ID(w))
}

func TestAttribute_Coerce(t *testing.T) {
	lookup := func(col string) Attribute {
		a, ok := widgetSchema.Lookup(col)
		require.True(t, ok, col)
		return a
	}

	tests := []struct {
		name    string
		column  string
		in      any
		want    any
		wantErr bool
	}{
		{"int from float", "count", float64(3), int64(3), false},
		{"int from fractional float", "count", 3.5, nil, true},
		{"int from string with separator", "count", "1,200", int64(1200), false},
		{"int from garbage", "count", "abc", nil, true},
		{"float from int", "price", 2, float64(2), false},
		{"float from string", "price", "9.99", 9.99, false},
		{"bool from yes", "active", "yes", true, false},
		{"bool from garbage", "active", "maybe", nil, true},
		{"string", "name", "x", "x", false},
		{"string from number", "name", 5.0, nil, true},
		{"nullable nil", "note", nil, nil, false},
		{"required nil", "count", nil, nil, true},
		{"time from date", "created_on", "2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := lookup(tt.column).Coerce(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseIDs(t *testing.T) {
	ids, err := ParseIDs("1, 2,,3 ")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)

	_, err = ParseIDs("1,x")
	assert.Error(t, err)
}
