package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/bookshelf/internal/core"
	"github.com/JonMunkholm/bookshelf/internal/core/tables"
)

func authorStore(t *testing.T, authors ...*tables.Author) *MemoryTable[tables.Author] {
	t.Helper()
	m := NewMemoryTable[tables.Author](tables.Authors.Info.Schema)
	if len(authors) > 0 {
		_, err := m.BulkInsert(context.Background(), authors)
		require.NoError(t, err)
	}
	return m
}

func emailAttr(t *testing.T) core.Attribute {
	t.Helper()
	attr, ok := tables.Authors.Info.Schema.Key()
	require.True(t, ok)
	return attr
}

func threeAuthors() []*tables.Author {
	return []*tables.Author{
		{Name: "Ada Lovelace", Email: "ada@example.com"},
		{Name: "Grace Hopper", Email: "grace@example.com"},
		{Name: "Alan Turing", Email: "alan@example.com"},
	}
}

func TestMemoryBulkInsertAssignsIDs(t *testing.T) {
	m := authorStore(t)

	saved, err := m.BulkInsert(context.Background(), threeAuthors())
	require.NoError(t, err)
	require.Len(t, saved, 3)
	for i, a := range saved {
		assert.Equal(t, int64(i+1), a.ID)
	}
	assert.Equal(t, []int64{1, 2, 3}, m.IDs())
}

func TestMemoryBulkInsertStampsCreatedOn(t *testing.T) {
	m := NewMemoryTable[tables.Book](tables.Books.Info.Schema)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	saved, err := m.BulkInsert(context.Background(), []*tables.Book{{Title: "Dune"}})
	require.NoError(t, err)
	assert.Equal(t, fixed, saved[0].CreatedOn)
}

func TestMemoryBulkInsertIsAllOrNothing(t *testing.T) {
	m := authorStore(t, threeAuthors()...)

	_, err := m.BulkInsert(context.Background(), []*tables.Author{
		{Name: "New", Email: "new@example.com"},
		{Name: "Again", Email: " ADA@example.com "},
	})
	require.Error(t, err)
	assert.Equal(t, core.KindDuplicateInStore, core.KindOf(err))
	assert.Equal(t, 3, m.Len())
}

func TestMemoryRecordsAreCopied(t *testing.T) {
	in := &tables.Author{Name: "Ada", Email: "ada@example.com"}
	m := authorStore(t, in)
	in.Name = "changed"

	got, err := m.FindByIDs(context.Background(), []int64{1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Ada", got[0].Name)

	got[0].Name = "changed again"
	again, _ := m.FindByIDs(context.Background(), []int64{1})
	assert.Equal(t, "Ada", again[0].Name)
}

func TestMemoryFind(t *testing.T) {
	m := authorStore(t, threeAuthors()...)
	schema := tables.Authors.Info.Schema

	tests := []struct {
		name    string
		column  string
		keyword string
		want    []string
	}{
		{"identity", "", "", []string{"Ada Lovelace", "Grace Hopper", "Alan Turing"}},
		{"case insensitive", "name", "AL", []string{"Alan Turing"}},
		{"substring", "name", "a", []string{"Ada Lovelace", "Grace Hopper", "Alan Turing"}},
		{"unknown column", "nope", "x", []string{"Ada Lovelace", "Grace Hopper", "Alan Turing"}},
		{"numeric column", "id", "1", []string{"Ada Lovelace", "Grace Hopper", "Alan Turing"}},
		{"no match", "email", "zzz", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Find(context.Background(), core.NewFilter[tables.Author](schema, tt.column, tt.keyword))
			require.NoError(t, err)
			names := []string{}
			for _, a := range got {
				names = append(names, a.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestMemoryKeyLookups(t *testing.T) {
	m := authorStore(t, threeAuthors()...)
	attr := emailAttr(t)
	ctx := context.Background()

	got, err := m.FindByKey(ctx, attr, "  GRACE@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.ID)

	missing, err := m.FindByKey(ctx, attr, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	keys, err := m.ExistingKeys(ctx, attr, []string{"ALAN@example.com", "x@example.com"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alan@example.com"}, keys)
}

func TestMemoryRanges(t *testing.T) {
	ctx := context.Background()
	m := authorStore(t, threeAuthors()...)

	ids, err := m.ExistingIDs(ctx, core.IDRange{From: 2, To: 10})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, ids)

	set, err := core.PrepareAssignments(tables.Authors.Info.Schema, []core.Assignment{
		{Column: "name", Op: core.OpPrefix, Value: "Dr. "},
	})
	require.NoError(t, err)
	n, err := m.UpdateRange(ctx, core.IDRange{From: 1, To: 2}, set)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	all, _ := m.Find(ctx, core.Filter[tables.Author]{})
	assert.Equal(t, "Dr. Ada Lovelace", all[0].Name)
	assert.Equal(t, "Dr. Grace Hopper", all[1].Name)
	assert.Equal(t, "Alan Turing", all[2].Name)

	n, err = m.DeleteRange(ctx, core.IDRange{From: 1, To: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, []int64{3}, m.IDs())

	n, err = m.DeleteByID(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Zero(t, m.Len())
}

func TestMemoryUpdateRangeAdd(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryTable[tables.Book](tables.Books.Info.Schema)
	_, err := m.BulkInsert(ctx, []*tables.Book{
		{Title: "A", NumberOfPages: 100},
		{Title: "B", NumberOfPages: 200},
	})
	require.NoError(t, err)

	set, err := core.PrepareAssignments(tables.Books.Info.Schema, []core.Assignment{
		{Column: "numberOfPages", Op: core.OpAdd, Value: float64(10)},
	})
	require.NoError(t, err)
	n, err := m.UpdateByID(ctx, 2, set)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, _ := m.FindByIDs(ctx, []int64{1, 2})
	assert.Equal(t, int64(100), got[0].NumberOfPages)
	assert.Equal(t, int64(210), got[1].NumberOfPages)
}

func TestMemoryUpdateByKey(t *testing.T) {
	ctx := context.Background()
	m := authorStore(t, threeAuthors()...)
	attr := emailAttr(t)

	n, err := m.UpdateByKey(ctx, attr, "grace@example.com",
		&tables.Author{Name: "Rear Admiral Hopper", Email: "hopper@example.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, _ := m.FindByIDs(ctx, []int64{2})
	assert.Equal(t, "Rear Admiral Hopper", got[0].Name)
	assert.Equal(t, int64(2), got[0].ID)

	_, err = m.UpdateByKey(ctx, attr, "hopper@example.com",
		&tables.Author{Name: "Clash", Email: "ADA@example.com"})
	require.Error(t, err)
	assert.Equal(t, core.KindDuplicateInStore, core.KindOf(err))

	unchanged, _ := m.FindByIDs(ctx, []int64{2})
	assert.Equal(t, "hopper@example.com", unchanged[0].Email)

	n, err = m.DeleteByKey(ctx, attr, "HOPPER@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, []int64{1, 3}, m.IDs())
}

func TestMemoryHonorsCancellation(t *testing.T) {
	m := authorStore(t, threeAuthors()...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Find(ctx, core.Filter[tables.Author]{})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = m.BulkInsert(ctx, []*tables.Author{{Name: "x", Email: "x@example.com"}})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = m.DeleteRange(ctx, core.IDRange{From: 1, To: 3})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, m.Len())
}
