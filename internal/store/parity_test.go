package store

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/bookshelf/internal/core"
	"github.com/JonMunkholm/bookshelf/internal/core/tables"
)

// TestStoreParity runs the same operations against PostgreSQL and the
// in-memory table. The PostgreSQL side runs in a transaction that is
// rolled back.
func TestStoreParity(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	require.NoError(t, Bootstrap(ctx, tx))
	_, err = tx.Exec(ctx, `TRUNCATE authors RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	schema := tables.Authors.Info.Schema
	attr, _ := schema.Key()
	stores := map[string]core.Store[tables.Author]{
		"postgres": NewTable[tables.Author](tx, schema),
		"memory":   NewMemoryTable[tables.Author](schema),
	}

	type result struct {
		names    []string
		keys     []string
		ids      []int64
		dupKind  core.Kind
		affected int64
	}
	results := map[string]result{}

	for name, s := range stores {
		var r result
		_, err := s.BulkInsert(ctx, threeAuthors())
		require.NoError(t, err, name)

		found, err := s.Find(ctx, core.NewFilter[tables.Author](schema, "name", "a_%"))
		require.NoError(t, err, name)
		for _, a := range found {
			r.names = append(r.names, a.Name)
		}
		found, err = s.Find(ctx, core.NewFilter[tables.Author](schema, "NAME", "al"))
		require.NoError(t, err, name)
		for _, a := range found {
			r.names = append(r.names, a.Name)
		}

		r.keys, err = s.ExistingKeys(ctx, attr, []string{" GRACE@example.com", "none@example.com"})
		require.NoError(t, err, name)

		r.affected, err = s.DeleteRange(ctx, core.IDRange{From: 2, To: 2})
		require.NoError(t, err, name)
		r.ids, err = s.ExistingIDs(ctx, core.IDRange{From: 1, To: 3})
		require.NoError(t, err, name)

		// Last: a failed statement aborts the PostgreSQL transaction.
		_, err = s.BulkInsert(ctx, []*tables.Author{{Name: "Dup", Email: "ADA@example.com"}})
		r.dupKind = core.KindOf(err)

		results[name] = r
	}

	assert.Equal(t, results["memory"], results["postgres"])
	assert.Equal(t, core.KindDuplicateInStore, results["memory"].dupKind)
}
