// Package store implements core.Store over PostgreSQL and in memory.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/bookshelf/internal/core"
)

// maxParams is the PostgreSQL limit on bind parameters per statement.
const maxParams = 65535

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Table is a core.Store backed by one PostgreSQL table. Filters are pushed
// down into the WHERE clause.
type Table[T any] struct {
	db     core.DBTX
	schema *core.Schema

	table   string
	columns string
	pk      string
}

// NewTable creates a store for schema over db (a pool or a transaction).
func NewTable[T any](db core.DBTX, schema *core.Schema) *Table[T] {
	return &Table[T]{
		db:      db,
		schema:  schema,
		table:   core.QuoteIdentifier(schema.Table),
		columns: strings.Join(quoteColumns(schema.Columns()), ", "),
		pk:      core.QuoteIdentifier(schema.PrimaryKey().Column),
	}
}

// keyExpr is the normalized form of a key column, matching core.DefaultNormalize.
func keyExpr(col string) string {
	return fmt.Sprintf("lower(btrim(%s))", core.QuoteIdentifier(col))
}

func (t *Table[T]) selectRows(ctx context.Context, op, where string, args ...any) ([]*T, error) {
	query := fmt.Sprintf("SELECT %s FROM %s", t.columns, t.table)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY " + t.pk

	rows, err := t.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(op, err)
	}
	recs, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[T])
	if err != nil {
		return nil, translate(op, err)
	}
	return recs, nil
}

func (t *Table[T]) Find(ctx context.Context, f core.Filter[T]) ([]*T, error) {
	where, args, _ := f.SQL(1)
	return t.selectRows(ctx, "find", where, args...)
}

func (t *Table[T]) FindByIDs(ctx context.Context, ids []int64) ([]*T, error) {
	if len(ids) == 0 {
		return []*T{}, nil
	}
	return t.selectRows(ctx, "find by ids", t.pk+" = ANY($1)", ids)
}

func (t *Table[T]) FindByKey(ctx context.Context, attr core.Attribute, value string) (*T, error) {
	recs, err := t.selectRows(ctx, "find by key",
		fmt.Sprintf("%s = $1", keyExpr(attr.Column)), core.DefaultNormalize(value))
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0], nil
}

func (t *Table[T]) ExistingKeys(ctx context.Context, attr core.Attribute, values []string) ([]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	normalized := make([]string, len(values))
	for i, v := range values {
		normalized[i] = core.DefaultNormalize(v)
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ANY($1)",
		core.QuoteIdentifier(attr.Column), t.table, keyExpr(attr.Column))
	rows, err := t.db.Query(ctx, query, normalized)
	if err != nil {
		return nil, translate("existing keys", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, translate("existing keys", err)
	}
	return keys, nil
}

// BulkInsert writes every record with one multi-row INSERT ... RETURNING.
func (t *Table[T]) BulkInsert(ctx context.Context, recs []*T) ([]*T, error) {
	if len(recs) == 0 {
		return []*T{}, nil
	}

	attrs := t.schema.Writable()
	if len(recs)*len(attrs) > maxParams {
		return nil, core.StoreError("bulk insert",
			fmt.Errorf("%d rows exceed the %d parameter limit", len(recs), maxParams))
	}

	cols := make([]string, len(attrs))
	for i, a := range attrs {
		cols[i] = core.QuoteIdentifier(a.Column)
	}

	args := make([]any, 0, len(recs)*len(attrs))
	tuples := make([]string, len(recs))
	for i, rec := range recs {
		ph := make([]string, len(attrs))
		for j, a := range attrs {
			args = append(args, a.Value(rec))
			ph[j] = fmt.Sprintf("$%d", len(args))
		}
		tuples[i] = "(" + strings.Join(ph, ", ") + ")"
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s RETURNING %s",
		t.table, strings.Join(cols, ", "), strings.Join(tuples, ", "), t.columns)

	rows, err := t.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translate("bulk insert", err)
	}
	saved, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[T])
	if err != nil {
		return nil, translate("bulk insert", err)
	}
	return saved, nil
}

func (t *Table[T]) ExistingIDs(ctx context.Context, r core.IDRange) ([]int64, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s BETWEEN $1 AND $2 ORDER BY %s",
		t.pk, t.table, t.pk, t.pk)
	rows, err := t.db.Query(ctx, query, r.From, r.To)
	if err != nil {
		return nil, translate("existing ids", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, translate("existing ids", err)
	}
	return ids, nil
}

func (t *Table[T]) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	tag, err := t.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, translate(op, err)
	}
	return tag.RowsAffected(), nil
}

func (t *Table[T]) DeleteRange(ctx context.Context, r core.IDRange) (int64, error) {
	return t.exec(ctx, "delete range",
		fmt.Sprintf("DELETE FROM %s WHERE %s BETWEEN $1 AND $2", t.table, t.pk), r.From, r.To)
}

func (t *Table[T]) DeleteByID(ctx context.Context, id int64) (int64, error) {
	return t.exec(ctx, "delete",
		fmt.Sprintf("DELETE FROM %s WHERE %s = $1", t.table, t.pk), id)
}

func (t *Table[T]) UpdateRange(ctx context.Context, r core.IDRange, set []core.Assignment) (int64, error) {
	clause, args, next := setClause(set, 1)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s BETWEEN $%d AND $%d",
		t.table, clause, t.pk, next, next+1)
	return t.exec(ctx, "update range", query, append(args, r.From, r.To)...)
}

func (t *Table[T]) UpdateByID(ctx context.Context, id int64, set []core.Assignment) (int64, error) {
	clause, args, next := setClause(set, 1)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d", t.table, clause, t.pk, next)
	return t.exec(ctx, "update", query, append(args, id)...)
}

func (t *Table[T]) UpdateByKey(ctx context.Context, attr core.Attribute, value string, rec *T) (int64, error) {
	attrs := t.schema.Writable()
	sets := make([]string, len(attrs))
	args := make([]any, 0, len(attrs)+1)
	for i, a := range attrs {
		args = append(args, a.Value(rec))
		sets[i] = fmt.Sprintf("%s = $%d", core.QuoteIdentifier(a.Column), len(args))
	}
	args = append(args, core.DefaultNormalize(value))

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		t.table, strings.Join(sets, ", "), keyExpr(attr.Column), len(args))
	return t.exec(ctx, "update by key", query, args...)
}

func (t *Table[T]) DeleteByKey(ctx context.Context, attr core.Attribute, value string) (int64, error) {
	return t.exec(ctx, "delete by key",
		fmt.Sprintf("DELETE FROM %s WHERE %s = $1", t.table, keyExpr(attr.Column)),
		core.DefaultNormalize(value))
}

// setClause renders prepared assignments starting at placeholder argIdx.
func setClause(set []core.Assignment, argIdx int) (string, []any, int) {
	parts := make([]string, len(set))
	args := make([]any, len(set))
	for i, a := range set {
		col := core.QuoteIdentifier(a.Column)
		switch a.Op {
		case core.OpAdd:
			parts[i] = fmt.Sprintf("%s = %s + $%d", col, col, argIdx)
		case core.OpPrefix:
			parts[i] = fmt.Sprintf("%s = $%d::text || %s", col, argIdx, col)
		default:
			parts[i] = fmt.Sprintf("%s = $%d", col, argIdx)
		}
		args[i] = a.Value
		argIdx++
	}
	return strings.Join(parts, ", "), args, argIdx
}

// translate classifies a driver error.
func translate(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return &core.Error{
			Kind:    core.KindDuplicateInStore,
			Message: "A record with this key already exists in database.",
			Err:     err,
		}
	}
	return core.StoreError(op, err)
}

func quoteColumns(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = core.QuoteIdentifier(c)
	}
	return out
}
