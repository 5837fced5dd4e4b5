package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Store is the persistence collaborator of a Service. Implementations must
// translate driver faults into *Error values (KindDuplicateInStore for
// unique violations, KindStoreFailure otherwise).
type Store[T any] interface {
	// Find returns the records matching f ordered by id. Implementations
	// should push f down when they can.
	Find(ctx context.Context, f Filter[T]) ([]*T, error)
	FindByIDs(ctx context.Context, ids []int64) ([]*T, error)
	// FindByKey returns nil, nil when no record has the key.
	FindByKey(ctx context.Context, attr Attribute, value string) (*T, error)

	// ExistingKeys returns the subset of values already persisted for attr,
	// compared after DefaultNormalize.
	ExistingKeys(ctx context.Context, attr Attribute, values []string) ([]string, error)
	// BulkInsert persists recs in one operation and returns them with
	// generated columns filled in.
	BulkInsert(ctx context.Context, recs []*T) ([]*T, error)

	ExistingIDs(ctx context.Context, r IDRange) ([]int64, error)
	DeleteRange(ctx context.Context, r IDRange) (int64, error)
	UpdateRange(ctx context.Context, r IDRange, set []Assignment) (int64, error)
	DeleteByID(ctx context.Context, id int64) (int64, error)
	UpdateByID(ctx context.Context, id int64, set []Assignment) (int64, error)

	UpdateByKey(ctx context.Context, attr Attribute, value string, rec *T) (int64, error)
	DeleteByKey(ctx context.Context, attr Attribute, value string) (int64, error)
}

// AssignOp is the kind of change an Assignment makes.
type AssignOp string

const (
	OpSet    AssignOp = "set"
	OpAdd    AssignOp = "add"
	OpPrefix AssignOp = "prefix"
)

// Assignment is one column change in a bulk update.
type Assignment struct {
	Column string   `json:"column"`
	Op     AssignOp `json:"op"`
	Value  any      `json:"value"`

	attr Attribute
}

// Attribute returns the resolved attribute of a validated assignment.
func (a Assignment) Attribute() Attribute { return a.attr }

// PrepareAssignments resolves and coerces assignments against schema.
// Unknown or read-only columns and ops that do not fit the column kind are
// rejected with KindInvalidMutation.
func PrepareAssignments(schema *Schema, set []Assignment) ([]Assignment, error) {
	if len(set) == 0 {
		return nil, newError(KindInvalidMutation, "No changes provided.")
	}

	out := make([]Assignment, len(set))
	for i, a := range set {
		attr, ok := schema.Lookup(a.Column)
		if !ok {
			return nil, newError(KindInvalidMutation, "Unknown column %q.", a.Column)
		}
		if !attr.Writable() {
			return nil, newError(KindInvalidMutation, "Column %q cannot be modified.", attr.Column)
		}

		op := a.Op
		if op == "" {
			op = OpSet
		}
		switch op {
		case OpSet:
			if a.Value == nil && attr.Required {
				return nil, newError(KindInvalidMutation, "Column %q is required.", attr.Column)
			}
		case OpAdd:
			if !attr.IsNumeric() {
				return nil, newError(KindInvalidMutation, "Column %q is not numeric.", attr.Column)
			}
		case OpPrefix:
			if attr.Kind != KindString {
				return nil, newError(KindInvalidMutation, "Column %q is not text.", attr.Column)
			}
		default:
			return nil, newError(KindInvalidMutation, "Unknown operation %q.", a.Op)
		}
		if op != OpSet && a.Value == nil {
			return nil, newError(KindInvalidMutation, "Operation %q on %q requires a value.", op, attr.Column)
		}

		v, err := attr.Coerce(a.Value)
		if err != nil {
			return nil, &Error{Kind: KindInvalidMutation, Message: err.Error(), Err: err}
		}
		out[i] = Assignment{Column: attr.Column, Op: op, Value: v, attr: attr}
	}
	return out, nil
}

// RecordAssignments turns every writable attribute of rec into a set
// assignment, for whole-record updates.
func RecordAssignments(schema *Schema, rec any) []Assignment {
	attrs := schema.Writable()
	set := make([]Assignment, len(attrs))
	for i, a := range attrs {
		set[i] = Assignment{Column: a.Column, Op: OpSet, Value: a.Value(rec)}
	}
	return set
}

// ApplyAssignments mutates rec in process. Assignments must be prepared.
func ApplyAssignments(rec any, set []Assignment) error {
	for _, a := range set {
		switch a.Op {
		case OpSet:
			a.attr.Set(rec, a.Value)
		case OpAdd:
			cur := a.attr.Value(rec)
			if cur == nil {
				continue
			}
			switch a.attr.Kind {
			case KindInt:
				a.attr.Set(rec, toInt64(cur)+a.Value.(int64))
			case KindFloat:
				a.attr.Set(rec, toFloat64(cur)+a.Value.(float64))
			}
		case OpPrefix:
			cur, ok := a.attr.StringValue(rec)
			if !ok {
				continue
			}
			a.attr.Set(rec, a.Value.(string)+cur)
		default:
			return fmt.Errorf("unknown assignment op %q", a.Op)
		}
	}
	return nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	}
	return 0
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float32:
		return float64(n)
	case float64:
		return n
	}
	return 0
}
