package core

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DefaultMaxRangeSpan bounds the number of ids a single range call covers.
const DefaultMaxRangeSpan = 10000

// IDRange is an inclusive id interval.
type IDRange struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// Len returns the number of ids in the interval. It overflows for spans
// wider than math.MaxInt64; Validate rejects those when a span limit is set.
func (r IDRange) Len() int64 { return r.To - r.From + 1 }

// Single reports whether the range names exactly one id.
func (r IDRange) Single() bool { return r.From == r.To }

// Validate checks the bounds. maxSpan <= 0 disables the span limit.
func (r IDRange) Validate(maxSpan int64) error {
	if r.From <= 0 || r.To <= 0 || r.From > r.To {
		return newError(KindInvalidRange, "Invalid ID range %d to %d: both ids must be positive and from must not exceed to.", r.From, r.To)
	}
	if maxSpan > 0 && r.To-r.From >= maxSpan {
		return newError(KindInvalidRange, "ID range %d to %d exceeds the maximum span of %d.", r.From, r.To, maxSpan)
	}
	return nil
}

// RangeIntegrity splits an interval into present and absent ids.
type RangeIntegrity struct {
	Existing []int64 `json:"existingIds"`
	Missing  []int64 `json:"missingIds"`
}

// Complete reports whether every id in the interval exists.
func (ri RangeIntegrity) Complete() bool { return len(ri.Missing) == 0 }

// CheckRange computes which ids of r are absent from existing. Ids outside
// r are ignored. Both result lists are ascending.
func CheckRange(r IDRange, existing []int64) RangeIntegrity {
	present := make(map[int64]struct{}, len(existing))
	res := RangeIntegrity{Existing: []int64{}, Missing: []int64{}}
	for _, id := range existing {
		if id < r.From || id > r.To {
			continue
		}
		if _, dup := present[id]; dup {
			continue
		}
		present[id] = struct{}{}
		res.Existing = append(res.Existing, id)
	}
	sort.Slice(res.Existing, func(i, j int) bool { return res.Existing[i] < res.Existing[j] })

	if r.From > r.To {
		return res
	}
	// Stop on id == r.To rather than id > r.To: id++ wraps at math.MaxInt64.
	for id := r.From; ; id++ {
		if _, ok := present[id]; !ok {
			res.Missing = append(res.Missing, id)
		}
		if id == r.To {
			break
		}
	}
	return res
}

// RangeResult describes a completed range mutation.
type RangeResult struct {
	From          int64   `json:"from"`
	To            int64   `json:"to"`
	AffectedCount int64   `json:"affectedCount"`
	AffectedIDs   []int64 `json:"affectedIds"`
}

// RangeMutator deletes or updates a contiguous id range, but only when
// every id in the range exists.
type RangeMutator[T any] struct {
	store   Store[T]
	labels  Labels
	maxSpan int64
}

// NewRangeMutator creates a mutator over store. maxSpan <= 0 means
// DefaultMaxRangeSpan; the missing-id report is never unbounded.
func NewRangeMutator[T any](store Store[T], labels Labels, maxSpan int64) *RangeMutator[T] {
	if maxSpan <= 0 {
		maxSpan = DefaultMaxRangeSpan
	}
	return &RangeMutator[T]{store: store, labels: labels, maxSpan: maxSpan}
}

// Delete removes every record in r.
func (m *RangeMutator[T]) Delete(ctx context.Context, r IDRange) (*RangeResult, error) {
	return m.mutate(ctx, r, "delete",
		func() (int64, error) { return m.store.DeleteByID(ctx, r.From) },
		func() (int64, error) { return m.store.DeleteRange(ctx, r) },
	)
}

// Update applies set to every record in r. set must be prepared with
// PrepareAssignments.
func (m *RangeMutator[T]) Update(ctx context.Context, r IDRange, set []Assignment) (*RangeResult, error) {
	return m.mutate(ctx, r, "update",
		func() (int64, error) { return m.store.UpdateByID(ctx, r.From, set) },
		func() (int64, error) { return m.store.UpdateRange(ctx, r, set) },
	)
}

func (m *RangeMutator[T]) mutate(ctx context.Context, r IDRange, verb string, single, bulk func() (int64, error)) (*RangeResult, error) {
	if err := r.Validate(m.maxSpan); err != nil {
		return nil, err
	}

	if r.Single() {
		n, err := single()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, &Error{
				Kind:       KindRangeGap,
				Message:    fmt.Sprintf("%s with ID %d not found.", m.labels.Title(), r.From),
				MissingIDs: []int64{r.From},
			}
		}
		return &RangeResult{From: r.From, To: r.To, AffectedCount: n, AffectedIDs: []int64{r.From}}, nil
	}

	existing, err := m.store.ExistingIDs(ctx, r)
	if err != nil {
		return nil, err
	}

	integrity := CheckRange(r, existing)
	if len(integrity.Existing) == 0 {
		return nil, &Error{
			Kind:       KindRangeGap,
			Message:    fmt.Sprintf("No %s found in the specified ID range.", m.labels.Plural),
			MissingIDs: integrity.Missing,
		}
	}
	if !integrity.Complete() {
		return nil, &Error{
			Kind:       KindRangeGap,
			Message:    fmt.Sprintf("Cannot %s: missing %s IDs: %s", verb, m.labels.Singular, joinIDs(integrity.Missing)),
			MissingIDs: integrity.Missing,
		}
	}

	n, err := bulk()
	if err != nil {
		return nil, err
	}
	return &RangeResult{From: r.From, To: r.To, AffectedCount: n, AffectedIDs: integrity.Existing}, nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}
