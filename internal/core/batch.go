package core

// batch.go implements multi-record ingestion.
//
// A batch moves through these phases:
//
//	initial -> validating -> (stopped_on_error | all_validated) -> persisting -> completed
//
// Candidates are validated strictly in the order supplied. Each one is
// checked for required fields and entity rules, then against the persisted
// keys, then against the keys accepted earlier in the same batch. The policy
// decides whether the first failure aborts the call and whether any failure
// blocks persistence. Accepted candidates are written with a single bulk
// insert.

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ContextCheckInterval is how often (in candidates) to check for cancellation.
var ContextCheckInterval = 100

// BatchPolicy controls failure handling for one batch call.
type BatchPolicy struct {
	StopOnFirstError        bool `json:"stopOnFirstError"`
	ValidateAllBeforeInsert bool `json:"validateAllBeforeInsert"`
}

// DefaultBatchPolicy collects every error and inserts nothing if any
// candidate fails.
func DefaultBatchPolicy() BatchPolicy {
	return BatchPolicy{StopOnFirstError: false, ValidateAllBeforeInsert: true}
}

// BatchPhase indicates the stage a batch reached.
type BatchPhase string

const (
	PhaseInitial        BatchPhase = "initial"
	PhaseValidating     BatchPhase = "validating"
	PhaseStoppedOnError BatchPhase = "stopped_on_error"
	PhaseAllValidated   BatchPhase = "all_validated"
	PhasePersisting     BatchPhase = "persisting"
	PhaseCompleted      BatchPhase = "completed"
)

// Rejection records why one candidate was not accepted.
type Rejection struct {
	Index   int    `json:"index"`
	Kind    Kind   `json:"kind"`
	Field   string `json:"field,omitempty"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

// Rule is an entity-specific structural check. A non-nil error rejects the
// candidate; a *Error keeps its own kind, anything else is KindInvalidField.
type Rule[T any] func(rec *T) error

// BatchOutcome is the result of one batch call.
type BatchOutcome[T any] struct {
	BatchID       uuid.UUID   `json:"batchId"`
	Phase         BatchPhase  `json:"phase"`
	Accepted      []*T        `json:"accepted"`
	Rejected      []string    `json:"rejected"`
	Rejections    []Rejection `json:"rejections"`
	TotalProvided int         `json:"totalProvided"`
	TotalAccepted int         `json:"totalAccepted"`
	TotalRejected int         `json:"totalRejected"`
}

// Success reports whether every candidate was accepted and persisted.
func (o *BatchOutcome[T]) Success() bool {
	return o.Phase == PhaseCompleted && len(o.Rejections) == 0
}

// Partial reports whether some but not all candidates were persisted.
func (o *BatchOutcome[T]) Partial() bool {
	return o.TotalAccepted > 0 && o.TotalRejected > 0
}

func (o *BatchOutcome[T]) reject(r Rejection) {
	o.Rejections = append(o.Rejections, r)
	o.Rejected = append(o.Rejected, r.Message)
	o.TotalRejected = len(o.Rejections)
}

// Labels names an entity in messages.
type Labels struct {
	Singular string // "book"
	Plural   string // "books"
}

// Title returns the singular label with its first letter upper-cased.
func (l Labels) Title() string {
	if l.Singular == "" {
		return ""
	}
	return strings.ToUpper(l.Singular[:1]) + l.Singular[1:]
}

// BatchValidator decides accept or reject for each candidate.
type BatchValidator[T any] struct {
	schema    *Schema
	labels    Labels
	rules     []Rule[T]
	normalize NormalizeFunc
}

// NewBatchValidator creates a validator for schema. normalize may be nil.
func NewBatchValidator[T any](schema *Schema, labels Labels, normalize NormalizeFunc, rules ...Rule[T]) *BatchValidator[T] {
	if normalize == nil {
		normalize = DefaultNormalize
	}
	return &BatchValidator[T]{schema: schema, labels: labels, rules: rules, normalize: normalize}
}

// Validation is the accept/reject split produced by Validate.
type Validation[T any] struct {
	Accepted   []*T
	Rejections []Rejection
	Stopped    bool
}

// Validate runs the per-candidate checks in order. persisted holds keys
// already in the store. Under StopOnFirstError it returns after the first
// rejection without looking at later candidates.
func (v *BatchValidator[T]) Validate(ctx context.Context, candidates []*T, persisted *KeySet, policy BatchPolicy) (Validation[T], error) {
	var out Validation[T]
	seen := NewKeySet(v.normalize)
	keyAttr, hasKey := v.schema.Key()

	for i, rec := range candidates {
		if i%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return Validation[T]{}, err
			}
		}

		rej, ok := v.check(i, rec)
		if ok && hasKey {
			key, _ := keyAttr.StringValue(rec)
			switch IsDuplicate(key, persisted, seen) {
			case DuplicateOfStore:
				rej, ok = Rejection{
					Index:   i,
					Kind:    KindDuplicateInStore,
					Field:   keyAttr.Column,
					Value:   key,
					Message: fmt.Sprintf("%s with %s '%s' already exists in database.", v.labels.Title(), keyAttr.Column, key),
				}, false
			case DuplicateOfBatch:
				rej, ok = Rejection{
					Index:   i,
					Kind:    KindDuplicateInBatch,
					Field:   keyAttr.Column,
					Value:   key,
					Message: fmt.Sprintf("Duplicate %s '%s' found in the provided list.", keyAttr.Column, key),
				}, false
			default:
				seen.Add(key)
			}
		}

		if ok {
			out.Accepted = append(out.Accepted, rec)
			continue
		}

		out.Rejections = append(out.Rejections, rej)
		if policy.StopOnFirstError {
			out.Accepted = nil
			out.Stopped = true
			return out, nil
		}
	}

	return out, nil
}

// check runs the structural checks: nil candidate, required attributes,
// then entity rules.
func (v *BatchValidator[T]) check(i int, rec *T) (Rejection, bool) {
	if rec == nil {
		return Rejection{
			Index:   i,
			Kind:    KindMissingRequiredField,
			Message: fmt.Sprintf("%s data cannot be null.", v.labels.Title()),
		}, false
	}

	for _, attr := range v.schema.Attributes {
		if !attr.Required || !attr.Writable() {
			continue
		}
		if attr.Value(rec) == nil {
			return v.missing(i, attr), false
		}
		if s, ok := attr.StringValue(rec); ok && strings.TrimSpace(s) == "" {
			return v.missing(i, attr), false
		}
	}

	for _, rule := range v.rules {
		err := rule(rec)
		if err == nil {
			continue
		}
		rej := Rejection{Index: i, Kind: KindInvalidField, Message: err.Error()}
		if ce, ok := err.(*Error); ok {
			rej.Kind = ce.Kind
		}
		if fe, ok := err.(*FieldError); ok {
			rej.Field = fe.Field
			rej.Value = fe.Value
		}
		return rej, false
	}

	return Rejection{}, true
}

func (v *BatchValidator[T]) missing(i int, attr Attribute) Rejection {
	return Rejection{
		Index:   i,
		Kind:    KindMissingRequiredField,
		Field:   attr.Column,
		Message: fmt.Sprintf("%s at position %d has an empty %s.", v.labels.Title(), i+1, attr.Column),
	}
}

// FieldError is returned by rules that reject a single field value.
type FieldError struct {
	Field   string
	Value   string
	Message string
}

func (e *FieldError) Error() string { return e.Message }

// Ingestor runs the whole batch workflow against a store.
type Ingestor[T any] struct {
	validator *BatchValidator[T]
	store     Store[T]
	schema    *Schema
}

// NewIngestor creates an ingestor that validates with v and persists to store.
func NewIngestor[T any](v *BatchValidator[T], store Store[T]) *Ingestor[T] {
	return &Ingestor[T]{validator: v, store: store, schema: v.schema}
}

// Ingest validates candidates under policy and bulk-inserts the accepted
// ones. An empty batch is a KindEmptyBatch error. Rejections never produce
// an error; they are reported in the outcome. Store faults and cancellation
// are returned as errors and nothing is persisted.
func (in *Ingestor[T]) Ingest(ctx context.Context, candidates []*T, policy BatchPolicy) (*BatchOutcome[T], error) {
	out := &BatchOutcome[T]{
		BatchID:       uuid.New(),
		Phase:         PhaseInitial,
		Accepted:      []*T{},
		Rejected:      []string{},
		Rejections:    []Rejection{},
		TotalProvided: len(candidates),
	}

	if len(candidates) == 0 {
		return out, newError(KindEmptyBatch, "No %s provided.", in.validator.labels.Plural)
	}

	persisted, err := in.persistedKeys(ctx, candidates)
	if err != nil {
		return out, err
	}

	out.Phase = PhaseValidating
	val, err := in.validator.Validate(ctx, candidates, persisted, policy)
	if err != nil {
		return out, err
	}
	for _, r := range val.Rejections {
		out.reject(r)
	}

	if val.Stopped {
		out.Phase = PhaseStoppedOnError
		return out, nil
	}
	out.Phase = PhaseAllValidated

	if policy.ValidateAllBeforeInsert && len(val.Rejections) > 0 {
		out.Phase = PhaseCompleted
		return out, nil
	}

	if len(val.Accepted) == 0 {
		out.Phase = PhaseCompleted
		return out, nil
	}

	if err := ctx.Err(); err != nil {
		return out, err
	}

	out.Phase = PhasePersisting
	saved, err := in.store.BulkInsert(ctx, val.Accepted)
	if err != nil {
		return out, err
	}

	out.Accepted = saved
	out.TotalAccepted = len(saved)
	out.Phase = PhaseCompleted
	return out, nil
}

// persistedKeys fetches, in one store call, which candidate keys exist.
func (in *Ingestor[T]) persistedKeys(ctx context.Context, candidates []*T) (*KeySet, error) {
	keyAttr, ok := in.schema.Key()
	if !ok {
		return NewKeySet(in.validator.normalize), nil
	}

	seen := NewKeySet(in.validator.normalize)
	var keys []string
	for _, rec := range candidates {
		if rec == nil {
			continue
		}
		k, ok := keyAttr.StringValue(rec)
		if !ok || strings.TrimSpace(k) == "" || seen.Has(k) {
			continue
		}
		seen.Add(k)
		keys = append(keys, k)
	}

	if len(keys) == 0 {
		return NewKeySet(in.validator.normalize), nil
	}

	existing, err := in.store.ExistingKeys(ctx, keyAttr, keys)
	if err != nil {
		return nil, err
	}
	return NewKeySet(in.validator.normalize, existing...), nil
}
