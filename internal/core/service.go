package core

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/JonMunkholm/bookshelf/internal/logging"
)

// Options tunes a Service. Zero values fall back to package defaults.
type Options struct {
	Policy        BatchPolicy
	MaxBatchSize  int
	MaxConcurrent int
	MaxWait       time.Duration
	BatchTimeout  time.Duration
	MaxRangeSpan  int64
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		Policy:        DefaultBatchPolicy(),
		MaxBatchSize:  1000,
		MaxConcurrent: DefaultMaxConcurrentBatches,
		MaxWait:       DefaultMaxWaitTime,
		BatchTimeout:  2 * time.Minute,
		MaxRangeSpan:  DefaultMaxRangeSpan,
	}
}

// Service exposes the record operations of one entity type. Every method
// returns a Response envelope; failures are never returned as Go errors.
type Service[T any] struct {
	def       Definition[T]
	store     Store[T]
	validator *BatchValidator[T]
	ingestor  *Ingestor[T]
	ranges    *RangeMutator[T]
	limiter   *IngestLimiter
	opts      Options
}

// NewService wires the batch and range primitives for def over store.
func NewService[T any](def Definition[T], store Store[T], opts Options) *Service[T] {
	v := NewBatchValidator(def.Info.Schema, def.Info.Labels, def.Normalize, def.Rules...)
	return &Service[T]{
		def:       def,
		store:     store,
		validator: v,
		ingestor:  NewIngestor(v, store),
		ranges:    NewRangeMutator(store, def.Info.Labels, opts.MaxRangeSpan),
		limiter:   NewIngestLimiter(opts.MaxConcurrent, opts.MaxWait),
		opts:      opts,
	}
}

// Info returns the entity description.
func (s *Service[T]) Info() EntityInfo { return s.def.Info }

// DefaultPolicy returns the configured batch policy.
func (s *Service[T]) DefaultPolicy() BatchPolicy { return s.opts.Policy }

// Limiter returns the batch limiter, for shutdown draining and status.
func (s *Service[T]) Limiter() *IngestLimiter { return s.limiter }

func (s *Service[T]) labels() Labels { return s.def.Info.Labels }

// List returns the records whose column contains keyword. A blank or
// unusable column returns every record.
func (s *Service[T]) List(ctx context.Context, column, keyword string) Response {
	f := NewFilter[T](s.def.Info.Schema, column, keyword)
	recs, err := s.store.Find(ctx, f)
	if err != nil {
		return s.fail(ctx, "list", nil, err)
	}
	if recs == nil {
		recs = []*T{}
	}
	return Success(recs, fmt.Sprintf("%d %s found.", len(recs), s.labels().Plural))
}

// Get returns one record by id.
func (s *Service[T]) Get(ctx context.Context, id int64) Response {
	if id <= 0 {
		return Failure(nil, newError(KindInvalidRange, "Invalid %s ID %d.", s.labels().Singular, id))
	}
	recs, err := s.store.FindByIDs(ctx, []int64{id})
	if err != nil {
		return s.fail(ctx, "get", nil, err)
	}
	if len(recs) == 0 {
		return Failure(nil, newError(KindNotFound, "%s with ID %d not found.", s.labels().Title(), id))
	}
	return Success(recs[0], fmt.Sprintf("%s retrieved successfully.", s.labels().Title()))
}

// GetMany returns the records with the given ids. Ids that do not exist
// are left out of the payload.
func (s *Service[T]) GetMany(ctx context.Context, ids []int64) Response {
	if len(ids) == 0 {
		return Failure(nil, newError(KindInvalidRange, "No %s IDs provided.", s.labels().Singular))
	}
	recs, err := s.store.FindByIDs(ctx, ids)
	if err != nil {
		return s.fail(ctx, "get many", nil, err)
	}
	if len(recs) == 0 {
		return Failure([]*T{}, newError(KindNotFound, "No %s found for the provided IDs.", s.labels().Plural))
	}
	return Success(recs, fmt.Sprintf("%d of %d %s found.", len(recs), len(ids), s.labels().Plural))
}

// GetByKey returns the record whose dedupe key equals value, ignoring case.
func (s *Service[T]) GetByKey(ctx context.Context, value string) Response {
	attr, ok := s.def.Info.Schema.Key()
	if !ok {
		return Failure(nil, newError(KindNotFound, "%s has no lookup key.", s.labels().Title()))
	}
	rec, err := s.store.FindByKey(ctx, attr, value)
	if err != nil {
		return s.fail(ctx, "get by key", nil, err)
	}
	if rec == nil {
		return Failure(nil, newError(KindNotFound, "%s with %s '%s' not found.", s.labels().Title(), attr.Column, value))
	}
	return Success(rec, fmt.Sprintf("%s retrieved successfully.", s.labels().Title()))
}

// Create inserts a single record with the same checks a batch applies.
func (s *Service[T]) Create(ctx context.Context, rec *T) Response {
	out, err := s.ingest(ctx, []*T{rec}, BatchPolicy{StopOnFirstError: true, ValidateAllBeforeInsert: true})
	if err != nil {
		return s.fail(ctx, "create", nil, err)
	}
	if len(out.Rejections) > 0 {
		r := out.Rejections[0]
		return FailureMessage(nil, r.Message, r.Kind)
	}
	return Success(out.Accepted[0], fmt.Sprintf("%s added successfully.", s.labels().Title()))
}

// CreateBatch ingests recs under policy.
func (s *Service[T]) CreateBatch(ctx context.Context, recs []*T, policy BatchPolicy) Response {
	if s.opts.MaxBatchSize > 0 && len(recs) > s.opts.MaxBatchSize {
		return Failure(nil, newError(KindBatchTooLarge, "Batch of %d %s exceeds the maximum of %d.",
			len(recs), s.labels().Plural, s.opts.MaxBatchSize))
	}

	out, err := s.ingest(ctx, recs, policy)
	if err != nil {
		return s.fail(ctx, "batch", out, err)
	}
	return s.batchResponse(out, policy)
}

// Import decodes a CSV body and ingests it as one batch.
func (s *Service[T]) Import(ctx context.Context, r io.Reader, policy BatchPolicy) Response {
	recs, err := DecodeCSV[T](r, s.def.Info.Schema)
	if err != nil {
		return s.fail(ctx, "import", nil, InvalidInput(err))
	}
	return s.CreateBatch(ctx, recs, policy)
}

func (s *Service[T]) ingest(ctx context.Context, recs []*T, policy BatchPolicy) (*BatchOutcome[T], error) {
	if s.opts.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.BatchTimeout)
		defer cancel()
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	start := time.Now()
	out, err := s.ingestor.Ingest(ctx, recs, policy)
	if out != nil {
		logging.WithFields(ctx,
			"entity", s.def.Info.Key,
			"batch_id", out.BatchID,
		).Info("batch finished",
			"phase", out.Phase,
			"provided", out.TotalProvided,
			"accepted", out.TotalAccepted,
			"rejected", out.TotalRejected,
			"stop_on_first_error", policy.StopOnFirstError,
			"validate_all_before_insert", policy.ValidateAllBeforeInsert,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return out, err
}

func (s *Service[T]) batchResponse(out *BatchOutcome[T], policy BatchPolicy) Response {
	plural := s.labels().Plural

	if out.Success() {
		return Success(out, fmt.Sprintf("%d %s added successfully.", out.TotalAccepted, plural))
	}

	kind := KindInvalidField
	if len(out.Rejections) > 0 {
		kind = out.Rejections[0].Kind
	}

	switch {
	case out.Phase == PhaseStoppedOnError:
		return FailureMessage(out, out.Rejections[0].Message, kind)
	case policy.ValidateAllBeforeInsert:
		return FailureMessage(out, fmt.Sprintf("Validation failed for %d %s. No %s were added.",
			out.TotalRejected, plural, plural), kind)
	case out.TotalAccepted == 0:
		return FailureMessage(out, fmt.Sprintf("No valid %s to add. Errors: %s",
			plural, strings.Join(out.Rejected, "; ")), kind)
	default:
		return FailureMessage(out, fmt.Sprintf("%d %s added successfully. %d %s skipped due to errors.",
			out.TotalAccepted, plural, out.TotalRejected, plural), kind)
	}
}

// UpdateByKey replaces the writable fields of the record identified by
// value with those of rec.
func (s *Service[T]) UpdateByKey(ctx context.Context, value string, rec *T) Response {
	attr, ok := s.def.Info.Schema.Key()
	if !ok {
		return Failure(nil, newError(KindNotFound, "%s has no lookup key.", s.labels().Title()))
	}
	if rej, ok := s.validator.check(0, rec); !ok {
		return FailureMessage(nil, rej.Message, rej.Kind)
	}

	n, err := s.store.UpdateByKey(ctx, attr, value, rec)
	if err != nil {
		return s.fail(ctx, "update by key", nil, err)
	}
	if n == 0 {
		return Failure(nil, newError(KindNotFound, "%s with %s '%s' not found.", s.labels().Title(), attr.Column, value))
	}
	return Success(rec, fmt.Sprintf("%s updated successfully.", s.labels().Title()))
}

// UpdateByID replaces the writable fields of record id with those of rec.
// Key collisions with other records are reported by the store.
func (s *Service[T]) UpdateByID(ctx context.Context, id int64, rec *T) Response {
	if id <= 0 {
		return Failure(nil, newError(KindInvalidRange, "Invalid %s ID %d.", s.labels().Singular, id))
	}
	if rej, ok := s.validator.check(0, rec); !ok {
		return FailureMessage(nil, rej.Message, rej.Kind)
	}
	set, err := PrepareAssignments(s.def.Info.Schema, RecordAssignments(s.def.Info.Schema, rec))
	if err != nil {
		return Failure(nil, err)
	}

	n, err := s.store.UpdateByID(ctx, id, set)
	if err != nil {
		return s.fail(ctx, "update", nil, err)
	}
	if n == 0 {
		return Failure(nil, newError(KindNotFound, "%s with ID %d not found.", s.labels().Title(), id))
	}

	updated, err := s.store.FindByIDs(ctx, []int64{id})
	if err != nil {
		return s.fail(ctx, "update", nil, err)
	}
	if len(updated) == 1 {
		rec = updated[0]
	} else {
		s.def.Info.Schema.SetID(rec, id)
	}
	return Success(rec, fmt.Sprintf("%s with ID %d updated successfully.", s.labels().Title(), id))
}

// DeleteByKey removes the record identified by value.
func (s *Service[T]) DeleteByKey(ctx context.Context, value string) Response {
	attr, ok := s.def.Info.Schema.Key()
	if !ok {
		return Failure(nil, newError(KindNotFound, "%s has no lookup key.", s.labels().Title()))
	}
	n, err := s.store.DeleteByKey(ctx, attr, value)
	if err != nil {
		return s.fail(ctx, "delete by key", nil, err)
	}
	if n == 0 {
		return Failure(nil, newError(KindNotFound, "%s with %s '%s' not found.", s.labels().Title(), attr.Column, value))
	}
	return Success(n, fmt.Sprintf("%s deleted successfully.", s.labels().Title()))
}

// DeleteByID removes one record.
func (s *Service[T]) DeleteByID(ctx context.Context, id int64) Response {
	res, err := s.ranges.Delete(ctx, IDRange{From: id, To: id})
	if err != nil {
		return s.fail(ctx, "delete", nil, err)
	}
	return Success(res, fmt.Sprintf("%s with ID %d deleted successfully.", s.labels().Title(), id))
}

// DeleteRange removes every record from..to, or nothing if any id is missing.
func (s *Service[T]) DeleteRange(ctx context.Context, from, to int64) Response {
	res, err := s.ranges.Delete(ctx, IDRange{From: from, To: to})
	if err != nil {
		return s.fail(ctx, "delete range", nil, err)
	}
	return Success(res, fmt.Sprintf("%d %s(s) deleted successfully from ID %d to %d",
		res.AffectedCount, s.labels().Singular, from, to))
}

// UpdateRange applies set to every record from..to, or to nothing if any
// id is missing.
func (s *Service[T]) UpdateRange(ctx context.Context, from, to int64, set []Assignment) Response {
	r := IDRange{From: from, To: to}
	if err := r.Validate(s.opts.MaxRangeSpan); err != nil {
		return Failure(nil, err)
	}
	prepared, err := PrepareAssignments(s.def.Info.Schema, set)
	if err != nil {
		return Failure(nil, err)
	}

	res, err := s.ranges.Update(ctx, r, prepared)
	if err != nil {
		return s.fail(ctx, "update range", nil, err)
	}
	return Success(res, fmt.Sprintf("%d %s(s) updated successfully from ID %d to %d",
		res.AffectedCount, s.labels().Singular, from, to))
}

// fail logs store faults and builds the failure envelope.
func (s *Service[T]) fail(ctx context.Context, op string, payload any, err error) Response {
	kind := KindOf(err)
	logger := logging.WithFields(ctx, "entity", s.def.Info.Key, "op", op)
	if kind == "" || kind == KindStoreFailure {
		logger.Error("operation failed", "error", err)
	} else {
		logger.Debug("operation rejected", "kind", kind, "error", err)
	}
	return Failure(payload, err)
}
