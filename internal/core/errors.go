package core

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a domain failure. Kinds are comparable with errors.Is:
//
//	if errors.Is(err, core.KindRangeGap) { ... }
type Kind string

const (
	KindEmptyBatch           Kind = "empty_batch"
	KindBatchTooLarge        Kind = "batch_too_large"
	KindMissingRequiredField Kind = "missing_required_field"
	KindInvalidField         Kind = "invalid_field"
	KindDuplicateInStore     Kind = "duplicate_in_store"
	KindDuplicateInBatch     Kind = "duplicate_in_batch"
	KindInvalidRange         Kind = "invalid_range"
	KindRangeGap             Kind = "range_gap"
	KindInvalidMutation      Kind = "invalid_mutation"
	KindNotFound             Kind = "not_found"
	KindInvalidInput         Kind = "invalid_input"
	KindStoreFailure         Kind = "store_failure"
)

func (k Kind) Error() string { return string(k) }

// Error is a classified failure. MissingIDs is set only for KindRangeGap.
type Error struct {
	Kind       Kind
	Message    string
	MissingIDs []int64
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so callers can test against the Kind constants.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// InvalidInput classifies a request body that could not be decoded. The
// message is err's text so callers see the offending line or field.
func InvalidInput(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindInvalidInput, Message: err.Error(), Err: err}
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// StoreError classifies a driver error as a store failure unless it is
// already a classified *Error or a context error.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &Error{Kind: KindStoreFailure, Message: op + " failed", Err: err}
}

// KindOf returns the kind of err, or "" when err is not classified.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// MissingIDsOf returns the gap list carried by a range error.
func MissingIDsOf(err error) []int64 {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.MissingIDs
	}
	return nil
}
