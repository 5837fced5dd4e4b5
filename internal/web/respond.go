package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/JonMunkholm/bookshelf/internal/core"
	"github.com/JonMunkholm/bookshelf/internal/logging"
)

// writeResponse encodes the envelope. Encoding errors are logged since
// headers are already sent.
func writeResponse(w http.ResponseWriter, r *http.Request, status int, resp core.Response) {
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}

// statusFor maps a response to its HTTP status.
func statusFor(resp core.Response) int {
	if resp.IsSuccess {
		return http.StatusOK
	}
	err := resp.Err()
	switch {
	case errors.Is(err, core.ErrTooManyBatches):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}

	switch core.KindOf(err) {
	case core.KindInvalidRange, core.KindMissingRequiredField, core.KindInvalidField,
		core.KindEmptyBatch, core.KindInvalidMutation, core.KindInvalidInput:
		return http.StatusBadRequest
	case core.KindBatchTooLarge:
		return http.StatusRequestEntityTooLarge
	case core.KindRangeGap, core.KindNotFound:
		return http.StatusNotFound
	case core.KindDuplicateInStore, core.KindDuplicateInBatch:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respond(w http.ResponseWriter, r *http.Request, resp core.Response) {
	writeResponse(w, r, statusFor(resp), resp)
}

func invalid(w http.ResponseWriter, r *http.Request, err error) {
	respond(w, r, core.Failure(nil, core.InvalidInput(err)))
}

// decodeJSON reads one JSON value from a size-limited body.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errors.New("request body too large")
		}
		if errors.Is(err, io.EOF) {
			return errors.New("invalid json: empty body")
		}
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func idParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q for %s", raw, name)
	}
	return id, nil
}

// boolQuery parses a boolean query parameter, returning def when absent.
func boolQuery(r *http.Request, name string, def bool) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def, fmt.Errorf("invalid boolean %q for %s", raw, name)
	}
	return b, nil
}

// batchPolicy reads stopOnFirstError and validateAllBeforeInsert, falling
// back to the configured defaults.
func batchPolicy(r *http.Request, def core.BatchPolicy) (core.BatchPolicy, error) {
	stop, err := boolQuery(r, "stopOnFirstError", def.StopOnFirstError)
	if err != nil {
		return def, err
	}
	gate, err := boolQuery(r, "validateAllBeforeInsert", def.ValidateAllBeforeInsert)
	if err != nil {
		return def, err
	}
	return core.BatchPolicy{StopOnFirstError: stop, ValidateAllBeforeInsert: gate}, nil
}
