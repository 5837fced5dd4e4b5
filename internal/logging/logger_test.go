package logging

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn", "json")

	log.Info("dropped")
	assert.Empty(t, buf.String())

	log.Warn("kept", "entity", "books")
	assert.Contains(t, buf.String(), `"msg":"kept"`)
	assert.Contains(t, buf.String(), `"entity":"books"`)
}

func TestNew_TextDefault(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "bogus", "").Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}

func TestFromContext_RequestID(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(New(&buf, "info", "json"))
	t.Cleanup(func() { slog.SetDefault(prev) })

	var ctx context.Context
	h := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx = r.Context()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotNil(t, ctx)

	WithFields(ctx, "batch_id", "b-1").Info("batch finished")
	assert.Contains(t, buf.String(), `"request_id":`)
	assert.Contains(t, buf.String(), `"batch_id":"b-1"`)
}
