package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/bookshelf/internal/config"
)

func memoryConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Store.Driver = config.DriverMemory
	cfg.Batch.MaxSize = 100
	cfg.Batch.MaxConcurrent = 1
	cfg.Batch.MaxWaitTime = time.Second
	cfg.Batch.StopOnFirstError = true
	cfg.Range.MaxSpan = 50
	return cfg
}

func TestOptions(t *testing.T) {
	opts := Options(memoryConfig())
	assert.True(t, opts.Policy.StopOnFirstError)
	assert.False(t, opts.Policy.ValidateAllBeforeInsert)
	assert.Equal(t, 100, opts.MaxBatchSize)
	assert.Equal(t, int64(50), opts.MaxRangeSpan)
}

func TestEntities(t *testing.T) {
	app := New(memoryConfig(), nil)
	entities := app.Entities()
	require.Len(t, entities, 4)

	keys := make([]string, len(entities))
	for i, e := range entities {
		keys[i] = e.Info().Key
	}
	assert.Equal(t, []string{"books", "authors", "currencies", "languages"}, keys)
	assert.Equal(t, app.Books.DefaultPolicy(), Options(memoryConfig()).Policy)
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	app := New(memoryConfig(), nil)

	require.NoError(t, app.Seed(ctx))
	require.NoError(t, app.Seed(ctx))

	resp := app.Currencies.List(ctx, "", "")
	require.True(t, resp.IsSuccess)
	assert.Equal(t, "10 currencies found.", resp.Message)

	resp = app.Languages.GetByKey(ctx, "sanskrit")
	assert.True(t, resp.IsSuccess, resp.Message)
}
