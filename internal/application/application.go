// Package application builds the entity services from configuration.
package application

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/bookshelf/internal/config"
	"github.com/JonMunkholm/bookshelf/internal/core"
	"github.com/JonMunkholm/bookshelf/internal/core/tables"
	"github.com/JonMunkholm/bookshelf/internal/logging"
	"github.com/JonMunkholm/bookshelf/internal/store"
	"github.com/JonMunkholm/bookshelf/internal/web"
)

// App holds one service per entity.
type App struct {
	Books      *core.Service[tables.Book]
	Authors    *core.Service[tables.Author]
	Currencies *core.Service[tables.Currency]
	Languages  *core.Service[tables.Language]
}

// Options converts the batch and range settings for core.NewService.
func Options(cfg *config.Config) core.Options {
	return core.Options{
		Policy: core.BatchPolicy{
			StopOnFirstError:        cfg.Batch.StopOnFirstError,
			ValidateAllBeforeInsert: cfg.Batch.ValidateAllBeforeInsert,
		},
		MaxBatchSize:  cfg.Batch.MaxSize,
		MaxConcurrent: cfg.Batch.MaxConcurrent,
		MaxWait:       cfg.Batch.MaxWaitTime,
		BatchTimeout:  cfg.Batch.Timeout,
		MaxRangeSpan:  cfg.Range.MaxSpan,
	}
}

// New creates the services over db, or over in-memory tables when db is nil.
func New(cfg *config.Config, db core.DBTX) *App {
	opts := Options(cfg)
	return &App{
		Books:      newService(tables.Books, db, opts),
		Authors:    newService(tables.Authors, db, opts),
		Currencies: newService(tables.Currencies, db, opts),
		Languages:  newService(tables.Languages, db, opts),
	}
}

func newService[T any](def core.Definition[T], db core.DBTX, opts core.Options) *core.Service[T] {
	if db == nil {
		return core.NewService(def, store.NewMemoryTable[T](def.Info.Schema), opts)
	}
	return core.NewService(def, store.NewTable[T](db, def.Info.Schema), opts)
}

// Entities returns the services in route order.
func (a *App) Entities() []web.Entity {
	return []web.Entity{
		web.Mount(a.Books, web.WithListing(a.BooksWithAuthors())),
		web.Mount(a.Authors),
		web.Mount(a.Currencies),
		web.Mount(a.Languages),
	}
}

// BooksWithAuthors lists books with their authors loaded eagerly.
func (a *App) BooksWithAuthors() *core.Expansion[tables.Book, tables.Author] {
	return core.NewExpansion("authors", a.Books, "author_id", a.Authors, tables.WithAuthor)
}

// Seed loads the reference currencies and languages. Rows that already
// exist are skipped, so Seed can run on every start.
func (a *App) Seed(ctx context.Context) error {
	if err := seed(ctx, a.Currencies, tables.SeedCurrencies()); err != nil {
		return err
	}
	return seed(ctx, a.Languages, tables.SeedLanguages())
}

func seed[T any](ctx context.Context, svc *core.Service[T], recs []*T) error {
	resp := svc.CreateBatch(ctx, recs, core.BatchPolicy{})

	added := 0
	if out, ok := resp.Response.(*core.BatchOutcome[T]); ok {
		added = out.TotalAccepted
	}

	switch core.KindOf(resp.Err()) {
	case "":
		if err := resp.Err(); err != nil {
			return fmt.Errorf("seed %s: %w", svc.Info().Key, err)
		}
	case core.KindDuplicateInStore:
	default:
		return fmt.Errorf("seed %s: %w", svc.Info().Key, resp.Err())
	}

	logging.FromContext(ctx).Info("seed data loaded", "entity", svc.Info().Key, "added", added)
	return nil
}
