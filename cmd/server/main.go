package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/bookshelf/internal/application"
	"github.com/JonMunkholm/bookshelf/internal/config"
	"github.com/JonMunkholm/bookshelf/internal/core"
	"github.com/JonMunkholm/bookshelf/internal/logging"
	"github.com/JonMunkholm/bookshelf/internal/store"
	"github.com/JonMunkholm/bookshelf/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()

	var (
		db   core.DBTX
		pool *pgxpool.Pool
	)
	if !cfg.UseMemory() {
		pool, err = connect(ctx, cfg)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		db = pool

		if cfg.Database.Bootstrap {
			if err := store.Bootstrap(ctx, pool); err != nil {
				slog.Error("failed to bootstrap schema", "error", err)
				os.Exit(1)
			}
		}
	}

	app := application.New(cfg, db)
	if cfg.UseMemory() || cfg.Database.Bootstrap {
		if err := app.Seed(ctx); err != nil {
			slog.Error("failed to load seed data", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("entities registered", "count", core.EntityCount(), "store", cfg.Store.Driver)

	server := web.NewServer(cfg, app.Entities()...)
	if pool != nil {
		server.WithDatabase(pool)
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func connect(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}
