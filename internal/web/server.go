// Package web provides the JSON HTTP API over the entity services.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/bookshelf/internal/config"
	"github.com/JonMunkholm/bookshelf/internal/core"
	"github.com/JonMunkholm/bookshelf/internal/logging"
	"github.com/JonMunkholm/bookshelf/internal/web/middleware"
)

// Server is the HTTP server for the record API.
type Server struct {
	cfg      *config.Config
	entities []Entity
	router   *chi.Mux
	server   *http.Server
	stop     chan struct{}
	db       Pinger
}

// Pinger is the database health check, satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewServer creates a Server exposing every entity under /api/{key}.
func NewServer(cfg *config.Config, entities ...Entity) *Server {
	s := &Server{
		cfg:      cfg,
		entities: entities,
		router:   chi.NewRouter(),
		stop:     make(chan struct{}),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Rate.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Compress(5))
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	}
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		limiter := newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute, s.stop)
		s.router.Use(limiter.middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	var batchLimit func(http.Handler) http.Handler
	if s.cfg.Rate.Enabled {
		batchLimit = newRateLimiter(s.cfg.Rate.BatchLimit, time.Minute, s.stop).middleware
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/healthz", s.handleHealth)
		r.Get("/entities", s.handleListEntities)

		for _, e := range s.entities {
			r.Route("/"+e.Info().Key, func(r chi.Router) {
				e.mount(r, s.cfg.Batch.MaxBodySize, batchLimit)
			})
		}
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, r, http.StatusNotFound,
			core.FailureMessage(nil, "Route not found.", core.KindNotFound))
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr, "entities", len(s.entities))
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests, waits for in-flight batches to finish
// and then closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}

	var errs []error
	if s.server != nil {
		errs = append(errs, s.server.Shutdown(ctx))
	}
	errs = append(errs, s.Drain(ctx))
	return errors.Join(errs...)
}

// Drain waits until no entity has a batch in progress.
func (s *Server) Drain(ctx context.Context) error {
	for _, e := range s.entities {
		if err := e.Limiter().WaitForDrain(ctx); err != nil {
			return err
		}
	}
	return nil
}

// WithDatabase makes /api/healthz ping db.
func (s *Server) WithDatabase(db Pinger) *Server {
	s.db = db
	return s
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

type entityView struct {
	Key      string          `json:"key"`
	Singular string          `json:"singular"`
	Plural   string          `json:"plural"`
	Table    string          `json:"table"`
	Columns  []attributeView `json:"columns"`
}

type attributeView struct {
	Name       string `json:"name"`
	Column     string `json:"column"`
	Kind       string `json:"kind"`
	Nullable   bool   `json:"nullable,omitempty"`
	Primary    bool   `json:"primary,omitempty"`
	Required   bool   `json:"required,omitempty"`
	Unique     bool   `json:"unique,omitempty"`
	ReadOnly   bool   `json:"readOnly,omitempty"`
	Filterable bool   `json:"filterable,omitempty"`
}

func describe(info core.EntityInfo) entityView {
	v := entityView{
		Key:      info.Key,
		Singular: info.Labels.Singular,
		Plural:   info.Labels.Plural,
		Table:    info.Schema.Table,
	}
	for _, a := range info.Schema.Attributes {
		_, filterable := info.Schema.Resolve(a.Column)
		v.Columns = append(v.Columns, attributeView{
			Name:       a.Name,
			Column:     a.Column,
			Kind:       a.Kind.String(),
			Nullable:   a.Nullable,
			Primary:    a.Primary,
			Required:   a.Required,
			Unique:     a.Unique,
			ReadOnly:   a.ReadOnly,
			Filterable: filterable,
		})
	}
	return v
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	views := make([]entityView, 0, len(s.entities))
	for _, e := range s.entities {
		views = append(views, describe(e.Info()))
	}
	writeResponse(w, r, http.StatusOK, core.Success(views, ""))
}

type healthView struct {
	Status  string                        `json:"status"`
	Store   string                        `json:"store"`
	Batches map[string]core.LimiterStatus `json:"batches"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := healthView{Status: "ok", Store: s.cfg.Store.Driver, Batches: map[string]core.LimiterStatus{}}
	for _, e := range s.entities {
		h.Batches[e.Info().Key] = e.Limiter().Status()
	}

	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			logging.FromContext(r.Context()).Error("health check failed", "error", err)
			h.Status = "unavailable"
			writeResponse(w, r, http.StatusServiceUnavailable, core.Failure(h, core.StoreError("ping", err)))
			return
		}
	}
	writeResponse(w, r, http.StatusOK, core.Success(h, "ok"))
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		// JSON only; nothing should ever be loaded from a response
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")

		next.ServeHTTP(w, r)
	})
}
