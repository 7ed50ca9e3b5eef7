// Package web provides the JSON API over the creature store and the ETL
// pipeline.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/creature-etl/internal/config"
	"github.com/JonMunkholm/creature-etl/internal/core"
	"github.com/JonMunkholm/creature-etl/internal/pipeline"
	"github.com/JonMunkholm/creature-etl/internal/store"
	"github.com/JonMunkholm/creature-etl/internal/web/middleware"
)

// Repository is the query surface the API serves.
type Repository interface {
	List(ctx context.Context, limit, offset int) ([]core.Creature, error)
	Count(ctx context.Context) (int64, error)
	GetByID(ctx context.Context, id int64) (*core.Creature, error)
	GetByName(ctx context.Context, name string) (*core.Creature, error)
	ListByType(ctx context.Context, typ string, secondaryOnly bool) ([]core.Creature, error)
	ListByGeneration(ctx context.Context, gen int64) ([]core.Creature, error)
	ListLegendary(ctx context.Context, limit int) ([]core.Creature, error)
	ListByPowerRange(ctx context.Context, r store.PowerRange) ([]core.Creature, error)
	Search(ctx context.Context, q string, limit int) ([]core.Creature, error)
	Create(ctx context.Context, c core.Creature) (*core.Creature, error)
	Update(ctx context.Context, id int64, c core.Creature) (*core.Creature, error)
	Delete(ctx context.Context, id int64) error
	BulkCreate(ctx context.Context, recs []core.Creature) ([]core.Creature, []store.BulkError, error)
	Statistics(ctx context.Context) (*store.Statistics, error)
	ListRuns(ctx context.Context, limit int) ([]store.RunRecord, error)
	Ping(ctx context.Context) error
}

// Server is the HTTP server.
type Server struct {
	cfg      config.ServerConfig
	pipeline *pipeline.Pipeline
	repo     Repository
	limiter  *pipeline.RunLimiter
	router   *chi.Mux
	server   *http.Server
	logger   *slog.Logger
}

// NewServer creates a Server. repo may be nil, in which case the creature
// endpoints answer 503.
func NewServer(cfg *config.Config, p *pipeline.Pipeline, repo Repository, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg.Server,
		pipeline: p,
		repo:     repo,
		limiter:  pipeline.NewRunLimiter(cfg.Run.MaxConcurrent, cfg.Run.MaxWaitTime),
		router:   chi.NewRouter(),
		logger:   logger.With("component", "web"),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	if s.cfg.RequestTimeout > 0 {
		s.router.Use(chimw.Timeout(s.cfg.RequestTimeout))
	}
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleHome)
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/creatures", func(r chi.Router) {
			r.Use(s.requireRepo)

			r.Get("/", s.handleListCreatures)
			r.Get("/legendary", s.handleLegendary)
			r.Get("/power", s.handlePowerRange)
			r.Get("/search", s.handleSearch)
			r.Get("/name/{name}", s.handleGetByName)
			r.Get("/type/{type}", s.handleByType)
			r.Get("/generation/{gen}", s.handleByGeneration)
			r.Get("/{id}", s.handleGetCreature)

			r.Post("/", s.handleCreateCreature)
			r.Post("/bulk", s.handleBulkCreate)
			r.Put("/{id}", s.handleUpdateCreature)
			r.Delete("/{id}", s.handleDeleteCreature)
		})

		r.With(s.requireRepo).Get("/statistics", s.handleStatistics)

		r.Route("/etl", func(r chi.Router) {
			r.Get("/info", s.handleETLInfo)
			r.Get("/status", s.handleETLStatus)
			r.With(s.requireRepo).Get("/runs", s.handleListRuns)
			r.Post("/run", s.handleETLRun)
		})
	})
}

// requireRepo answers 503 when no database is attached.
func (s *Server) requireRepo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.repo == nil {
			s.respondError(w, r, core.ErrNoDatabase)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start listens on addr and blocks until the server stops. It returns nil
// after a graceful Shutdown.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	s.logger.Info("server listening", "addr", addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, then waits for in-flight pipeline runs.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return err
		}
	}
	return s.limiter.WaitForDrain(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Limiter returns the run limiter shared by API-triggered runs.
func (s *Server) Limiter() *pipeline.RunLimiter {
	return s.limiter
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v with status. Encoding errors are only logged since the
// header is already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
