// Package api serves the analysis pipeline over HTTP.
package api

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/nijaru/yt-sentiment/config"
	"github.com/nijaru/yt-sentiment/metrics"
	"github.com/nijaru/yt-sentiment/middleware"
	"github.com/nijaru/yt-sentiment/repository"
	"github.com/nijaru/yt-sentiment/validation"
	"github.com/sirupsen/logrus"
)

type Server struct {
	analysis  *AnalysisHandler
	archive   ArchiveReader
	counters  *metrics.Counters
	config    *config.Config
	logger    *logrus.Logger
	server    *http.Server
	startTime time.Time
}

type ServerOption func(*Server)

// NewServer creates a new API server with the provided services and options
func NewServer(cfg *config.Config, opts ...ServerOption) *Server {
	s := &Server{
		config:    cfg,
		logger:    logrus.StandardLogger(),
		startTime: time.Now(),
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.analysis != nil {
		s.analysis.archive = s.archive
	}

	s.server = &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// WithServices wires the pipeline runner and the result store.
func WithServices(runner Runner, repo repository.AnalysisRepository) ServerOption {
	return func(s *Server) {
		s.analysis = NewAnalysisHandler(runner, repo, validation.NewValidator(s.config), s.logger)
	}
}

// WithArchive serves stored analyses from the archive when the database has none.
func WithArchive(archive ArchiveReader) ServerOption {
	return func(s *Server) {
		s.archive = archive
	}
}

// WithMetrics exposes counters at /metrics.
func WithMetrics(c *metrics.Counters) ServerOption {
	return func(s *Server) {
		s.counters = c
	}
}

// WithLogger sets a custom logger for the server. Apply it before WithServices.
func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start() error {
	s.logger.WithField("port", s.config.ServerPort).Info("Starting server")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	const v1Prefix = "/api/v1"
	timeout := middleware.Timeout(s.config.RequestTimeout)

	if s.analysis != nil {
		mux.Handle("POST "+v1Prefix+"/analyze", timeout(http.HandlerFunc(s.analysis.HandleAnalyze)))
		mux.Handle("GET "+v1Prefix+"/analysis", timeout(http.HandlerFunc(s.analysis.HandleGetAnalysis)))
		mux.HandleFunc("GET "+v1Prefix+"/analyze/stream", s.analysis.HandleStream)
	}

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	return s.middleware(mux)
}

func (s *Server) middleware(handler http.Handler) http.Handler {
	middlewares := []func(http.Handler) http.Handler{
		middleware.Recovery(s.logger),
		middleware.RequestID(),
		middleware.Logging(s.logger),
	}

	if s.config.RateLimit.Enabled {
		rateLimiter := middleware.NewRateLimiter(
			s.config.RateLimit.RequestsPerMinute,
			s.config.RateLimit.BurstSize,
		)
		middlewares = append(middlewares, rateLimiter.Middleware)
	}

	return middleware.Chain(handler, middlewares...)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"version":   s.config.Version,
		"uptime":    time.Since(s.startTime).String(),
	}

	if s.config.Debug {
		status["debug"] = true
		status["goroutines"] = runtime.NumGoroutine()
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		status["memory"] = map[string]interface{}{
			"allocated": m.Alloc,
			"total":     m.TotalAlloc,
			"system":    m.Sys,
			"gc_cycles": m.NumGC,
		}
	}

	respondJSON(w, r, http.StatusOK, status)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.counters == nil {
		return
	}
	w.Write([]byte(s.counters.Format()))
}
