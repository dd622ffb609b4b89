package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"oracle/internal/adapters/config"
	"oracle/internal/domain/report"
	"oracle/internal/metrics"
	"oracle/internal/scheduler"
	"oracle/internal/services/research"
	"oracle/pkg/logger"
)

// Server exposes the report store, on-demand generation and scheduler
// control over HTTP
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	log        *logger.Logger
}

// ServerConfig holds the server's dependencies
type ServerConfig struct {
	Port      int
	Store     report.Repository
	Research  *research.Service
	Scheduler *scheduler.Scheduler
	Version   string
}

// New creates the HTTP server with all routes configured
func New(cfg ServerConfig) *Server {
	h := &handlers{
		store:     cfg.Store,
		research:  cfg.Research,
		scheduler: cfg.Scheduler,
		version:   cfg.Version,
		log:       logger.Get().With("component", "api"),
	}

	mux := http.NewServeMux()

	mux.Handle("GET /health", http.HandlerFunc(h.handleHealth))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.Handle("GET /v1/reports/{type}", http.HandlerFunc(h.handleListReports))
	mux.Handle("GET /v1/reports/{type}/{date}", http.HandlerFunc(h.handleGetReport))
	mux.Handle("POST /v1/reports/{type}/{date}/generate", http.HandlerFunc(h.handleGenerate))

	mux.Handle("GET /v1/scheduler/status", http.HandlerFunc(h.handleSchedulerStatus))
	mux.Handle("POST /v1/scheduler/start", http.HandlerFunc(h.handleSchedulerStart))
	mux.Handle("POST /v1/scheduler/stop", http.HandlerFunc(h.handleSchedulerStop))

	handler := requestLogging(mux)

	return &Server{
		httpServer: &http.Server{
			Addr:        fmt.Sprintf(":%d", cfg.Port),
			Handler:     handler,
			ReadTimeout: 15 * time.Second,
			// Generation runs synchronously on the request; give it room.
			WriteTimeout: 35 * time.Minute,
		},
		handler: handler,
		log:     logger.Get().With("component", "api"),
	}
}

// Handler returns the root handler for use in tests
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start runs the server until Shutdown
func (s *Server) Start() error {
	s.log.Infow("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// NewFromAppConfig is a convenience constructor used by main
func NewFromAppConfig(cfg *config.Config, store report.Repository, svc *research.Service, sched *scheduler.Scheduler) *Server {
	return New(ServerConfig{
		Port:      cfg.HTTP.Port,
		Store:     store,
		Research:  svc,
		Scheduler: sched,
		Version:   cfg.App.Version,
	})
}

// requestLogging logs every request with its status and duration
func requestLogging(next http.Handler) http.Handler {
	log := logger.Get().With("component", "api")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Debugw("Request handled",
			"method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
