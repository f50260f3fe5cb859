// Package server serves renders, health checks and metrics over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmmcquay/sgfrender/internal/config"
	"github.com/dmmcquay/sgfrender/internal/health"
	"github.com/dmmcquay/sgfrender/internal/logging"
	"github.com/dmmcquay/sgfrender/internal/pipeline"
	"github.com/dmmcquay/sgfrender/internal/ratelimit"
)

// Deps are the components the HTTP API serves.
type Deps struct {
	Logger   logging.ContextLogger
	Checker  *health.Checker
	Service  *pipeline.Service
	Defaults config.RenderConfig
	// Recorder and Limiter may be nil.
	Recorder HTTPRecorder
	Limiter  *ratelimit.Limiter
}

// HTTPServer provides the render API plus health and metrics endpoints.
type HTTPServer struct {
	server   *http.Server
	logger   logging.ContextLogger
	checker  *health.Checker
	service  *pipeline.Service
	defaults config.RenderConfig
	limiter  *ratelimit.Limiter

	mu       sync.Mutex
	listener net.Listener
}

// NewHTTPServer creates the server. It does not listen until Start.
func NewHTTPServer(addr string, deps Deps) *HTTPServer {
	s := &HTTPServer{
		logger:   deps.Logger,
		checker:  deps.Checker,
		service:  deps.Service,
		defaults: deps.Defaults,
		limiter:  deps.Limiter,
	}

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(deps.Recorder),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Router builds the chi route tree.
func (s *HTTPServer) Router(recorder HTTPRecorder) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(CorrelationMiddleware)
	if recorder != nil {
		r.Use(PrometheusMiddleware(recorder))
	}
	r.Use(RequestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", s.checker.LivenessHandler())
	r.Get("/ready", s.checker.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/themes", s.handleThemes)
	r.Post("/render", s.handleRender)
	r.Post("/describe", s.handleDescribe)

	return r
}

// Start listens on the configured address and serves in the background.
func (s *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("Starting HTTP server", "addr", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address once started, else the configured one.
func (s *HTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// Stop gracefully stops the HTTP server.
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}
