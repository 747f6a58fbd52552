// Package server runs the HTTP front of frontpage: security headers and
// per-request nonces, health and metrics endpoints and the page handler.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/conneroisu/frontpage/internal/config"
	"github.com/conneroisu/frontpage/internal/logging"
	"github.com/conneroisu/frontpage/internal/version"
)

// HealthCheck reports whether a backend the server depends on is usable.
type HealthCheck func(ctx context.Context) error

// Options are the collaborators of a Server.
type Options struct {
	// Gatherer backs /metrics. The endpoint is not mounted when nil.
	Gatherer prometheus.Gatherer
	Logger   logging.Logger
	// Checks run on every /health request.
	Checks map[string]HealthCheck
}

// Server serves pages over HTTP.
type Server struct {
	config      *config.Config
	security    *SecurityConfig
	gatherer    prometheus.Gatherer
	checks      map[string]HealthCheck
	logger      logging.Logger
	pages       http.Handler
	httpServer  *http.Server
	listener    net.Listener
	serverMutex sync.RWMutex
	ready       chan struct{}

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates a server. Mount the page handler before calling Start.
func New(cfg *config.Config, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	logger := opts.Logger.WithComponent("server")
	return &Server{
		config:   cfg,
		security: SecurityConfigFromAppConfig(cfg, logger),
		gatherer: opts.Gatherer,
		checks:   opts.Checks,
		logger:   logger,
		pages:    http.NotFoundHandler(),
		ready:    make(chan struct{}),
	}
}

// Mount sets the handler for every path not taken by /health or /metrics.
func (s *Server) Mount(pages http.Handler) {
	s.pages = pages
}

// ErrorPage writes an HTML error response. It matches the error hook of the
// frontend handler.
func (s *Server) ErrorPage(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.writeErrorPage(w, r, status, err)
}

// Handler returns the full middleware chain and routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	mux.Handle("/", s.pageMethods(s.pages))

	return s.logRequests(SecurityMiddleware(s.security)(mux))
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Server.Address(), err)
	}

	s.serverMutex.Lock()
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	server := s.httpServer
	s.serverMutex.Unlock()
	close(s.ready)

	s.logger.Info(ctx, "server listening", "addr", ln.Addr().String())
	if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Ready is closed once Start has bound its listener.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.serverMutex.RLock()
	defer s.serverMutex.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully stops the server. Repeated calls return the result
// of the first.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "shutting down server")
		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()
		if server == nil {
			return
		}
		if err := server.Shutdown(ctx); err != nil {
			s.shutdownErr = fmt.Errorf("server shutdown: %w", err)
		}
	})
	return s.shutdownErr
}

// pageMethods rejects methods a page cannot answer.
func (s *Server) pageMethods(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			s.writeErrorPage(w, r, http.StatusMethodNotAllowed, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type healthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "healthy",
		Version:   version.GetShortVersion(),
		Timestamp: time.Now().UTC(),
	}
	status := http.StatusOK
	if len(s.checks) > 0 {
		resp.Checks = make(map[string]string, len(s.checks))
		for name, check := range s.checks {
			if err := check(r.Context()); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "unhealthy"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn(r.Context(), err, "failed to encode health response")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"ip", clientIP(r))
	})
}
