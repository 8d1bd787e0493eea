// Package server exposes the resolver over a REST transport. The resolver
// is not safe for concurrent mutation, so one mutex guards every call
// into it.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/halcyon-sh/warden/internal/resolver"
)

// Config holds REST server configuration.
type Config struct {
	Port int
}

// Server serves the CARP resolution API over HTTP.
type Server struct {
	mu       sync.Mutex
	resolver *resolver.Resolver
	srv      *http.Server
	logger   *slog.Logger
}

// New creates the REST server around an existing resolver.
func New(cfg Config, res *resolver.Resolver, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{resolver: res, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /v1/sessions", s.handleCreateSession)
	mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleEndSession)
	mux.HandleFunc("POST /v1/sessions/{id}/resolve", s.handleResolve)
	mux.HandleFunc("GET /v1/sessions/{id}/trace", s.handleTrace)
	mux.HandleFunc("GET /v1/sessions/{id}/verify", s.handleVerify)
	mux.HandleFunc("GET /v1/atlases", s.handleListAtlases)
	mux.HandleFunc("GET /v1/atlases/{id}", s.handleGetAtlas)

	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: s.logRequests(mux),
	}
	return s
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start begins listening. Blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.srv.Addr, err)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("rest server listening", "addr", s.srv.Addr)
	err = s.srv.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// ReloadAtlases is the hot-reload hook wired to the atlas watcher.
func (s *Server) ReloadAtlases(load func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return load()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start).Round(time.Microsecond),
		)
	})
}
