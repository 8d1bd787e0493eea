// Package proxy is a forward HTTP proxy that gates outbound agent traffic
// through the resolver. MITM-free: no TLS interception, HTTPS CONNECT sees
// the hostname only.
package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/halcyon-sh/warden/internal/protocol"
	"github.com/halcyon-sh/warden/internal/resolver"
)

// Config holds proxy server configuration.
type Config struct {
	Port    int
	AgentID string
}

// Server enforces resolution decisions on outbound requests. All requests
// on one proxy instance share one governed session.
type Server struct {
	cfg       Config
	resolver  *resolver.Resolver
	sessionID string
	logger    *slog.Logger
	mu        sync.Mutex
	srv       *http.Server
}

// NewServer creates a proxy around an existing resolver and opens its
// session.
func NewServer(cfg Config, res *resolver.Resolver, logger *slog.Logger) (*Server, error) {
	if cfg.AgentID == "" {
		cfg.AgentID = "proxy-agent"
	}
	if logger == nil {
		logger = slog.Default()
	}

	sess, err := res.CreateSession(cfg.AgentID, "outbound HTTP traffic")
	if err != nil {
		return nil, fmt.Errorf("proxy: create session: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		resolver:  res,
		sessionID: sess.ID,
		logger:    logger,
	}
	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: s,
	}
	return s, nil
}

// SessionID returns the proxy's governed session id.
func (s *Server) SessionID() string {
	return s.sessionID
}

// Start begins listening for proxy connections. Blocks until ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("proxy: listen on %s: %w", s.srv.Addr, err)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("proxy listening", "addr", s.srv.Addr, "session", s.sessionID)
	err = s.srv.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// ServeHTTP dispatches incoming requests to the appropriate handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodConnect {
		s.handleConnect(w, r)
	} else {
		s.handleHTTP(w, r)
	}
}

// resolve builds an execute-operation CARP request for one outbound call.
func (s *Server) resolve(goal, resource string) (*protocol.CARPResolution, error) {
	req := &protocol.CARPRequest{
		Version:   protocol.Version,
		RequestID: protocol.NewRequestID(),
		Timestamp: protocol.UTCNowISO(),
		Operation: protocol.OpExecute,
		Requester: protocol.Requester{AgentID: s.cfg.AgentID, SessionID: s.sessionID},
		Task: protocol.Task{
			Goal:                 goal,
			RequiredCapabilities: []string{"http_request"},
		},
		Context: map[string]string{"resource": resource},
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolver.Resolve(s.sessionID, req)
}

// handleHTTP handles plain HTTP proxy requests with full URL inspection.
func (s *Server) handleHTTP(w http.ResponseWriter, r *http.Request) {
	goal := fmt.Sprintf("%s %s", r.Method, r.URL.String())
	res, err := s.resolve(goal, r.URL.String())
	if err != nil {
		http.Error(w, fmt.Sprintf("proxy resolution failed: %v", err), http.StatusBadGateway)
		return
	}

	if !res.Decision.Permits() {
		writeBlocked(w, res)
		return
	}

	resp, err := http.DefaultTransport.RoundTrip(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("proxy error: %v", err), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for k, vv := range resp.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

// handleConnect handles HTTPS CONNECT tunneling with hostname-only
// inspection.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	res, err := s.resolve("CONNECT "+host, host)
	if err != nil {
		http.Error(w, fmt.Sprintf("proxy resolution failed: %v", err), http.StatusBadGateway)
		return
	}
	if !res.Decision.Permits() {
		http.Error(w, fmt.Sprintf("CONNECT blocked: %s", res.Decision.Reason), http.StatusForbidden)
		return
	}

	targetConn, err := net.DialTimeout("tcp", r.Host, 10*time.Second)
	if err != nil {
		http.Error(w, fmt.Sprintf("tunnel error: %v", err), http.StatusBadGateway)
		return
	}

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		targetConn.Close()
		http.Error(w, "hijacking not supported", http.StatusInternalServerError)
		return
	}
	clientConn, _, err := hijacker.Hijack()
	if err != nil {
		targetConn.Close()
		http.Error(w, fmt.Sprintf("hijack error: %v", err), http.StatusInternalServerError)
		return
	}

	clientConn.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n"))

	go transfer(targetConn, clientConn)
	go transfer(clientConn, targetConn)
}

func transfer(dst io.WriteCloser, src io.ReadCloser) {
	defer dst.Close()
	defer src.Close()
	io.Copy(dst, src)
}

func writeBlocked(w http.ResponseWriter, res *protocol.CARPResolution) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	json.NewEncoder(w).Encode(map[string]any{
		"blocked":       true,
		"decision":      res.Decision,
		"resolution_id": res.ResolutionID,
		"trace_id":      res.TraceID,
	})
}
