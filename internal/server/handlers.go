package server

import (
	"encoding/json"
	"net/http"

	"github.com/halcyon-sh/warden/internal/fault"
	"github.com/halcyon-sh/warden/internal/protocol"
)

// CreateSessionRequest is the body for POST /v1/sessions.
type CreateSessionRequest struct {
	SessionID string `json:"session_id,omitempty"`
	AgentID   string `json:"agent_id"`
	Goal      string `json:"goal,omitempty"`
}

// errorBody is the wire shape of every transport-facing failure.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFault(w, fault.New(fault.SerializationError, "decode body: %v", err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	var sess any
	if req.SessionID != "" {
		sess, err = s.resolver.StartSession(req.SessionID, req.AgentID, req.Goal)
	} else {
		sess, err = s.resolver.CreateSession(req.AgentID, req.Goal)
	}
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.resolver.EndSession(id); err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id, "state": "ended"})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req protocol.CARPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFault(w, fault.New(fault.SerializationError, "decode request: %v", err))
		return
	}
	if req.Version == "" {
		req.Version = protocol.Version
	}
	if req.RequestID == "" {
		req.RequestID = protocol.NewRequestID()
	}
	if req.Timestamp == "" {
		req.Timestamp = protocol.UTCNowISO()
	}
	if req.Operation == "" {
		req.Operation = protocol.OpResolve
	}
	req.Requester.SessionID = id

	s.mu.Lock()
	res, err := s.resolver.Resolve(id, &req)
	s.mu.Unlock()
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	events, err := s.resolver.GetTrace(id)
	s.mu.Unlock()
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "events": events})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	result, err := s.resolver.VerifyChain(id)
	s.mu.Unlock()
	if err != nil {
		writeFault(w, err)
		return
	}
	// Chain breaks are data, not errors: a broken chain is still a 200
	// with valid=false so auditors can inspect where it broke.
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListAtlases(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	ids := s.resolver.ListAtlases()
	s.mu.Unlock()
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"atlases": ids})
}

func (s *Server) handleGetAtlas(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	m, err := s.resolver.GetAtlas(id)
	s.mu.Unlock()
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeFault(w http.ResponseWriter, err error) {
	code := fault.CodeOf(err)
	writeJSON(w, statusFor(code), errorBody{Code: string(code), Message: err.Error()})
}

func statusFor(code fault.Code) int {
	switch code {
	case fault.NotFound:
		return http.StatusNotFound
	case fault.AlreadyExists, fault.InvalidState:
		return http.StatusConflict
	case fault.ValidationError, fault.SerializationError:
		return http.StatusBadRequest
	case fault.Backpressure:
		return http.StatusTooManyRequests
	case fault.ChainIntegrityErr:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
