package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/halcyon-sh/warden/internal/protocol"
)

// --- Input/Output types ---

// SessionStartInput defines parameters for warden_session_start.
type SessionStartInput struct {
	AgentID string `json:"agent_id,omitempty" jsonschema:"agent identity, defaults to the server's configured agent"`
	Goal    string `json:"goal,omitempty" jsonschema:"overall session goal"`
}

// SessionStartOutput returns the new session identity.
type SessionStartOutput struct {
	SessionID string `json:"session_id"`
	TraceID   string `json:"trace_id"`
}

// SessionEndInput defines parameters for warden_session_end.
type SessionEndInput struct {
	SessionID string `json:"session_id" jsonschema:"session to end"`
}

// SessionEndOutput confirms the frozen session.
type SessionEndOutput struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
}

// ResolveInput defines parameters for warden_resolve and warden_validate.
type ResolveInput struct {
	SessionID    string   `json:"session_id" jsonschema:"session the request belongs to"`
	Goal         string   `json:"goal" jsonschema:"what the agent wants to do"`
	RiskTier     string   `json:"risk_tier,omitempty" jsonschema:"declared risk tier (low/medium/high/critical)"`
	Hints        []string `json:"hints,omitempty" jsonschema:"context hints to bias matching"`
	Capabilities []string `json:"capabilities,omitempty" jsonschema:"required capability names"`
	AtlasRefs    []string `json:"atlas_refs,omitempty" jsonschema:"atlas ids to resolve against, empty for all"`
}

// ResolveOutput is the resolution surface returned to the agent.
type ResolveOutput struct {
	ResolutionID   string                   `json:"resolution_id"`
	Decision       protocol.Decision        `json:"decision"`
	ContextBlocks  []protocol.ContextBlock  `json:"context_blocks,omitempty"`
	AllowedActions []protocol.AllowedAction `json:"allowed_actions,omitempty"`
	DeniedActions  []protocol.DeniedAction  `json:"denied_actions,omitempty"`
	Constraints    []protocol.Constraint    `json:"constraints,omitempty"`
	TTLSeconds     int                      `json:"ttl_seconds"`
	TraceID        string                   `json:"trace_id"`
}

// TraceInput defines parameters for warden_trace and warden_verify.
type TraceInput struct {
	SessionID string `json:"session_id" jsonschema:"session whose timeline to read"`
}

// TraceOutput holds the chained timeline.
type TraceOutput struct {
	SessionID string                `json:"session_id"`
	Events    []protocol.TRACEEvent `json:"events"`
}

// VerifyOutput reports chain verification.
type VerifyOutput struct {
	Valid             bool   `json:"valid"`
	EventCount        int    `json:"event_count"`
	FirstInvalidIndex int    `json:"first_invalid_index"`
	LastValidHash     string `json:"last_valid_hash"`
	Message           string `json:"message,omitempty"`
}

// AtlasesInput takes no parameters.
type AtlasesInput struct{}

// AtlasesOutput lists loaded atlas ids.
type AtlasesOutput struct {
	Atlases []string `json:"atlases"`
}

// --- Handlers ---

func (s *Server) handleSessionStart(ctx context.Context, req *mcpsdk.CallToolRequest, input SessionStartInput) (*mcpsdk.CallToolResult, SessionStartOutput, error) {
	agentID := input.AgentID
	if agentID == "" {
		agentID = s.agentID
	}

	s.mu.Lock()
	sess, err := s.resolver.CreateSession(agentID, input.Goal)
	s.mu.Unlock()
	if err != nil {
		return nil, SessionStartOutput{}, err
	}
	return nil, SessionStartOutput{SessionID: sess.ID, TraceID: sess.TraceID}, nil
}

func (s *Server) handleSessionEnd(ctx context.Context, req *mcpsdk.CallToolRequest, input SessionEndInput) (*mcpsdk.CallToolResult, SessionEndOutput, error) {
	s.mu.Lock()
	err := s.resolver.EndSession(input.SessionID)
	s.mu.Unlock()
	if err != nil {
		return nil, SessionEndOutput{}, err
	}
	return nil, SessionEndOutput{SessionID: input.SessionID, State: "ended"}, nil
}

func (s *Server) handleResolve(ctx context.Context, req *mcpsdk.CallToolRequest, input ResolveInput) (*mcpsdk.CallToolResult, ResolveOutput, error) {
	return s.resolve(input, protocol.OpResolve)
}

func (s *Server) handleValidate(ctx context.Context, req *mcpsdk.CallToolRequest, input ResolveInput) (*mcpsdk.CallToolResult, ResolveOutput, error) {
	return s.resolve(input, protocol.OpValidate)
}

func (s *Server) resolve(input ResolveInput, op protocol.Operation) (*mcpsdk.CallToolResult, ResolveOutput, error) {
	carp := &protocol.CARPRequest{
		Version:   protocol.Version,
		RequestID: protocol.NewRequestID(),
		Timestamp: protocol.UTCNowISO(),
		Operation: op,
		Requester: protocol.Requester{AgentID: s.agentID, SessionID: input.SessionID},
		Task: protocol.Task{
			Goal:                 input.Goal,
			RiskTier:             protocol.RiskTier(input.RiskTier),
			ContextHints:         input.Hints,
			RequiredCapabilities: input.Capabilities,
		},
		AtlasRefs: input.AtlasRefs,
	}

	s.mu.Lock()
	res, err := s.resolver.Resolve(input.SessionID, carp)
	s.mu.Unlock()
	if err != nil {
		return nil, ResolveOutput{}, err
	}

	out := ResolveOutput{
		ResolutionID:   res.ResolutionID,
		Decision:       res.Decision,
		ContextBlocks:  res.ContextBlocks,
		AllowedActions: res.AllowedActions,
		DeniedActions:  res.DeniedActions,
		Constraints:    res.Constraints,
		TTLSeconds:     res.TTLSeconds,
		TraceID:        res.TraceID,
	}
	if !res.Decision.Permits() {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func (s *Server) handleTrace(ctx context.Context, req *mcpsdk.CallToolRequest, input TraceInput) (*mcpsdk.CallToolResult, TraceOutput, error) {
	s.mu.Lock()
	events, err := s.resolver.GetTrace(input.SessionID)
	s.mu.Unlock()
	if err != nil {
		return nil, TraceOutput{}, err
	}
	return nil, TraceOutput{SessionID: input.SessionID, Events: events}, nil
}

func (s *Server) handleVerify(ctx context.Context, req *mcpsdk.CallToolRequest, input TraceInput) (*mcpsdk.CallToolResult, VerifyOutput, error) {
	s.mu.Lock()
	result, err := s.resolver.VerifyChain(input.SessionID)
	s.mu.Unlock()
	if err != nil {
		return nil, VerifyOutput{}, err
	}
	out := VerifyOutput{
		Valid:             result.Valid,
		EventCount:        result.EventCount,
		FirstInvalidIndex: result.FirstInvalidIndex,
		LastValidHash:     result.LastValidHash,
		Message:           result.Message,
	}
	if !result.Valid {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func (s *Server) handleAtlases(ctx context.Context, req *mcpsdk.CallToolRequest, input AtlasesInput) (*mcpsdk.CallToolResult, AtlasesOutput, error) {
	s.mu.Lock()
	ids := s.resolver.ListAtlases()
	s.mu.Unlock()
	if ids == nil {
		ids = []string{}
	}
	return nil, AtlasesOutput{Atlases: ids}, nil
}
