package resolver

import "time"

// SessionState is the lifecycle state of a session.
type SessionState string

const (
	StateActive SessionState = "active"
	StateEnded  SessionState = "ended"
)

// Session tracks one agent session. The session's chain tip and timeline
// live in the trace log; this record holds identity and lifecycle.
type Session struct {
	ID        string       `json:"session_id"`
	AgentID   string       `json:"agent_id"`
	Goal      string       `json:"goal,omitempty"`
	TraceID   string       `json:"trace_id"`
	SpanID    string       `json:"span_id"`
	State     SessionState `json:"state"`
	CreatedAt time.Time    `json:"created_at"`
}
