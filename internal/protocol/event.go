package protocol

// Protocol-significant event types recorded in the TRACE log.
const (
	EventSessionStarted          = "session_started"
	EventCarpRequestReceived     = "carp_request_received"
	EventCarpResolutionCompleted = "carp_resolution_completed"
	EventSessionEnded            = "session_ended"
)

// RawEvent is the unhashed, pre-chain form of a TRACE event. It is a value
// object with no chain dependency; chaining happens on the log's worker.
type RawEvent struct {
	SessionID    string         `json:"session_id"`
	TraceID      string         `json:"trace_id"`
	EventID      string         `json:"event_id"`
	SpanID       string         `json:"span_id"`
	ParentSpanID string         `json:"parent_span_id,omitempty"`
	Type         string         `json:"event_type"`
	Payload      map[string]any `json:"payload"`
	Timestamp    string         `json:"ts"`
}

// TRACEEvent is the chained, immutable form. Sequence numbers within a
// session are strictly increasing by one, assigned at processing time.
// For every non-first event, PrevEventHash equals the prior event's
// EventHash; the first event's PrevEventHash equals the session's genesis
// seed.
type TRACEEvent struct {
	SessionID     string         `json:"session_id"`
	TraceID       string         `json:"trace_id"`
	EventID       string         `json:"event_id"`
	SpanID        string         `json:"span_id"`
	ParentSpanID  string         `json:"parent_span_id,omitempty"`
	Sequence      int            `json:"sequence"`
	Type          string         `json:"event_type"`
	Payload       map[string]any `json:"payload"`
	Timestamp     string         `json:"ts"`
	EventHash     string         `json:"event_hash"`
	PrevEventHash string         `json:"prev_event_hash"`
}
