// Package trace implements the hash-chained audit log: a non-blocking
// ingest queue, a single background chaining worker, and read-only chain
// verification.
package trace

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/halcyon-sh/warden/internal/protocol"
)

// GenesisSeed is the default previous-hash value for a session's first
// event. A fixed string, not a hash of prior data.
const GenesisSeed = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// chainedPayload is the hashed view of a TRACE event: every field except
// the hash fields themselves, in canonical JSON form.
type chainedPayload struct {
	SessionID    string         `json:"session_id"`
	TraceID      string         `json:"trace_id"`
	EventID      string         `json:"event_id"`
	SpanID       string         `json:"span_id"`
	ParentSpanID string         `json:"parent_span_id,omitempty"`
	Sequence     int            `json:"sequence"`
	Type         string         `json:"event_type"`
	Payload      map[string]any `json:"payload"`
	Timestamp    string         `json:"ts"`
}

// EventHash computes "sha256:" + hex(SHA-256(prev_hash_bytes ++
// canonical_payload_bytes)) for a chained event. Both the chaining worker
// and verification use this single definition.
func EventHash(prevHash string, ev protocol.TRACEEvent) (string, error) {
	canon, err := protocol.Canonical(chainedPayload{
		SessionID:    ev.SessionID,
		TraceID:      ev.TraceID,
		EventID:      ev.EventID,
		SpanID:       ev.SpanID,
		ParentSpanID: ev.ParentSpanID,
		Sequence:     ev.Sequence,
		Type:         ev.Type,
		Payload:      ev.Payload,
		Timestamp:    ev.Timestamp,
	})
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write(canon)
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}
