package protocol

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewTraceID generates a trace ID ("t-" prefix, 12 hex chars).
func NewTraceID() string {
	return prefixedID("t", 12)
}

// NewSpanID generates a span ID ("s-" prefix, 8 hex chars).
func NewSpanID() string {
	return prefixedID("s", 8)
}

// NewSessionID generates a session ID ("sess-" prefix, 16 hex chars).
func NewSessionID() string {
	return prefixedID("sess", 16)
}

// NewRequestID generates a request ID.
func NewRequestID() string {
	return uuid.NewString()
}

// NewResolutionID generates a resolution ID.
func NewResolutionID() string {
	return uuid.NewString()
}

// NewEventID generates an event ID.
func NewEventID() string {
	return uuid.NewString()
}

// UTCNowISO returns the current UTC time in ISO format with Z suffix.
func UTCNowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}

func prefixedID(prefix string, hexLen int) string {
	b := make([]byte, (hexLen+1)/2)
	if _, err := rand.Read(b); err != nil {
		// Fallback to timestamp-based ID if crypto/rand fails
		return fmt.Sprintf("%s-%x", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%s", prefix, hex.EncodeToString(b)[:hexLen])
}
