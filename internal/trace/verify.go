package trace

import (
	"fmt"

	"github.com/halcyon-sh/warden/internal/fault"
	"github.com/halcyon-sh/warden/internal/protocol"
)

// VerifyResult is the outcome of a chain verification. Breaks are reported
// as data, never thrown: audit consumers must be able to inspect where the
// chain broke.
type VerifyResult struct {
	Valid             bool   `json:"valid"`
	EventCount        int    `json:"event_count"`
	FirstInvalidIndex int    `json:"first_invalid_index"`
	LastValidHash     string `json:"last_valid_hash"`
	Message           string `json:"message,omitempty"`
}

// VerifyChain walks a session's timeline from the first event, recomputing
// each hash from its recorded payload and checking the previous-hash links.
// Read-only; does not mutate chain state.
func (l *Log) VerifyChain(sessionID string) (VerifyResult, error) {
	events, err := l.Events(sessionID)
	if err != nil {
		return VerifyResult{}, err
	}
	return VerifyEvents(events, l.genesis), nil
}

// VerifyEvents validates an event sequence against a genesis seed.
func VerifyEvents(events []protocol.TRACEEvent, genesis string) VerifyResult {
	prev := genesis
	for i, ev := range events {
		if ev.Sequence != i+1 {
			return invalidAt(i, len(events), prev,
				fmt.Sprintf("sequence gap: event %d has sequence %d", i, ev.Sequence))
		}
		if ev.PrevEventHash != prev {
			return invalidAt(i, len(events), prev,
				fmt.Sprintf("previous-hash mismatch at index %d: expected %s, got %s", i, prev, ev.PrevEventHash))
		}
		recomputed, err := EventHash(prev, ev)
		if err != nil {
			return invalidAt(i, len(events), prev,
				fmt.Sprintf("cannot recompute hash at index %d: %v", i, err))
		}
		if recomputed != ev.EventHash {
			return invalidAt(i, len(events), prev,
				fmt.Sprintf("hash mismatch at index %d: payload does not reproduce recorded event_hash", i))
		}
		prev = ev.EventHash
	}
	return VerifyResult{
		Valid:             true,
		EventCount:        len(events),
		FirstInvalidIndex: -1,
		LastValidHash:     prev,
	}
}

// AsError converts a broken verification into a typed fault. Valid results
// return nil.
func (r VerifyResult) AsError() error {
	if r.Valid {
		return nil
	}
	return fault.New(fault.ChainIntegrityErr, "%s", r.Message)
}

func invalidAt(index, count int, lastValid, msg string) VerifyResult {
	return VerifyResult{
		Valid:             false,
		EventCount:        count,
		FirstInvalidIndex: index,
		LastValidHash:     lastValid,
		Message:           msg,
	}
}
