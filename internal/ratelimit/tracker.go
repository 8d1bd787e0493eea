// Package ratelimit tracks per-agent request counts in rolling windows.
// The snapshot/increment split keeps policy evaluation pure: the evaluator
// sees a Snapshot value, never the tracker itself.
package ratelimit

import "time"

// Snapshot is the point-in-time rate state supplied to policy evaluation.
type Snapshot struct {
	Count  int
	Limit  Limit
	Window time.Duration
}

// Exceeded reports whether the hard limit is reached.
func (s Snapshot) Exceeded() bool {
	return s.Limit.Enabled() && s.Count >= s.Limit.MaxRequests
}

// SoftExceeded reports whether the soft limit is crossed but the hard
// limit is not.
func (s Snapshot) SoftExceeded() bool {
	return s.Limit.Enabled() && s.Limit.SoftLimit > 0 &&
		s.Count >= s.Limit.SoftLimit && s.Count < s.Limit.MaxRequests
}

// Tracker holds windowed counters per agent. Not safe for concurrent use;
// its owner serializes access.
type Tracker struct {
	counts      map[string]int
	windowStart map[string]time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		counts:      make(map[string]int),
		windowStart: make(map[string]time.Time),
	}
}

// Snapshot reads the current count for an agent under the given limit.
// If the window has expired, the counter and window start are reset.
func (t *Tracker) Snapshot(agentID string, limit Limit, now time.Time) Snapshot {
	if !limit.Enabled() {
		return Snapshot{Limit: limit}
	}
	start, ok := t.windowStart[agentID]
	if !ok || now.Sub(start) >= limit.Window {
		t.counts[agentID] = 0
		t.windowStart[agentID] = now
	}
	return Snapshot{Count: t.counts[agentID], Limit: limit, Window: limit.Window}
}

// Increment records one request for the agent.
func (t *Tracker) Increment(agentID string) {
	t.counts[agentID]++
}
