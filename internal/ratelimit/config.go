package ratelimit

import "time"

// Limit defines the request quota for one agent within a rolling window.
// Zero values mean no limit.
type Limit struct {
	MaxRequests int           `yaml:"max_requests" json:"max_requests"`
	SoftLimit   int           `yaml:"soft_limit,omitempty" json:"soft_limit,omitempty"`
	Window      time.Duration `yaml:"window" json:"window"`
}

// Enabled reports whether the limit is configured at all.
func (l Limit) Enabled() bool {
	return l.MaxRequests > 0 && l.Window > 0
}

// Limits maps agent ids to their limits. The "*" key is the fallback for
// agents without a dedicated entry.
type Limits map[string]Limit

// For returns the limit for an agent: dedicated entry first, then "*".
func (ls Limits) For(agentID string) Limit {
	if l, ok := ls[agentID]; ok {
		return l
	}
	return ls["*"]
}
