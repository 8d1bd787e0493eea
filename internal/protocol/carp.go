// Package protocol defines the CARP request/resolution records, the TRACE
// event records, and their canonical serialization. These shapes are the
// compatibility surface for every transport and audit consumer.
package protocol

import (
	"github.com/halcyon-sh/warden/internal/fault"
)

// Version is the CARP protocol version stamped on every request.
const Version = "carp/1"

// Operation is the kind of ask an agent makes.
type Operation string

const (
	OpResolve  Operation = "resolve"
	OpExecute  Operation = "execute"
	OpValidate Operation = "validate"
)

// RiskTier classifies how dangerous a task or action is.
type RiskTier string

const (
	RiskLow      RiskTier = "low"
	RiskMedium   RiskTier = "medium"
	RiskHigh     RiskTier = "high"
	RiskCritical RiskTier = "critical"
)

// RiskRank maps tiers to comparable integers. Higher rank = more dangerous.
var RiskRank = map[RiskTier]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// Requester identifies who is asking.
type Requester struct {
	AgentID         string `json:"agent_id"`
	SessionID       string `json:"session_id"`
	ParentSessionID string `json:"parent_session_id,omitempty"`
}

// Task describes what the agent wants to do.
type Task struct {
	Goal                 string   `json:"goal"`
	RiskTier             RiskTier `json:"risk_tier,omitempty"`
	ContextHints         []string `json:"context_hints,omitempty"`
	RequiredCapabilities []string `json:"required_capabilities,omitempty"`
}

// CARPRequest is an agent's ask. Immutable once submitted.
type CARPRequest struct {
	Version   string            `json:"carp_version"`
	RequestID string            `json:"request_id"`
	Timestamp string            `json:"ts"`
	Operation Operation         `json:"operation"`
	Requester Requester         `json:"requester"`
	Task      Task              `json:"task"`
	AtlasRefs []string          `json:"atlas_refs,omitempty"`
	Context   map[string]string `json:"context,omitempty"`
}

// Validate checks the structural requirements of a request.
func (r *CARPRequest) Validate() error {
	if r.Requester.AgentID == "" {
		return fault.New(fault.ValidationError, "request %s: empty agent id", r.RequestID)
	}
	if r.Task.Goal == "" {
		return fault.New(fault.ValidationError, "request %s: missing goal", r.RequestID)
	}
	switch r.Operation {
	case OpResolve, OpExecute, OpValidate:
	default:
		return fault.New(fault.ValidationError, "request %s: unknown operation %q", r.RequestID, r.Operation)
	}
	if r.Task.RiskTier != "" {
		if _, ok := RiskRank[r.Task.RiskTier]; !ok {
			return fault.New(fault.ValidationError, "request %s: unknown risk tier %q", r.RequestID, r.Task.RiskTier)
		}
	}
	return nil
}

// ContextBlock is one ranked piece of content injected into a resolution.
type ContextBlock struct {
	PackID      string `json:"pack_id"`
	Source      string `json:"source"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
	Priority    int    `json:"priority"`
	Score       int    `json:"score"`
}

// AllowedAction is an action the agent may take under this resolution.
type AllowedAction struct {
	ActionID    string            `json:"action_id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	ParamSchema map[string]string `json:"param_schema,omitempty"`
	RiskTier    RiskTier          `json:"risk_tier"`
}

// DeniedAction is an action explicitly withheld, with the reason.
type DeniedAction struct {
	ActionID string `json:"action_id"`
	Reason   string `json:"reason"`
}

// Constraint is a standing obligation attached to a resolution.
type Constraint struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// CARPResolution is the engine's answer to one request. Produced once,
// never mutated. The TTL defines the window after which the agent must
// request a fresh resolution.
type CARPResolution struct {
	ResolutionID   string          `json:"resolution_id"`
	RequestID      string          `json:"request_id"`
	Timestamp      string          `json:"ts"`
	Decision       Decision        `json:"decision"`
	ContextBlocks  []ContextBlock  `json:"context_blocks,omitempty"`
	AllowedActions []AllowedAction `json:"allowed_actions,omitempty"`
	DeniedActions  []DeniedAction  `json:"denied_actions,omitempty"`
	Constraints    []Constraint    `json:"constraints,omitempty"`
	TTLSeconds     int             `json:"ttl_seconds"`
	TraceID        string          `json:"trace_id"`
}
