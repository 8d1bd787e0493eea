package protocol

// DecisionType discriminates the Decision tagged variant.
type DecisionType string

const (
	DecisionAllow            DecisionType = "allow"
	DecisionDeny             DecisionType = "deny"
	DecisionRequiresApproval DecisionType = "requires_approval"
	DecisionPartial          DecisionType = "partial"
)

// Decision is the outcome of policy evaluation for one resolution.
// Exactly one variant per resolution; terminal for that resolution.
type Decision struct {
	Type           DecisionType `json:"type"`
	Reason         string       `json:"reason,omitempty"`
	Approver       string       `json:"approver,omitempty"`
	TimeoutSeconds int          `json:"timeout_seconds,omitempty"`
}

// Allow grants the request unconditionally.
func Allow() Decision {
	return Decision{Type: DecisionAllow}
}

// Deny refuses the request with a reason. Rate-limit denials use this
// variant with a rate-limit-specific reason rather than a separate type.
func Deny(reason string) Decision {
	return Decision{Type: DecisionDeny, Reason: reason}
}

// RequiresApproval defers the request to a human/external approver.
// The timeout is a policy-declared value, not an engine-enforced timer.
func RequiresApproval(approver string, timeoutSeconds int) Decision {
	return Decision{Type: DecisionRequiresApproval, Approver: approver, TimeoutSeconds: timeoutSeconds}
}

// Partial grants a reduced form of the request with a reason.
func Partial(reason string) Decision {
	return Decision{Type: DecisionPartial, Reason: reason}
}

// Permits reports whether the decision lets the agent proceed in any form.
func (d Decision) Permits() bool {
	return d.Type == DecisionAllow || d.Type == DecisionPartial
}
