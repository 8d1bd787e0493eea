package policy

import (
	"fmt"
	"strings"

	"github.com/halcyon-sh/warden/internal/ctxmatch"
	"github.com/halcyon-sh/warden/internal/protocol"
)

// denyCategory holds the explicit deny rules. Deny strictly precedes
// approval in the chain: a request matching both yields Deny.
type denyCategory struct{}

func (denyCategory) Name() string { return "deny" }

func (denyCategory) Evaluate(req *protocol.CARPRequest, view AtlasView) Verdict {
	cfg := view.Config

	for _, rule := range cfg.DenyRules {
		if matchDenyRule(rule, req) {
			reason := rule.Reason
			if reason == "" {
				reason = fmt.Sprintf("denied by policy rule (goal=%q capability=%q)", rule.GoalPattern, rule.Capability)
			}
			return terminal(protocol.Deny(reason))
		}
	}

	for _, capName := range req.Task.RequiredCapabilities {
		if !view.ProvidesCapability(capName) {
			return terminal(protocol.Deny(
				fmt.Sprintf("capability %q not provided by any referenced atlas", capName)))
		}
	}

	if req.Task.RiskTier != "" {
		if protocol.RiskRank[req.Task.RiskTier] > protocol.RiskRank[cfg.MaxRiskTier] {
			return terminal(protocol.Deny(
				fmt.Sprintf("risk tier %s exceeds ceiling %s", req.Task.RiskTier, cfg.MaxRiskTier)))
		}
	}

	return pass()
}

func matchDenyRule(rule DenyRule, req *protocol.CARPRequest) bool {
	if rule.GoalPattern != "" && !ctxmatch.MatchPattern(rule.GoalPattern, req.Task.Goal) {
		return false
	}
	if rule.Capability != "" {
		found := false
		for _, c := range req.Task.RequiredCapabilities {
			if strings.EqualFold(c, rule.Capability) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// approvalCategory requires sign-off for high-tier tasks. The timeout is a
// policy-declared value surfaced to the caller, not an engine timer.
type approvalCategory struct{}

func (approvalCategory) Name() string { return "approval" }

func (approvalCategory) Evaluate(req *protocol.CARPRequest, view AtlasView) Verdict {
	cfg := view.Config
	if req.Task.RiskTier == "" {
		return pass()
	}
	if protocol.RiskRank[req.Task.RiskTier] >= protocol.RiskRank[cfg.ApprovalTier] {
		return terminal(protocol.RequiresApproval(cfg.Approver, cfg.ApprovalTimeoutSeconds))
	}
	return pass()
}

// rateLimitCategory throttles per-agent request volume. A hard-limit hit
// is a Deny with a rate-limit reason (not a distinct variant); crossing
// only the soft limit degrades the resolution to Partial.
type rateLimitCategory struct{}

func (rateLimitCategory) Name() string { return "rate_limit" }

func (rateLimitCategory) Evaluate(req *protocol.CARPRequest, view AtlasView) Verdict {
	snap := view.Rate
	if snap.Exceeded() {
		return terminal(protocol.Deny(fmt.Sprintf(
			"rate limit exceeded: %d/%d requests in %s window",
			snap.Count, snap.Limit.MaxRequests, snap.Window)))
	}
	if snap.SoftExceeded() {
		return terminal(protocol.Partial(fmt.Sprintf(
			"rate limit soft threshold crossed: %d/%d requests in %s window",
			snap.Count, snap.Limit.MaxRequests, snap.Window)))
	}
	return pass()
}
