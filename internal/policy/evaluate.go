// Package policy applies the ordered rule chain to a request plus matched
// atlas data, producing a Decision.
package policy

import (
	"github.com/halcyon-sh/warden/internal/atlas"
	"github.com/halcyon-sh/warden/internal/protocol"
	"github.com/halcyon-sh/warden/internal/ratelimit"
)

// AtlasView is the immutable snapshot evaluation runs against. Evaluation
// is pure with respect to this view and the request: identical inputs
// always yield identical decisions.
type AtlasView struct {
	Atlases []*atlas.Manifest
	Rate    ratelimit.Snapshot
	Config  *Config
}

// ProvidesCapability reports whether any atlas in the view provides the
// named capability.
func (v AtlasView) ProvidesCapability(name string) bool {
	for _, m := range v.Atlases {
		if m.ProvidesCapability(name) {
			return true
		}
	}
	return false
}

// Verdict is one category's output: either pass (no opinion) or a terminal
// Decision.
type Verdict struct {
	Matched  bool
	Decision protocol.Decision
}

func pass() Verdict {
	return Verdict{}
}

func terminal(d protocol.Decision) Verdict {
	return Verdict{Matched: true, Decision: d}
}

// Category is one evaluator in the fixed-order chain. New categories are
// added by extending the chain, not by runtime reflection.
type Category interface {
	Name() string
	Evaluate(req *protocol.CARPRequest, view AtlasView) Verdict
}

// Evaluator is the short-circuiting chain of categories.
//
// Evaluation order (must not be changed):
//  1. Deny — explicit deny rules, unknown capabilities, risk ceiling
//  2. Approval — risk tier at or above the approval threshold
//  3. Rate limit — hard limit denies, soft limit degrades to partial
//  4. Default — Allow
type Evaluator struct {
	categories []Category
}

// NewEvaluator builds the standard category chain.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		categories: []Category{
			denyCategory{},
			approvalCategory{},
			rateLimitCategory{},
		},
	}
}

// Evaluate runs the chain in order; the first non-pass verdict wins.
// Absence of any match is the normal Allow path, not a failure.
func (e *Evaluator) Evaluate(req *protocol.CARPRequest, view AtlasView) protocol.Decision {
	for _, c := range e.categories {
		if v := c.Evaluate(req, view); v.Matched {
			return v.Decision
		}
	}
	return protocol.Allow()
}
