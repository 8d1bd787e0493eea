package ctxmatch

import "strings"

// Condition gates a context entry's eligibility. Conditions gate, keywords
// rank: an entry whose condition evaluates false is excluded regardless of
// keyword score.
type Condition struct {
	RequireCapability string `yaml:"require_capability,omitempty" json:"require_capability,omitempty"`
	ResourcePattern   string `yaml:"resource_pattern,omitempty" json:"resource_pattern,omitempty"`
}

// EvalContext is the evaluation context a query supplies to conditions.
type EvalContext struct {
	Capabilities []string
	Values       map[string]string
}

// Eval evaluates the condition. All set predicates must hold; an empty
// condition always passes.
func (c *Condition) Eval(ec EvalContext) bool {
	if c == nil {
		return true
	}
	if c.RequireCapability != "" {
		found := false
		for _, have := range ec.Capabilities {
			if strings.EqualFold(have, c.RequireCapability) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if c.ResourcePattern != "" {
		if !MatchPattern(c.ResourcePattern, ec.Values["resource"]) {
			return false
		}
	}
	return true
}

// MatchPattern checks if a value matches a glob-like pattern.
// Supports: *x* (contains), *.ext (suffix), /prefix/* (prefix), exact match.
// Matching is case-insensitive.
func MatchPattern(pattern, value string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}

	lowerValue := strings.ToLower(value)
	lowerPattern := strings.ToLower(pattern)

	// *x* — contains
	if strings.HasPrefix(lowerPattern, "*") && strings.HasSuffix(lowerPattern, "*") {
		inner := lowerPattern[1 : len(lowerPattern)-1]
		return strings.Contains(lowerValue, inner)
	}

	// *.ext — suffix
	if strings.HasPrefix(lowerPattern, "*") {
		suffix := lowerPattern[1:]
		return strings.HasSuffix(lowerValue, suffix)
	}

	// /prefix/* — prefix
	if strings.HasSuffix(lowerPattern, "*") {
		prefix := lowerPattern[:len(lowerPattern)-1]
		return strings.HasPrefix(lowerValue, prefix)
	}

	// Exact match
	return lowerValue == lowerPattern
}
