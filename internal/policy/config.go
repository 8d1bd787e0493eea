package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/halcyon-sh/warden/internal/fault"
	"github.com/halcyon-sh/warden/internal/protocol"
	"github.com/halcyon-sh/warden/internal/ratelimit"
)

// DenyRule is an explicit deny evaluated before anything else.
// A rule matches when its set fields match; first match wins.
type DenyRule struct {
	GoalPattern string `yaml:"goal_pattern,omitempty" json:"goal_pattern,omitempty"`
	Capability  string `yaml:"capability,omitempty" json:"capability,omitempty"`
	Reason      string `yaml:"reason,omitempty" json:"reason,omitempty"`
}

// Config is the policy configuration consumed by the evaluator. A plain
// value type with defaults, constructed once before use.
type Config struct {
	// MaxRiskTier is the ceiling: tasks and actions above it are denied.
	MaxRiskTier protocol.RiskTier `yaml:"max_risk_tier" json:"max_risk_tier"`
	// ApprovalTier and up requires human sign-off (unless denied first).
	ApprovalTier           protocol.RiskTier `yaml:"approval_tier" json:"approval_tier"`
	Approver               string            `yaml:"approver" json:"approver"`
	ApprovalTimeoutSeconds int               `yaml:"approval_timeout_seconds" json:"approval_timeout_seconds"`

	DenyRules  []DenyRule       `yaml:"deny_rules,omitempty" json:"deny_rules,omitempty"`
	RateLimits ratelimit.Limits `yaml:"rate_limits,omitempty" json:"rate_limits,omitempty"`

	// Constraints are attached to every permitting resolution.
	Constraints []protocol.Constraint `yaml:"constraints,omitempty" json:"constraints,omitempty"`

	ResolutionTTLSeconds int `yaml:"resolution_ttl_seconds" json:"resolution_ttl_seconds"`
}

// DefaultConfig returns the configuration used when no policy file is given.
func DefaultConfig() *Config {
	return &Config{
		MaxRiskTier:            protocol.RiskHigh,
		ApprovalTier:           protocol.RiskHigh,
		Approver:               "operator",
		ApprovalTimeoutSeconds: 3600,
		ResolutionTTLSeconds:   300,
	}
}

// Validate checks tier names and rule shapes.
func (c *Config) Validate() error {
	if _, ok := protocol.RiskRank[c.MaxRiskTier]; !ok {
		return fault.New(fault.ValidationError, "policy: unknown max_risk_tier %q", c.MaxRiskTier)
	}
	if _, ok := protocol.RiskRank[c.ApprovalTier]; !ok {
		return fault.New(fault.ValidationError, "policy: unknown approval_tier %q", c.ApprovalTier)
	}
	for i, r := range c.DenyRules {
		if r.GoalPattern == "" && r.Capability == "" {
			return fault.New(fault.ValidationError, "policy: deny rule %d matches nothing", i)
		}
	}
	return nil
}

// LoadConfig reads a policy YAML file, fills defaults, and validates.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("policy: parse %s: %w", path, err)
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.MaxRiskTier == "" {
		cfg.MaxRiskTier = def.MaxRiskTier
	}
	if cfg.ApprovalTier == "" {
		cfg.ApprovalTier = def.ApprovalTier
	}
	if cfg.Approver == "" {
		cfg.Approver = def.Approver
	}
	if cfg.ApprovalTimeoutSeconds <= 0 {
		cfg.ApprovalTimeoutSeconds = def.ApprovalTimeoutSeconds
	}
	if cfg.ResolutionTTLSeconds <= 0 {
		cfg.ResolutionTTLSeconds = def.ResolutionTTLSeconds
	}
}
