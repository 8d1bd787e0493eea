// Package atlas holds loaded policy/action manifests keyed by atlas id.
// Manifests are immutable and versioned; the registry is read-only at
// resolution time.
package atlas

import (
	"strings"

	"github.com/halcyon-sh/warden/internal/ctxmatch"
	"github.com/halcyon-sh/warden/internal/fault"
	"github.com/halcyon-sh/warden/internal/protocol"
)

// Action is one permitted operation declared by an atlas. Its name doubles
// as the capability agents reference in required_capabilities.
type Action struct {
	ID          string            `yaml:"id" json:"id"`
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	ParamSchema map[string]string `yaml:"param_schema,omitempty" json:"param_schema,omitempty"`
	RiskTier    protocol.RiskTier `yaml:"risk_tier" json:"risk_tier"`
}

// ContextPack is a prioritized bundle of content an atlas offers for
// injection.
type ContextPack struct {
	ID          string              `yaml:"id" json:"id"`
	Content     string              `yaml:"content" json:"content"`
	ContentType string              `yaml:"content_type,omitempty" json:"content_type,omitempty"`
	Priority    int                 `yaml:"priority" json:"priority"`
	Keywords    []string            `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	Condition   *ctxmatch.Condition `yaml:"condition,omitempty" json:"condition,omitempty"`
}

// Manifest is an immutable, versioned atlas: permitted actions, domains,
// and context packs for one governance domain.
type Manifest struct {
	ID           string        `yaml:"id" json:"id"`
	Name         string        `yaml:"name" json:"name"`
	Version      string        `yaml:"version" json:"version"`
	Description  string        `yaml:"description,omitempty" json:"description,omitempty"`
	Domains      []string      `yaml:"domains,omitempty" json:"domains,omitempty"`
	Actions      []Action      `yaml:"actions,omitempty" json:"actions,omitempty"`
	ContextPacks []ContextPack `yaml:"context_packs,omitempty" json:"context_packs,omitempty"`
}

// Validate checks the structural requirements of a manifest.
func (m *Manifest) Validate() error {
	if m.ID == "" {
		return fault.New(fault.ValidationError, "atlas manifest: empty id")
	}
	if m.Name == "" {
		return fault.New(fault.ValidationError, "atlas %q: empty name", m.ID)
	}
	if m.Version == "" {
		return fault.New(fault.ValidationError, "atlas %q: empty version", m.ID)
	}
	for _, a := range m.Actions {
		if a.ID == "" || a.Name == "" {
			return fault.New(fault.ValidationError, "atlas %q: action with empty id or name", m.ID)
		}
		if a.RiskTier != "" {
			if _, ok := protocol.RiskRank[a.RiskTier]; !ok {
				return fault.New(fault.ValidationError, "atlas %q: action %q: unknown risk tier %q", m.ID, a.ID, a.RiskTier)
			}
		}
	}
	for _, cp := range m.ContextPacks {
		if cp.ID == "" {
			return fault.New(fault.ValidationError, "atlas %q: context pack with empty id", m.ID)
		}
	}
	return nil
}

// ProvidesCapability reports whether any action in the manifest provides
// the named capability (action name, case-insensitive).
func (m *Manifest) ProvidesCapability(name string) bool {
	for _, a := range m.Actions {
		if strings.EqualFold(a.Name, name) {
			return true
		}
	}
	return false
}
