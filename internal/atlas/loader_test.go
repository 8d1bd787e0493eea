package atlas

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/halcyon-sh/warden/internal/protocol"
)

const sampleManifest = `
id: git-ops
name: Git Operations
version: 1.2.0
domains: [git]
actions:
  - id: clone
    name: git_clone
    description: Clone a repository
    risk_tier: low
    param_schema:
      url: string
  - id: push
    name: git_push
    risk_tier: medium
context_packs:
  - id: git-conventions
    content: Use conventional commits.
    priority: 10
    keywords: [git, commit]
    condition:
      require_capability: git_push
`

func TestLoadFileParsesManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "git-ops.yaml")
	if err := os.WriteFile(path, []byte(sampleManifest), 0600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	m, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if m.ID != "git-ops" || m.Version != "1.2.0" {
		t.Errorf("parsed %q@%q", m.ID, m.Version)
	}
	if len(m.Actions) != 2 {
		t.Fatalf("actions = %d, want 2", len(m.Actions))
	}
	if m.Actions[0].RiskTier != protocol.RiskLow {
		t.Errorf("clone tier = %s, want low", m.Actions[0].RiskTier)
	}
	if m.Actions[0].ParamSchema["url"] != "string" {
		t.Errorf("param schema not parsed: %v", m.Actions[0].ParamSchema)
	}
	if len(m.ContextPacks) != 1 {
		t.Fatalf("context packs = %d, want 1", len(m.ContextPacks))
	}
	cp := m.ContextPacks[0]
	if cp.Condition == nil || cp.Condition.RequireCapability != "git_push" {
		t.Errorf("condition not parsed: %+v", cp.Condition)
	}
}

func TestLoadFileRejectsInvalidManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("id: broken\n"), 0600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("manifest without name/version should fail validation")
	}
}

func TestLoadDirLoadsSortedAndSkipsNonYAML(t *testing.T) {
	dir := t.TempDir()
	second := `{id: b-atlas, name: B, version: "1.0.0"}`
	first := `{id: a-atlas, name: A, version: "1.0.0"}`
	if err := os.WriteFile(filepath.Join(dir, "02-b.yaml"), []byte(second), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "01-a.yml"), []byte(first), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0600); err != nil {
		t.Fatal(err)
	}

	manifests, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(manifests) != 2 {
		t.Fatalf("loaded %d manifests, want 2", len(manifests))
	}
	if manifests[0].ID != "a-atlas" || manifests[1].ID != "b-atlas" {
		t.Errorf("load order: %s, %s", manifests[0].ID, manifests[1].ID)
	}
}

func TestLoadDirMissingDirectory(t *testing.T) {
	if _, err := LoadDir(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected an error for a missing directory")
	}
}
