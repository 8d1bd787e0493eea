package atlas

import (
	"iter"
	"sort"

	"github.com/halcyon-sh/warden/internal/fault"
)

// Registry maps atlas ids to loaded manifests. No mutation after load
// except full replacement via Replace.
type Registry struct {
	manifests map[string]*Manifest
}

// NewRegistry creates an empty atlas registry.
func NewRegistry() *Registry {
	return &Registry{manifests: make(map[string]*Manifest)}
}

// Load validates and stores a manifest. Duplicate atlas ids are a
// redefinition error: last write does not silently win.
func (r *Registry) Load(m *Manifest) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if _, ok := r.manifests[m.ID]; ok {
		return fault.New(fault.AlreadyExists, "atlas %q already defined", m.ID)
	}
	r.manifests[m.ID] = m
	return nil
}

// Get returns the manifest for the given id.
func (r *Registry) Get(id string) (*Manifest, error) {
	m, ok := r.manifests[id]
	if !ok {
		return nil, fault.New(fault.NotFound, "atlas %q not loaded", id)
	}
	return m, nil
}

// List yields loaded atlas ids in sorted order. The sequence is lazy,
// finite, and restartable.
func (r *Registry) List() iter.Seq[string] {
	return func(yield func(string) bool) {
		ids := make([]string, 0, len(r.manifests))
		for id := range r.manifests {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			if !yield(id) {
				return
			}
		}
	}
}

// Len returns the number of loaded manifests.
func (r *Registry) Len() int {
	return len(r.manifests)
}

// All returns the loaded manifests in id order.
func (r *Registry) All() []*Manifest {
	out := make([]*Manifest, 0, len(r.manifests))
	for id := range r.List() {
		out = append(out, r.manifests[id])
	}
	return out
}

// Replace swaps the full manifest set atomically: either every manifest
// loads or the registry is left untouched.
func (r *Registry) Replace(manifests []*Manifest) error {
	next := make(map[string]*Manifest, len(manifests))
	for _, m := range manifests {
		if err := m.Validate(); err != nil {
			return err
		}
		if _, ok := next[m.ID]; ok {
			return fault.New(fault.AlreadyExists, "atlas %q already defined", m.ID)
		}
		next[m.ID] = m
	}
	r.manifests = next
	return nil
}
