package typereg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// OverrideSource is the provenance of entries seeded from the override set.
const OverrideSource = "overrides"

// Entry is a merged definition and the source that won its slot.
type Entry struct {
	Definition any
	// Source is OverrideSource or a module name.
	Source string
}

// Registry is the merged type dictionary.
type Registry struct {
	entries map[string]Entry
}

func newRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Len returns the number of type names.
func (r *Registry) Len() int { return len(r.entries) }

// Get returns the entry for name.
func (r *Registry) Get(name string) (Entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// Names returns all type names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns name to definition, without provenance.
func (r *Registry) Definitions() map[string]any {
	out := make(map[string]any, len(r.entries))
	for name, e := range r.entries {
		out[name] = e.Definition
	}
	return out
}

// Canonical renders the registry as the document clients consume: one
// JSON object with keys sorted at every level, two-space indentation, no
// HTML escaping and a trailing newline. Equal registries render to equal
// bytes.
func (r *Registry) Canonical() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r.Definitions()); err != nil {
		return nil, fmt.Errorf("encoding type registry: %w", err)
	}
	return buf.Bytes(), nil
}
