package plugin

import "sort"

// Registration points a connector kind at the binary that serves it.
type Registration struct {
	// Binary is the path to the connector binary.
	Binary string `yaml:"binary" json:"binary"`
	// Options are defaults merged under the connection's own options.
	Options map[string]string `yaml:"options,omitempty" json:"options,omitempty"`
}

// Registry holds every registered connector binary by kind.
type Registry struct {
	Connectors map[string]Registration `yaml:"connectors" json:"connectors"`
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{Connectors: make(map[string]Registration)}
}

// Get returns the registration for kind, or nil.
func (r *Registry) Get(kind string) *Registration {
	if r == nil || r.Connectors == nil {
		return nil
	}
	reg, ok := r.Connectors[kind]
	if !ok {
		return nil
	}
	return &reg
}

// Set adds or replaces the registration for kind.
func (r *Registry) Set(kind string, reg Registration) {
	if r.Connectors == nil {
		r.Connectors = make(map[string]Registration)
	}
	r.Connectors[kind] = reg
}

// Remove deletes the registration for kind.
func (r *Registry) Remove(kind string) {
	if r.Connectors != nil {
		delete(r.Connectors, kind)
	}
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	if r == nil || len(r.Connectors) == 0 {
		return nil
	}
	kinds := make([]string, 0, len(r.Connectors))
	for k := range r.Connectors {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// MergeOptions layers options over the registration defaults.
func (reg Registration) MergeOptions(options map[string]string) map[string]string {
	merged := make(map[string]string, len(reg.Options)+len(options))
	for k, v := range reg.Options {
		merged[k] = v
	}
	for k, v := range options {
		merged[k] = v
	}
	return merged
}
