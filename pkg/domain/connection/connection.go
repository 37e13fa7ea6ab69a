// Package connection holds the configuration the engine runs against: remote
// connections with their additional field definitions, and the team and
// portfolio query settings that select and shape work items.
package connection

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/worksync/pkg/domain/writeback"
)

// Well-known option keys shared by connectors.
const (
	OptionURL = "url"
)

// Option is a single connection setting. Secret values are resolved through a
// SecretResolver before they reach a connector.
type Option struct {
	Key      string `yaml:"key" json:"key"`
	Value    string `yaml:"value" json:"value"`
	IsSecret bool   `yaml:"secret,omitempty" json:"secret,omitempty"`
}

// AdditionalFieldDefinition exposes a remote field under a caller-assigned id.
type AdditionalFieldDefinition struct {
	ID          int    `yaml:"id" json:"id"`
	DisplayName string `yaml:"name" json:"name"`
	// Reference is the remote field's id, key or display name.
	Reference string `yaml:"reference" json:"reference"`
}

// Connection describes how to reach one remote work-tracking system.
type Connection struct {
	Name                       string                      `yaml:"name" json:"name"`
	Kind                       string                      `yaml:"kind" json:"kind"`
	Options                    []Option                    `yaml:"options,omitempty" json:"options,omitempty"`
	AdditionalFieldDefinitions []AdditionalFieldDefinition `yaml:"additional_fields,omitempty" json:"additional_fields,omitempty"`
	WriteBackMappings          []writeback.Mapping         `yaml:"write_back,omitempty" json:"write_back,omitempty"`
}

// Option returns the raw value of key, or "" when it is not set.
func (c *Connection) Option(key string) string {
	for _, o := range c.Options {
		if strings.EqualFold(o.Key, key) {
			return o.Value
		}
	}
	return ""
}

// BaseURL returns the connection's url option.
func (c *Connection) BaseURL() string {
	return c.Option(OptionURL)
}

// FieldDefinition looks up an additional field definition by id.
func (c *Connection) FieldDefinition(id int) (AdditionalFieldDefinition, bool) {
	for _, d := range c.AdditionalFieldDefinitions {
		if d.ID == id {
			return d, true
		}
	}
	return AdditionalFieldDefinition{}, false
}

// Validate checks the connection's own configuration without contacting the
// remote system.
func (c *Connection) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return &ValidationError{Field: "name", Message: "must not be empty"}
	}
	if strings.TrimSpace(c.Kind) == "" {
		return &ValidationError{Field: "kind", Message: fmt.Sprintf("connection %q has no kind", c.Name)}
	}

	seen := make(map[int]bool, len(c.AdditionalFieldDefinitions))
	for _, d := range c.AdditionalFieldDefinitions {
		if seen[d.ID] {
			return &ValidationError{Field: "additional_fields", Message: fmt.Sprintf("duplicate id %d", d.ID)}
		}
		seen[d.ID] = true
		if strings.TrimSpace(d.Reference) == "" {
			return &ValidationError{Field: "additional_fields", Message: fmt.Sprintf("field %d has no reference", d.ID)}
		}
	}

	for _, m := range c.WriteBackMappings {
		if err := m.Validate(); err != nil {
			return &ValidationError{Field: "write_back", Message: err.Error()}
		}
	}
	return nil
}

// SecretResolver turns a stored secret option value into the secret itself.
type SecretResolver interface {
	Resolve(ctx context.Context, value string) (string, error)
}

// ResolveOptions returns the connection options as a map, resolving secret
// values with resolver. A nil resolver passes secrets through unchanged.
func (c *Connection) ResolveOptions(ctx context.Context, resolver SecretResolver) (map[string]string, error) {
	out := make(map[string]string, len(c.Options))
	for _, o := range c.Options {
		value := o.Value
		if o.IsSecret && resolver != nil {
			resolved, err := resolver.Resolve(ctx, value)
			if err != nil {
				return nil, fmt.Errorf("%w: option %s of connection %s: %v", ErrSecretNotResolved, o.Key, c.Name, err)
			}
			value = resolved
		}
		out[o.Key] = value
	}
	return out, nil
}
