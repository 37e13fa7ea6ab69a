package writeback

import (
	"fmt"
	"strings"
)

// ValueSource names a value derived by synchronization that can be written back.
type ValueSource string

const (
	SourceWorkItemAge ValueSource = "work_item_age"
	SourceCycleTime   ValueSource = "cycle_time"
	SourceFeatureSize ValueSource = "feature_size"
)

// Scope selects whether a mapping applies to team items or portfolio features.
type Scope string

const (
	ScopeTeam      Scope = "team"
	ScopePortfolio Scope = "portfolio"
)

// Mapping routes a value source into a remote field.
type Mapping struct {
	ValueSource          ValueSource `json:"value_source" yaml:"value_source"`
	AppliesTo            Scope       `json:"applies_to" yaml:"applies_to"`
	TargetFieldReference string      `json:"target_field_reference" yaml:"target_field_reference"`
}

// Validate checks that the mapping names a known source, a scope that source
// can serve and a target field.
func (m Mapping) Validate() error {
	if strings.TrimSpace(m.TargetFieldReference) == "" {
		return fmt.Errorf("%w: target field reference is required", ErrInvalidMapping)
	}

	switch m.AppliesTo {
	case ScopeTeam, ScopePortfolio:
	default:
		return fmt.Errorf("%w: unknown scope %q", ErrInvalidMapping, m.AppliesTo)
	}

	switch m.ValueSource {
	case SourceWorkItemAge, SourceCycleTime:
		return nil
	case SourceFeatureSize:
		if m.AppliesTo != ScopePortfolio {
			return fmt.Errorf("%w: %s only applies to portfolios", ErrInvalidMapping, m.ValueSource)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownValueSource, m.ValueSource)
	}
}

// ForScope returns the mappings that apply to scope, in order.
func ForScope(mappings []Mapping, scope Scope) []Mapping {
	var out []Mapping
	for _, m := range mappings {
		if m.AppliesTo == scope {
			out = append(out, m)
		}
	}
	return out
}
