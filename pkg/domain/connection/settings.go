package connection

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/worksync/pkg/domain/workitem"
)

// QuerySettings is the configuration shared by teams and portfolios.
type QuerySettings struct {
	Name           string `yaml:"name" json:"name"`
	ConnectionName string `yaml:"connection" json:"connection"`
	// Connection is hydrated from ConnectionName when the workspace loads.
	Connection *Connection `yaml:"-" json:"-"`

	Query         string   `yaml:"query,omitempty" json:"query,omitempty"`
	WorkItemTypes []string `yaml:"work_item_types,omitempty" json:"work_item_types,omitempty"`
	Tags          []string `yaml:"tags,omitempty" json:"tags,omitempty"`

	States        workitem.StateClassification `yaml:"states" json:"states"`
	BlockedStates []string                     `yaml:"blocked_states,omitempty" json:"blocked_states,omitempty"`
	BlockedTags   []string                     `yaml:"blocked_tags,omitempty" json:"blocked_tags,omitempty"`

	DoneItemsCutoffDays   int  `yaml:"done_items_cutoff_days" json:"done_items_cutoff_days"`
	ParentOverrideFieldID *int `yaml:"parent_override_field,omitempty" json:"parent_override_field,omitempty"`
}

// Team selects the work items one delivery team owns.
type Team struct {
	QuerySettings `yaml:",inline"`
}

// Portfolio selects features and maps their size and owner fields.
type Portfolio struct {
	QuerySettings `yaml:",inline"`

	SizeEstimateFieldID *int `yaml:"size_estimate_field,omitempty" json:"size_estimate_field,omitempty"`
	FeatureOwnerFieldID *int `yaml:"feature_owner_field,omitempty" json:"feature_owner_field,omitempty"`
}

// Validate checks the settings against their hydrated connection.
func (s *QuerySettings) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return &ValidationError{Field: "name", Message: "must not be empty"}
	}
	if s.Connection == nil {
		return fmt.Errorf("%s: %w: %q", s.Name, ErrConnectionNotFound, s.ConnectionName)
	}
	if len(s.States.States()) == 0 {
		return &ValidationError{Field: "states", Message: fmt.Sprintf("%s configures no workflow states", s.Name)}
	}
	if s.DoneItemsCutoffDays < 0 {
		return &ValidationError{Field: "done_items_cutoff_days", Message: "must not be negative"}
	}
	return s.checkFieldRef("parent_override_field", s.ParentOverrideFieldID)
}

// Validate checks the portfolio settings and its field references.
func (p *Portfolio) Validate() error {
	if err := p.QuerySettings.Validate(); err != nil {
		return err
	}
	if err := p.checkFieldRef("size_estimate_field", p.SizeEstimateFieldID); err != nil {
		return err
	}
	return p.checkFieldRef("feature_owner_field", p.FeatureOwnerFieldID)
}

func (s *QuerySettings) checkFieldRef(name string, id *int) error {
	if id == nil || s.Connection == nil {
		return nil
	}
	if _, ok := s.Connection.FieldDefinition(*id); !ok {
		return fmt.Errorf("%s %s: %w: %d", s.Name, name, ErrUnknownFieldDefinition, *id)
	}
	return nil
}

// AssemblyRules builds the assembler configuration for these settings. fields
// binds the connection's additional field definitions to remote field ids.
func (s *QuerySettings) AssemblyRules(fields []workitem.ResolvedField, itemViewPath string) workitem.AssemblyRules {
	rules := workitem.AssemblyRules{
		Classification:        s.States,
		BlockedStates:         s.BlockedStates,
		BlockedTags:           s.BlockedTags,
		WorkItemTypes:         s.WorkItemTypes,
		Tags:                  s.Tags,
		AdditionalFields:      fields,
		ParentOverrideFieldID: s.ParentOverrideFieldID,
		ItemViewPath:          itemViewPath,
	}
	if s.Connection != nil {
		rules.BaseURL = s.Connection.BaseURL()
	}
	return rules
}

// AssemblyRules adds the portfolio's size and owner fields.
func (p *Portfolio) AssemblyRules(fields []workitem.ResolvedField, itemViewPath string) workitem.AssemblyRules {
	rules := p.QuerySettings.AssemblyRules(fields, itemViewPath)
	rules.SizeEstimateFieldID = p.SizeEstimateFieldID
	rules.OwnerFieldID = p.FeatureOwnerFieldID
	return rules
}
