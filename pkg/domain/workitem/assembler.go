package workitem

import (
	"math"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/worksync/pkg/domain/rank"
)

// ResolvedField binds a caller-assigned additional field definition id to the
// remote field id a connector uses in RawItem.Fields.
type ResolvedField struct {
	DefinitionID  int
	RemoteFieldID string
}

// AssemblyRules is the per-team or per-portfolio configuration the Assembler
// applies to every raw item.
type AssemblyRules struct {
	Classification StateClassification

	BlockedStates []string
	BlockedTags   []string

	// WorkItemTypes and Tags filter items when non-empty.
	WorkItemTypes []string
	Tags          []string

	AdditionalFields []ResolvedField

	// Ids of entries in AdditionalFields.
	ParentOverrideFieldID *int
	SizeEstimateFieldID   *int
	OwnerFieldID          *int

	BaseURL      string
	ItemViewPath string
}

// Assembler turns raw connector items into canonical work items. It holds no
// mutable state and may be shared across goroutines.
type Assembler struct {
	rules  AssemblyRules
	remote map[int]string
}

// NewAssembler creates an Assembler for rules.
func NewAssembler(rules AssemblyRules) *Assembler {
	remote := make(map[int]string, len(rules.AdditionalFields))
	for _, f := range rules.AdditionalFields {
		remote[f.DefinitionID] = f.RemoteFieldID
	}
	return &Assembler{rules: rules, remote: remote}
}

// Assemble builds the canonical record for raw. It returns false when the item
// is filtered out by type or tag.
func (a *Assembler) Assemble(raw RawItem) (WorkItem, bool) {
	if len(a.rules.WorkItemTypes) > 0 && !containsFold(a.rules.WorkItemTypes, raw.Type) {
		return WorkItem{}, false
	}

	tags := collectTags(raw)
	if len(a.rules.Tags) > 0 && !anyFold(tags, a.rules.Tags) {
		return WorkItem{}, false
	}

	item := WorkItem{
		ReferenceID:       raw.ID,
		Name:              raw.Name,
		Type:              raw.Type,
		State:             raw.State,
		StateCategory:     a.rules.Classification.Categorize(raw.State),
		ParentReferenceID: raw.ParentID,
		Tags:              tags,
		IsBlocked:         containsFold(a.rules.BlockedStates, raw.State) || anyFold(tags, a.rules.BlockedTags),
		Order:             raw.Order,
		URL:               strings.TrimRight(a.rules.BaseURL, "/") + a.rules.ItemViewPath + raw.ID,
	}
	if item.Order == "" {
		item.Order = rank.Default
	}
	if !raw.CreatedAt.IsZero() {
		created := raw.CreatedAt.UTC()
		item.CreatedDate = &created
	}

	lifecycle := InferLifecycle(raw.History, a.rules.Classification)
	item.StartedDate = lifecycle.StartedDate
	item.ClosedDate = lifecycle.ClosedDate

	if len(a.rules.AdditionalFields) > 0 {
		item.AdditionalFieldValues = make(map[int]string, len(a.rules.AdditionalFields))
		for _, f := range a.rules.AdditionalFields {
			if values, ok := raw.Fields[f.RemoteFieldID]; ok {
				item.AdditionalFieldValues[f.DefinitionID] = joinValues(values)
			}
		}
	}

	if parent, ok := a.fieldValue(raw, a.rules.ParentOverrideFieldID); ok && parent != "" {
		item.ParentReferenceID = parent
	}
	if owner, ok := a.fieldValue(raw, a.rules.OwnerFieldID); ok {
		item.OwningTeam = owner
	}
	if size, ok := a.fieldValue(raw, a.rules.SizeEstimateFieldID); ok {
		item.EstimatedSize = parseSize(size)
	}

	return item, true
}

func (a *Assembler) fieldValue(raw RawItem, definitionID *int) (string, bool) {
	if definitionID == nil {
		return "", false
	}
	remoteID, ok := a.remote[*definitionID]
	if !ok {
		return "", false
	}
	values, ok := raw.Fields[remoteID]
	if !ok {
		return "", false
	}
	return strings.TrimSpace(joinValues(values)), true
}

func joinValues(values []string) string {
	nonEmpty := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			nonEmpty = append(nonEmpty, v)
		}
	}
	return strings.Join(nonEmpty, ", ")
}

// parseSize truncates a numeric field value to whole units, clamped to the
// int range. Anything that does not parse counts as 0.
func parseSize(value string) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	switch {
	case f >= math.MaxInt:
		return math.MaxInt
	case f <= math.MinInt:
		return math.MinInt
	}
	return int(f)
}

func collectTags(raw RawItem) []string {
	tags := make([]string, 0, len(raw.Tags)+1)
	add := func(tag string) {
		if tag == "" || containsFold(tags, tag) {
			return
		}
		tags = append(tags, tag)
	}
	for _, tag := range raw.Tags {
		add(tag)
	}
	if raw.Flagged {
		add(FlaggedTag)
	}
	return tags
}

func anyFold(values, candidates []string) bool {
	for _, v := range values {
		if containsFold(candidates, v) {
			return true
		}
	}
	return false
}
