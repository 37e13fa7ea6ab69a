// Package workitem holds the canonical work item model and the pure logic that
// derives it from connector payloads: state classification, lifecycle date
// inference, assembly and cutoff filtering.
package workitem

import "time"

// FlaggedTag is added to an item's tags when the source system flags it.
const FlaggedTag = "Flagged"

// RawItem is a work item as a connector reports it.
type RawItem struct {
	ID       string
	Name     string
	Type     string
	State    string
	Tags     []string
	ParentID string
	Flagged  bool
	Order    string

	CreatedAt time.Time

	// Fields maps a remote field id to its values. A missing key means the
	// field is absent on the item; a key holding [""] means it is present
	// but empty.
	Fields map[string][]string

	History []StateHistoryEntry
	// HistoryLoaded is set when History is complete. Connectors that fetch
	// history lazily leave it false.
	HistoryLoaded bool
}

// WorkItem is the canonical record produced by synchronization.
type WorkItem struct {
	ReferenceID       string        `json:"reference_id"`
	Name              string        `json:"name"`
	Type              string        `json:"type,omitempty"`
	State             string        `json:"state"`
	StateCategory     StateCategory `json:"state_category"`
	ParentReferenceID string        `json:"parent_reference_id,omitempty"`
	Tags              []string      `json:"tags,omitempty"`
	IsBlocked         bool          `json:"is_blocked"`

	CreatedDate *time.Time `json:"created_date,omitempty"`
	StartedDate *time.Time `json:"started_date,omitempty"`
	ClosedDate  *time.Time `json:"closed_date,omitempty"`

	Order                 string         `json:"order"`
	EstimatedSize         int            `json:"estimated_size"`
	OwningTeam            string         `json:"owning_team,omitempty"`
	AdditionalFieldValues map[int]string `json:"additional_field_values,omitempty"`
	URL                   string         `json:"url"`
}

// CycleTime is the number of calendar days from start to close, counting
// both ends. It is 0 for items that are not closed.
func (w WorkItem) CycleTime() int {
	if w.StartedDate == nil || w.ClosedDate == nil {
		return 0
	}
	return daysInclusive(*w.StartedDate, *w.ClosedDate)
}

// WorkItemAge is the number of calendar days an item has been in progress,
// counting both ends. Closed items stop ageing at their close date.
func (w WorkItem) WorkItemAge(now time.Time) int {
	if w.StartedDate == nil {
		return 0
	}
	end := now
	if w.ClosedDate != nil {
		end = *w.ClosedDate
	}
	return daysInclusive(*w.StartedDate, end)
}

func daysInclusive(from, to time.Time) int {
	days := int(startOfDay(to).Sub(startOfDay(from)).Hours()/24) + 1
	if days < 0 {
		return 0
	}
	return days
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParentFeature is the summary of a parent item referenced by work items.
type ParentFeature struct {
	ReferenceID string `json:"reference_id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
}
