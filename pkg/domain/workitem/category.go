package workitem

import "strings"

// StateCategory is the canonical three-phase lifecycle of a work item.
type StateCategory string

const (
	Unknown StateCategory = trackerStateUnknown
	ToDo    StateCategory = trackerStateToDo
	Doing   StateCategory = trackerStateDoing
	Done    StateCategory = trackerStateDone
)

func (c StateCategory) String() string {
	return string(c)
}

// StateClassification assigns raw workflow state names to categories.
//
// Membership is case-insensitive and names are not trimmed. When a name is
// configured in more than one list, Doing wins over Done and Done wins over
// ToDo.
type StateClassification struct {
	ToDoStates  []string `yaml:"todo_states,omitempty" json:"todo_states,omitempty"`
	DoingStates []string `yaml:"doing_states,omitempty" json:"doing_states,omitempty"`
	DoneStates  []string `yaml:"done_states,omitempty" json:"done_states,omitempty"`
}

// Categorize maps a raw state name to its category, or Unknown.
func (c StateClassification) Categorize(state string) StateCategory {
	switch {
	case containsFold(c.DoingStates, state):
		return Doing
	case containsFold(c.DoneStates, state):
		return Done
	case containsFold(c.ToDoStates, state):
		return ToDo
	default:
		return Unknown
	}
}

// States returns every configured state name, ToDo first.
func (c StateClassification) States() []string {
	out := make([]string, 0, len(c.ToDoStates)+len(c.DoingStates)+len(c.DoneStates))
	out = append(out, c.ToDoStates...)
	out = append(out, c.DoingStates...)
	return append(out, c.DoneStates...)
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
