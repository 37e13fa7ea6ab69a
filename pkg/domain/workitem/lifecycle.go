package workitem

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/statekit"
)

// Lifecycle holds the dates reconstructed from a state history.
type Lifecycle struct {
	StartedDate *time.Time
	ClosedDate  *time.Time
}

// InferLifecycle walks history oldest first and derives when the item was
// started and closed.
//
// Only transitions that change the category count. Each entry into Doing
// overwrites the started candidate and each entry into Done overwrites the
// closed candidate; leaving a category clears nothing. An item that reached
// Done without passing through Doing is considered started when it closed.
func InferLifecycle(history []StateHistoryEntry, classification StateClassification) Lifecycle {
	if len(history) == 0 {
		return Lifecycle{}
	}

	initial := Unknown
	if from := history[0].From; from != "" {
		initial = classification.Categorize(from)
	}
	tracker := newCategoryTracker(initial)

	var started, closed *time.Time
	for _, entry := range history {
		category := classification.Categorize(entry.State)
		if !tracker.Enter(category) {
			continue
		}

		ts := entry.Timestamp.UTC()
		switch category {
		case Doing:
			started = &ts
		case Done:
			closed = &ts
		}
	}

	if started == nil && closed != nil {
		s := *closed
		started = &s
	}
	return Lifecycle{StartedDate: started, ClosedDate: closed}
}

// State and event names of the category machine. State names double as the
// StateCategory values.
const (
	trackerStateUnknown = "unknown"
	trackerStateToDo    = "todo"
	trackerStateDoing   = "doing"
	trackerStateDone    = "done"

	eventEnterUnknown = "enter_unknown"
	eventEnterToDo    = "enter_todo"
	eventEnterDoing   = "enter_doing"
	eventEnterDone    = "enter_done"
)

var categoryEvents = map[StateCategory]string{
	Unknown: eventEnterUnknown,
	ToDo:    eventEnterToDo,
	Doing:   eventEnterDoing,
	Done:    eventEnterDone,
}

type trackerContext struct{}

// categoryTracker follows the current category of one item. Every state
// accepts the events of the other three categories; the event of the current
// category has no transition, so intra-category moves leave it untouched.
type categoryTracker struct {
	interpreter *statekit.Interpreter[trackerContext]
}

func newCategoryTracker(initial StateCategory) *categoryTracker {
	builder := statekit.NewMachine[trackerContext]("category-tracker").
		WithInitial(statekit.StateID(string(initial))).
		WithContext(trackerContext{})

	builder.State(trackerStateUnknown).
		On(eventEnterToDo).Target(trackerStateToDo).
		On(eventEnterDoing).Target(trackerStateDoing).
		On(eventEnterDone).Target(trackerStateDone).
		Done()

	builder.State(trackerStateToDo).
		On(eventEnterUnknown).Target(trackerStateUnknown).
		On(eventEnterDoing).Target(trackerStateDoing).
		On(eventEnterDone).Target(trackerStateDone).
		Done()

	builder.State(trackerStateDoing).
		On(eventEnterUnknown).Target(trackerStateUnknown).
		On(eventEnterToDo).Target(trackerStateToDo).
		On(eventEnterDone).Target(trackerStateDone).
		Done()

	builder.State(trackerStateDone).
		On(eventEnterUnknown).Target(trackerStateUnknown).
		On(eventEnterToDo).Target(trackerStateToDo).
		On(eventEnterDoing).Target(trackerStateDoing).
		Done()

	machine, err := builder.Build()
	if err != nil {
		// The machine definition is static, so this only fires on a broken build.
		panic(fmt.Sprintf("failed to build category tracker: %v", err))
	}

	interpreter := statekit.NewInterpreter(machine)
	interpreter.Start()
	return &categoryTracker{interpreter: interpreter}
}

// Enter moves the tracker into category and reports whether the category
// changed.
func (t *categoryTracker) Enter(category StateCategory) bool {
	before := t.Current()
	t.interpreter.Send(statekit.Event{Type: statekit.EventType(categoryEvents[category])})
	return t.Current() != before
}

func (t *categoryTracker) Current() StateCategory {
	return StateCategory(t.interpreter.State().Value)
}
