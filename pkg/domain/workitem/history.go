package workitem

import "time"

// StateHistoryEntry records one transition of an item into State.
type StateHistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	State     string    `json:"state"`
	// From is the raw state the item left, when the source system reports it.
	From string `json:"from,omitempty"`
}
