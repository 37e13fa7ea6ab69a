// Package writeback models pushing derived values into fields of remote work
// items: the updates, their per-item outcomes and value coercion by field type.
package writeback

// FieldUpdate is one write of Value into one field of one remote item.
type FieldUpdate struct {
	WorkItemID           string `json:"work_item_id" yaml:"work_item_id"`
	TargetFieldReference string `json:"target_field_reference" yaml:"target_field_reference"`
	Value                string `json:"value" yaml:"value"`
}

// ItemResult is the outcome of a single FieldUpdate.
type ItemResult struct {
	WorkItemID           string `json:"work_item_id"`
	TargetFieldReference string `json:"target_field_reference"`
	Success              bool   `json:"success"`
	ErrorMessage         string `json:"error_message,omitempty"`
}

// Result collects item results in the order the updates were given.
type Result struct {
	ItemResults []ItemResult `json:"item_results"`
}

// AllSucceeded reports whether every update succeeded. An empty result has
// nothing that failed.
func (r *Result) AllSucceeded() bool {
	for _, ir := range r.ItemResults {
		if !ir.Success {
			return false
		}
	}
	return true
}

// SuccessCount returns the number of successful updates.
func (r *Result) SuccessCount() int {
	n := 0
	for _, ir := range r.ItemResults {
		if ir.Success {
			n++
		}
	}
	return n
}

// Succeed records a successful update.
func (r *Result) Succeed(u FieldUpdate) {
	r.ItemResults = append(r.ItemResults, ItemResult{
		WorkItemID:           u.WorkItemID,
		TargetFieldReference: u.TargetFieldReference,
		Success:              true,
	})
}

// Fail records a failed update with err as its message.
func (r *Result) Fail(u FieldUpdate, err error) {
	msg := "write failed"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	r.ItemResults = append(r.ItemResults, ItemResult{
		WorkItemID:           u.WorkItemID,
		TargetFieldReference: u.TargetFieldReference,
		ErrorMessage:         msg,
	})
}
