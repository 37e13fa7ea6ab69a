package workitem

import "time"

// FilterByCutoff drops Done items that closed before the retention window.
//
// The window starts at midnight UTC of now's day minus cutoffDays days, so a
// cutoff of 0 keeps only items closed today. Negative cutoffs behave as 0.
// Items in any other category, and Done items without a close date, are kept.
func FilterByCutoff(items []WorkItem, cutoffDays int, now time.Time) []WorkItem {
	if cutoffDays < 0 {
		cutoffDays = 0
	}
	threshold := startOfDay(now).AddDate(0, 0, -cutoffDays)

	kept := make([]WorkItem, 0, len(items))
	for _, item := range items {
		if item.StateCategory == Done && item.ClosedDate != nil && item.ClosedDate.Before(threshold) {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}
