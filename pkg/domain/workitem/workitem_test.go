package workitem

import (
	"testing"
	"time"
)

func TestWorkItem_CycleTime(t *testing.T) {
	tests := []struct {
		name    string
		started *time.Time
		closed  *time.Time
		want    int
	}{
		{"same day", ptr(day(0)), ptr(day(0).Add(3 * time.Hour)), 1},
		{"three days", ptr(day(0)), ptr(day(2)), 3},
		{"across midnight", ptr(time.Date(2025, 3, 1, 23, 0, 0, 0, time.UTC)), ptr(time.Date(2025, 3, 2, 1, 0, 0, 0, time.UTC)), 2},
		{"not closed", ptr(day(0)), nil, 0},
		{"not started", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := WorkItem{StartedDate: tt.started, ClosedDate: tt.closed}
			if got := item.CycleTime(); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestWorkItem_WorkItemAge(t *testing.T) {
	now := day(9)

	inProgress := WorkItem{StartedDate: ptr(day(0))}
	if got := inProgress.WorkItemAge(now); got != 10 {
		t.Errorf("expected age 10, got %d", got)
	}

	closed := WorkItem{StartedDate: ptr(day(0)), ClosedDate: ptr(day(4))}
	if got := closed.WorkItemAge(now); got != 5 {
		t.Errorf("expected closed item to stop ageing at 5, got %d", got)
	}

	if got := (WorkItem{}).WorkItemAge(now); got != 0 {
		t.Errorf("expected 0 for unstarted item, got %d", got)
	}
}
