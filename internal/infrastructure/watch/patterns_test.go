package watch_test

import (
	"testing"

	"github.com/felixgeelhaar/worksync/internal/infrastructure/watch"
)

func TestConfigFilter(t *testing.T) {
	f := watch.ConfigFilter()

	tests := []struct {
		path  string
		match bool
	}{
		{".worksync/workspace.yaml", true},
		{"plugins.yml", true},
		{".worksync/.workspace.yaml.swp", false},
		{"workspace.yaml~", false},
		{"notes.md", false},
	}
	for _, tt := range tests {
		if got := f.Matches(tt.path); got != tt.match {
			t.Errorf("Matches(%q) = %v, want %v", tt.path, got, tt.match)
		}
	}
}

func TestPatternFilter_ExcludeWins(t *testing.T) {
	f := watch.NewPatternFilter([]string{"*.yaml"}, []string{"settings.yaml"})

	if f.Matches("settings.yaml") {
		t.Error("excluded file should not match")
	}
	if !f.Matches("workspace.yaml") {
		t.Error("included file should match")
	}
}

func TestPatternFilter_NoPatterns(t *testing.T) {
	if !watch.NewPatternFilter(nil, nil).Matches("anything.txt") {
		t.Error("empty filter should match everything")
	}
}
