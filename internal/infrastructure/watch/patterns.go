package watch

import (
	"path/filepath"
)

// PatternFilter filters file names with include and exclude globs.
type PatternFilter struct {
	Include []string
	Exclude []string
}

func NewPatternFilter(include, exclude []string) *PatternFilter {
	return &PatternFilter{Include: include, Exclude: exclude}
}

// ConfigFilter matches the YAML files of a workspace and skips editor swap
// and backup files.
func ConfigFilter() *PatternFilter {
	return NewPatternFilter(
		[]string{"*.yaml", "*.yml"},
		[]string{".*", "*~", "*.swp", "*.tmp"},
	)
}

// Matches reports whether the base name of path passes the filter. Excludes
// win over includes; no includes means everything not excluded.
func (f *PatternFilter) Matches(path string) bool {
	base := filepath.Base(path)

	for _, pattern := range f.Exclude {
		if matched, _ := filepath.Match(pattern, base); matched {
			return false
		}
	}
	if len(f.Include) == 0 {
		return true
	}
	for _, pattern := range f.Include {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
