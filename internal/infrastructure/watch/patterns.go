package watch

import "path/filepath"

// NameFilter selects files by base-name globs. Excludes win over includes;
// no includes means every file not excluded.
type NameFilter struct {
	Include []string
	Exclude []string
}

// DefaultExcludes skips editor swap and backup files.
var DefaultExcludes = []string{"*.swp", "*.swx", "*~", ".#*", "*.tmp"}

func (f NameFilter) Matches(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range f.Exclude {
		if ok, _ := filepath.Match(pattern, base); ok {
			return false
		}
	}
	if len(f.Include) == 0 {
		return true
	}
	for _, pattern := range f.Include {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}
