package fs

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// excludePattern is a parsed exclude pattern with its matching strategy.
type excludePattern struct {
	pattern   string
	matchPath bool // true = match against relative path; false = match against each segment
}

// ExcludeMatcher checks relative paths against a set of doublestar patterns.
// Patterns without '/' match any single segment, so ".trash" excludes a
// trash directory and everything inside it. Patterns with '/' match the
// whole relative path and may use "**".
type ExcludeMatcher struct {
	patterns []excludePattern
}

// NewExcludeMatcher creates an ExcludeMatcher from raw pattern strings.
// Blank entries, entries starting with '#' and malformed patterns are skipped.
func NewExcludeMatcher(rawPatterns []string) *ExcludeMatcher {
	var patterns []excludePattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") || !doublestar.ValidatePattern(raw) {
			continue
		}
		patterns = append(patterns, excludePattern{
			pattern:   raw,
			matchPath: strings.Contains(raw, "/"),
		})
	}
	return &ExcludeMatcher{patterns: patterns}
}

// Match reports whether relativePath should be left out.
func (m *ExcludeMatcher) Match(relativePath string) bool {
	if len(m.patterns) == 0 || relativePath == "" {
		return false
	}

	normalized := filepath.ToSlash(relativePath)
	segments := strings.Split(normalized, "/")

	for _, p := range m.patterns {
		if p.matchPath {
			if ok, _ := doublestar.Match(p.pattern, normalized); ok {
				return true
			}
			continue
		}
		for _, seg := range segments {
			if ok, _ := doublestar.Match(p.pattern, seg); ok {
				return true
			}
		}
	}
	return false
}
