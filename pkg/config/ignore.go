package config

import (
	"path/filepath"
	"strings"
	"sync"
)

var alwaysIgnored = []string{".git"}

// Ignore decides which paths are excluded from watching and replication.
// It's safe for concurrent use, and its patterns can be swapped while the
// daemon is running.
//
// A relative path is ignored if a pattern matches the whole path, any of its
// components, or any of its parent directories. Patterns use filepath.Match
// syntax.
type Ignore struct {
	lock     sync.RWMutex
	patterns []string
}

// NewIgnore creates an Ignore for the given patterns.
func NewIgnore(patterns []string) *Ignore {
	ig := &Ignore{}
	ig.SetPatterns(patterns)
	return ig
}

// SetPatterns replaces the patterns.
func (ig *Ignore) SetPatterns(patterns []string) {
	cleaned := make([]string, 0, len(patterns))
	for _, pattern := range withAlwaysIgnored(patterns) {
		cleaned = append(cleaned, filepath.Clean(pattern))
	}

	ig.lock.Lock()
	ig.patterns = cleaned
	ig.lock.Unlock()
}

// Patterns returns a copy of the current patterns.
func (ig *Ignore) Patterns() []string {
	ig.lock.RLock()
	defer ig.lock.RUnlock()
	return append([]string{}, ig.patterns...)
}

// Match returns whether relPath should be ignored.
func (ig *Ignore) Match(relPath string) bool {
	relPath = filepath.Clean(relPath)
	if relPath == "." {
		return false
	}

	ig.lock.RLock()
	defer ig.lock.RUnlock()

	components := strings.Split(relPath, string(filepath.Separator))
	for _, pattern := range ig.patterns {
		for i, component := range components {
			if ok, _ := filepath.Match(pattern, component); ok {
				return true
			}

			// Match against each parent, so that patterns containing
			// separators apply to everything below them.
			prefix := filepath.Join(components[:i+1]...)
			if ok, _ := filepath.Match(pattern, prefix); ok {
				return true
			}
		}
	}
	return false
}

func withAlwaysIgnored(patterns []string) []string {
	result := append([]string{}, patterns...)
	for _, ignored := range alwaysIgnored {
		if !contains(result, ignored) {
			result = append(result, ignored)
		}
	}
	return result
}

func contains(slice []string, exp string) bool {
	for _, s := range slice {
		if s == exp {
			return true
		}
	}
	return false
}
