// Package pattern compiles and evaluates glob patterns (*, ?, [set]) used to
// filter which files a watched folder reacts to: allowed extensions,
// exclude patterns, and folder-level filters.
//
// Matching is anchored (whole-string) and case-insensitive. Patterns are
// cached after their first validation so repeated matches against the same
// pattern skip re-validation; the cache is bounded and cleared wholesale on
// overflow rather than evicted entry-by-entry, since pattern sets are small
// and static in practice (reloaded wholesale on config change anyway).
//
// Example usage:
//
//	m := pattern.Default()
//	if m.IsMatch("report.JSONL", "*.jsonl") {
//	    // case-insensitive match
//	}
package pattern

import "time"

// Matcher evaluates glob patterns against input strings.
type Matcher interface {
	// IsMatch reports whether input matches pattern. Matching is anchored
	// and case-insensitive. An invalid pattern (e.g. an unclosed "[") is
	// never a hard error: unmatched special characters degrade to literal
	// characters per Matcher's documented failure semantics.
	IsMatch(input, pattern string) bool

	// TryMatchAny returns the first pattern in patterns that matches input,
	// in order, and true. If none match, it returns ("", false).
	TryMatchAny(input string, patterns []string) (string, bool)

	// ContainsWildcards reports whether pattern contains any of '*', '?', '['.
	ContainsWildcards(pattern string) bool
}

// Config tunes the bounded pattern cache and evaluation watchdog.
type Config struct {
	// MaxCacheEntries bounds the compiled-pattern cache. Default: 100.
	MaxCacheEntries int

	// EvaluationTimeout bounds a single IsMatch call. Default: 100ms.
	EvaluationTimeout time.Duration
}
