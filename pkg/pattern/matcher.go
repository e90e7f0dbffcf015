package pattern

import (
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	defaultMaxCacheEntries   = 100
	defaultEvaluationTimeout = 100 * time.Millisecond
)

// matcher implements Matcher.
type matcher struct {
	cfg Config

	mu    sync.Mutex
	cache map[string]string // pattern -> sanitized (doublestar-safe) pattern
}

// New creates a Matcher with the given configuration. A zero Config uses
// the documented defaults (100-entry cache, 100ms evaluation watchdog).
func New(cfg Config) Matcher {
	if cfg.MaxCacheEntries <= 0 {
		cfg.MaxCacheEntries = defaultMaxCacheEntries
	}
	if cfg.EvaluationTimeout <= 0 {
		cfg.EvaluationTimeout = defaultEvaluationTimeout
	}

	return &matcher{
		cfg:   cfg,
		cache: make(map[string]string, cfg.MaxCacheEntries),
	}
}

// Default returns a Matcher configured with the documented defaults.
func Default() Matcher {
	return New(Config{})
}

// IsMatch implements Matcher.IsMatch.
func (m *matcher) IsMatch(input, pattern string) bool {
	if pattern == "" {
		return false
	}

	sanitized := m.sanitized(pattern)

	result := make(chan bool, 1)
	go func() {
		lowerInput := strings.ToLower(input)
		lowerPattern := strings.ToLower(sanitized)
		ok, err := doublestar.Match(lowerPattern, lowerInput)
		result <- err == nil && ok
	}()

	select {
	case ok := <-result:
		return ok
	case <-time.After(m.cfg.EvaluationTimeout):
		return false
	}
}

// TryMatchAny implements Matcher.TryMatchAny.
func (m *matcher) TryMatchAny(input string, patterns []string) (string, bool) {
	for _, p := range patterns {
		if m.IsMatch(input, p) {
			return p, true
		}
	}
	return "", false
}

// ContainsWildcards implements Matcher.ContainsWildcards.
func (m *matcher) ContainsWildcards(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

// sanitized returns pattern with any unclosed "[" escaped to a literal, so
// that doublestar never rejects it with a bad-pattern error. The result is
// cached; on cache overflow the whole cache is cleared, since pattern sets
// are small, static, and rebuilt wholesale on config reload anyway.
func (m *matcher) sanitized(pattern string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cached, ok := m.cache[pattern]; ok {
		return cached
	}

	if len(m.cache) >= m.cfg.MaxCacheEntries {
		m.cache = make(map[string]string, m.cfg.MaxCacheEntries)
	}

	sanitized := escapeUnclosedBrackets(pattern)
	m.cache[pattern] = sanitized
	return sanitized
}

// escapeUnclosedBrackets walks pattern and escapes any "[" that has no
// matching "]" later in the string, so it is treated as a literal character
// rather than the start of a malformed character class.
func escapeUnclosedBrackets(pattern string) string {
	var b strings.Builder
	b.Grow(len(pattern) + 2)

	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c == '[' {
			if closeIdx := strings.IndexByte(pattern[i+1:], ']'); closeIdx == -1 {
				b.WriteByte('\\')
				b.WriteByte('[')
				continue
			}
		}
		b.WriteByte(c)
	}

	return b.String()
}
