package watchermgr

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/trackd/filewatchrest/pkg/config"
)

type resolveCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cachedResolution
}

type cachedResolution struct {
	folder    string
	effective config.EffectiveConfig
	expiresAt time.Time
}

func newResolveCache(ttl time.Duration) *resolveCache {
	return &resolveCache{ttl: ttl, entries: make(map[string]cachedResolution)}
}

func (c *resolveCache) get(path string) (cachedResolution, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[path]
	if !ok || time.Now().After(entry.expiresAt) {
		return cachedResolution{}, false
	}
	return entry, true
}

func (c *resolveCache) put(path string, entry cachedResolution) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry.expiresAt = time.Now().Add(c.ttl)
	c.entries[path] = entry
}

func (c *resolveCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cachedResolution)
}

// TryResolve returns the EffectiveConfig and matched folder for path,
// chosen by longest-prefix match of the normalized absolute path against
// the manager's configured folder paths, ties broken by the longest
// normalized folder path.
func (m *Manager) TryResolve(path string) (config.EffectiveConfig, string, error) {
	norm := normalizeForMatch(path)

	if cached, ok := m.resolveCache.get(norm); ok {
		return cached.effective, cached.folder, nil
	}

	m.mu.Lock()
	var (
		bestFolder    string
		bestEffective config.EffectiveConfig
		found         bool
	)
	for folder, entry := range m.entries {
		candidate := normalizeForMatch(folder)
		if !prefixAtBoundary(norm, candidate) {
			continue
		}
		if !found || len(candidate) > len(normalizeForMatch(bestFolder)) {
			entry.mu.Lock()
			bestEffective = entry.effective
			entry.mu.Unlock()
			bestFolder = folder
			found = true
		}
	}
	m.mu.Unlock()

	if !found {
		return config.EffectiveConfig{}, "", ErrNoResolution
	}

	m.resolveCache.put(norm, cachedResolution{folder: bestFolder, effective: bestEffective})
	return bestEffective, bestFolder, nil
}

func normalizeForMatch(path string) string {
	return strings.ToLower(filepath.Clean(path))
}

// prefixAtBoundary reports whether folder is a path-segment prefix of
// path: equal, or followed by a separator, so that "/watch" never claims
// "/watch2/x.txt".
func prefixAtBoundary(path, folder string) bool {
	if !strings.HasPrefix(path, folder) {
		return false
	}
	if len(path) == len(folder) {
		return true
	}
	return path[len(folder)] == filepath.Separator || strings.HasSuffix(folder, string(filepath.Separator))
}
