package diagnostics

import (
	"fmt"
	"strings"
	"sync"

	bolt "go.etcd.io/bbolt"
)

var bucketPosted = []byte("posted_paths") // path -> "1" iff last dispatch was HTTP 200

// PostedCache records, per path, whether the last dispatch attempt
// returned HTTP 200. It is consulted by the Worker filter pipeline to
// skip paths that already succeeded, until a new change event is
// observed for that path.
//
// Persistence is operator-configured: the in-memory default accepts
// duplicate dispatches after a crash; the bbolt store survives one.
type PostedCache interface {
	// IsPosted reports whether path's last recorded dispatch succeeded.
	// Lookup is case-insensitive (keys are normalized to lowercase at
	// write time).
	IsPosted(path string) bool

	// SetPosted records whether path's last dispatch succeeded.
	SetPosted(path string, posted bool) error

	// Clear removes path's recorded state, forcing the next Change event
	// to be dispatched regardless of prior outcome.
	Clear(path string) error
}

// boltPostedCache implements PostedCache using BoltDB.
type boltPostedCache struct {
	db *bolt.DB
	mu sync.RWMutex
}

// NewBoltPostedCache creates a BoltDB-backed PostedCache.
func NewBoltPostedCache(db *bolt.DB) (PostedCache, error) {
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPosted)
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to create posted-paths bucket: %w", err)
	}

	return &boltPostedCache{db: db}, nil
}

func (c *boltPostedCache) IsPosted(path string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	key := []byte(normalizeKey(path))
	var posted bool
	_ = c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPosted)
		v := b.Get(key)
		posted = len(v) == 1 && v[0] == '1'
		return nil
	})
	return posted
}

func (c *boltPostedCache) SetPosted(path string, posted bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := []byte(normalizeKey(path))
	val := []byte("0")
	if posted {
		val = []byte("1")
	}

	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPosted).Put(key, val)
	})
}

func (c *boltPostedCache) Clear(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := []byte(normalizeKey(path))
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPosted).Delete(key)
	})
}

// memoryPostedCache implements PostedCache using an in-memory map. This is
// the default; useful for tests and for operators who accept duplicate
// dispatches after a crash in exchange for no on-disk state.
type memoryPostedCache struct {
	mu      sync.RWMutex
	entries map[string]bool
}

// NewMemoryPostedCache creates an in-memory PostedCache.
func NewMemoryPostedCache() PostedCache {
	return &memoryPostedCache{entries: make(map[string]bool)}
}

func (c *memoryPostedCache) IsPosted(path string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[normalizeKey(path)]
}

func (c *memoryPostedCache) SetPosted(path string, posted bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[normalizeKey(path)] = posted
	return nil
}

func (c *memoryPostedCache) Clear(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, normalizeKey(path))
	return nil
}

func normalizeKey(path string) string {
	return strings.ToLower(path)
}
