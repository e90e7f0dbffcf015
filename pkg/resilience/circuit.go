package resilience

import (
	"container/list"
	"sync"
	"time"
)

// maxCircuitStates bounds the circuit map; inserting a 101st endpoint
// evicts the least-recently-accessed entry. LRU-by-access is
// deterministic regardless of which circuits happen to be open, and
// matches pkg/diagnostics's circuit-snapshot eviction.
const maxCircuitStates = 100

type circuitState struct {
	mu        sync.Mutex
	failures  int
	openUntil time.Time // zero value means not open
}

// circuitTable is the bounded, LRU-evicted map of per-endpoint circuit
// states.
type circuitTable struct {
	mu    sync.Mutex
	table map[string]*list.Element // endpointKey -> lru element
	lru   *list.List               // front = most-recently accessed
}

type circuitTableEntry struct {
	key   string
	state *circuitState
}

func newCircuitTable() *circuitTable {
	return &circuitTable{
		table: make(map[string]*list.Element),
		lru:   list.New(),
	}
}

// getOrCreate returns the circuitState for key, creating one (evicting
// the least-recently-accessed entry if the table is full) if absent.
func (t *circuitTable) getOrCreate(key string) *circuitState {
	t.mu.Lock()
	defer t.mu.Unlock()

	if elem, ok := t.table[key]; ok {
		t.lru.MoveToFront(elem)
		return elem.Value.(*circuitTableEntry).state
	}

	if len(t.table) >= maxCircuitStates {
		t.evictOldestLocked()
	}

	state := &circuitState{}
	elem := t.lru.PushFront(&circuitTableEntry{key: key, state: state})
	t.table[key] = elem
	return state
}

func (t *circuitTable) evictOldestLocked() {
	back := t.lru.Back()
	if back == nil {
		return
	}
	entry := back.Value.(*circuitTableEntry)
	t.lru.Remove(back)
	delete(t.table, entry.key)
}

// len reports the current number of tracked endpoints (test hook).
func (t *circuitTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.table)
}
