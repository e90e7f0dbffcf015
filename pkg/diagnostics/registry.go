package diagnostics

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	// maxRecentEvents bounds the in-memory event ring.
	maxRecentEvents = 1000

	// maxCircuitStates bounds the circuit-state map; least-recently-
	// accessed endpoints are evicted first once the bound is reached.
	maxCircuitStates = 100
)

// circuitEntry is the registry's internal record for one endpoint's
// circuit state, plus its position in the LRU list.
type circuitEntry struct {
	snapshot CircuitSnapshot
	elem     *list.Element // element in lru, holds the endpoint key
}

// Diagnostics is the in-memory status registry: active
// watchers, restart counters, a bounded recent-events ring, bounded
// per-endpoint circuit snapshots, and monotonic counters. It is safe for
// concurrent use by the WatcherManager, SenderPool, ResilienceEngine and
// the HTTP surface in server.go.
type Diagnostics struct {
	mu sync.Mutex

	posted PostedCache

	watchers        map[string]bool
	restartAttempts map[string]int

	events    []EventRecord
	eventHead int // index of oldest entry once the ring has wrapped
	eventFull bool

	circuits map[string]*circuitEntry
	lru      *list.List // front = most-recently accessed

	counters Counters

	httpSource HTTPCounterSource
	eventSink  func(EventRecord)
}

// New creates a Diagnostics registry backed by posted for IsPosted
// lookups. posted may be a bolt- or memory-backed PostedCache.
func New(posted PostedCache) *Diagnostics {
	return &Diagnostics{
		posted:          posted,
		watchers:        make(map[string]bool),
		restartAttempts: make(map[string]int),
		events:          make([]EventRecord, 0, maxRecentEvents),
		circuits:        make(map[string]*circuitEntry),
		lru:             list.New(),
	}
}

// SetHTTPCounterSource wires the resilience engine's aggregate HTTP
// counters into /metrics output. Called once at startup by the worker.
func (d *Diagnostics) SetHTTPCounterSource(src HTTPCounterSource) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.httpSource = src
}

// SetEventSink installs a callback invoked for every recorded file event,
// used by the worker to append the structured event trail (CSV/NDJSON).
// Called once at startup, before any events flow.
func (d *Diagnostics) SetEventSink(sink func(EventRecord)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.eventSink = sink
}

// IsPosted reports whether path's last recorded dispatch succeeded.
func (d *Diagnostics) IsPosted(path string) bool {
	return d.posted.IsPosted(path)
}

// MarkPosted records path's dispatch outcome in the PostedCache.
func (d *Diagnostics) MarkPosted(path string, posted bool) error {
	return d.posted.SetPosted(path, posted)
}

// ClearPosted forgets path's recorded outcome, forcing redispatch on the
// next Change event.
func (d *Diagnostics) ClearPosted(path string) error {
	return d.posted.Clear(path)
}

// RegisterWatcher records folder as an actively running watcher.
func (d *Diagnostics) RegisterWatcher(folder string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.watchers[folder] = true
}

// UnregisterWatcher removes folder from the active-watcher set, called
// from WatcherManager.StopAll and on permanent exhaustion.
func (d *Diagnostics) UnregisterWatcher(folder string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.watchers, folder)
}

// IncrementRestart increments folder's restart counter and returns the
// new value, used by the WatcherManager restart state machine to decide
// when MaxRestartAttempts has been exhausted.
func (d *Diagnostics) IncrementRestart(folder string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.restartAttempts[folder]++
	return d.restartAttempts[folder]
}

// ResetRestart zeroes folder's restart counter, called when a restarted
// watcher delivers its first event and is considered recovered.
func (d *Diagnostics) ResetRestart(folder string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.restartAttempts[folder] = 0
}

// RecordFileEvent appends an EventRecord to the recent-events ring,
// updates the success/failure counters, and maintains the PostedCache:
// a success with HTTP 200 marks the path posted, any failure clears the
// mark so the path is dispatched again on its next event.
// The ring holds at most maxRecentEvents entries; the oldest entry is
// evicted once full.
func (d *Diagnostics) RecordFileEvent(path string, success bool, statusCode *int) EventRecord {
	if success && statusCode != nil && *statusCode == 200 {
		_ = d.posted.SetPosted(path, true)
	} else if !success {
		_ = d.posted.SetPosted(path, false)
	}

	rec := EventRecord{
		ID:         uuid.NewString(),
		Path:       path,
		Success:    success,
		StatusCode: statusCode,
		Timestamp:  time.Now(),
	}

	d.mu.Lock()
	if len(d.events) < maxRecentEvents {
		d.events = append(d.events, rec)
	} else {
		d.events[d.eventHead] = rec
		d.eventHead = (d.eventHead + 1) % maxRecentEvents
		d.eventFull = true
	}
	sink := d.eventSink
	d.mu.Unlock()

	if success {
		atomic.AddInt64(&d.counters.FileProcessedSuccessTotal, 1)
	} else {
		atomic.AddInt64(&d.counters.FileProcessedFailureTotal, 1)
	}

	if sink != nil {
		sink(rec)
	}

	return rec
}

// IncrementEnqueued increments the file_enqueued_total counter, called by
// the Debouncer when a path is handed to the SenderPool.
func (d *Diagnostics) IncrementEnqueued() {
	atomic.AddInt64(&d.counters.FileEnqueuedTotal, 1)
}

// IncrementCircuitOpen increments circuit_open_total, called by the
// ResilienceEngine each time a circuit transitions from closed to open.
func (d *Diagnostics) IncrementCircuitOpen() {
	atomic.AddInt64(&d.counters.CircuitOpenTotal, 1)
}

// UpdateCircuitState publishes the current state of one endpoint's
// circuit breaker. The circuit map is bounded to maxCircuitStates
// entries; once full, the endpoint least recently passed to
// UpdateCircuitState is evicted to make room.
func (d *Diagnostics) UpdateCircuitState(endpointKey string, failures int, openUntil *time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if entry, ok := d.circuits[endpointKey]; ok {
		entry.snapshot.Failures = failures
		entry.snapshot.OpenUntil = openUntil
		d.lru.MoveToFront(entry.elem)
		return
	}

	if len(d.circuits) >= maxCircuitStates {
		d.evictOldestCircuitLocked()
	}

	elem := d.lru.PushFront(endpointKey)
	d.circuits[endpointKey] = &circuitEntry{
		snapshot: CircuitSnapshot{
			EndpointKey: endpointKey,
			Failures:    failures,
			OpenUntil:   openUntil,
		},
		elem: elem,
	}
}

// evictOldestCircuitLocked removes the least-recently-accessed circuit
// entry. Caller must hold d.mu.
func (d *Diagnostics) evictOldestCircuitLocked() {
	back := d.lru.Back()
	if back == nil {
		return
	}
	key := back.Value.(string)
	d.lru.Remove(back)
	delete(d.circuits, key)
}

// GetStatus returns a snapshot of the registry for /status and /.
// Circuit snapshots are listed most-recently-updated first; reading them
// does not change their eviction order.
func (d *Diagnostics) GetStatus() Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	watchers := make([]WatcherStatus, 0, len(d.watchers))
	for folder := range d.watchers {
		watchers = append(watchers, WatcherStatus{
			Folder:          folder,
			RestartAttempts: d.restartAttempts[folder],
		})
	}

	restartAttempts := make(map[string]int, len(d.restartAttempts))
	for k, v := range d.restartAttempts {
		restartAttempts[k] = v
	}

	recent := d.recentEventsLocked()

	circuits := make([]CircuitSnapshot, 0, len(d.circuits))
	for e := d.lru.Front(); e != nil; e = e.Next() {
		key := e.Value.(string)
		if entry, ok := d.circuits[key]; ok {
			circuits = append(circuits, entry.snapshot)
		}
	}

	return Status{
		ActiveWatchers:  watchers,
		RestartAttempts: restartAttempts,
		RecentEvents:    recent,
		CircuitStates:   circuits,
		EventCount:      d.eventCountLocked(),
		Timestamp:       time.Now(),
	}
}

// recentEventsLocked returns up to 500 most recent events, newest first,
// the shape GET /events serves. Caller must hold d.mu.
func (d *Diagnostics) recentEventsLocked() []EventRecord {
	const maxReturned = 500

	n := len(d.events)
	out := make([]EventRecord, 0, minInt(n, maxReturned))

	if !d.eventFull {
		for i := n - 1; i >= 0 && len(out) < maxReturned; i-- {
			out = append(out, d.events[i])
		}
		return out
	}

	for i, count := d.eventHead-1, 0; count < n && len(out) < maxReturned; count++ {
		if i < 0 {
			i = n - 1
		}
		out = append(out, d.events[i])
		i--
	}
	return out
}

func (d *Diagnostics) eventCountLocked() int64 {
	return int64(len(d.events))
}

// Counters returns a copy of the current monotonic counters, including
// the HTTP counters reported by the wired HTTPCounterSource if any.
func (d *Diagnostics) Counters() Counters {
	d.mu.Lock()
	src := d.httpSource
	d.mu.Unlock()

	c := Counters{
		FileProcessedSuccessTotal: atomic.LoadInt64(&d.counters.FileProcessedSuccessTotal),
		FileProcessedFailureTotal: atomic.LoadInt64(&d.counters.FileProcessedFailureTotal),
		FileEnqueuedTotal:         atomic.LoadInt64(&d.counters.FileEnqueuedTotal),
		CircuitOpenTotal:          atomic.LoadInt64(&d.counters.CircuitOpenTotal),
	}

	if src != nil {
		c.HTTPAttemptsTotal, c.HTTPFailuresTotal, c.HTTPShortCircuitsTotal = src.HTTPCounters()
	}

	return c
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
