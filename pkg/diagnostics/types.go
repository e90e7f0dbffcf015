// Package diagnostics provides the in-memory status registry: active
// watchers, restart counters, a recent file-event ring, per-endpoint
// circuit snapshots, and the PostedCache consulted by the worker filter
// pipeline. It also exposes the read-only HTTP surface (/, /status,
// /health, /events, /watchers, /config, /metrics).
package diagnostics

import "time"

// EventRecord is one entry in the recent-events ring.
type EventRecord struct {
	ID         string    `json:"id"`
	Path       string    `json:"path"`
	Success    bool      `json:"success"`
	StatusCode *int      `json:"statusCode,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// CircuitSnapshot is a point-in-time view of one endpoint's circuit state,
// published by the resilience engine via UpdateCircuitState.
type CircuitSnapshot struct {
	EndpointKey string     `json:"endpointKey"`
	Failures    int        `json:"failures"`
	OpenUntil   *time.Time `json:"openUntil,omitempty"`
}

// WatcherStatus describes one actively registered folder watcher.
type WatcherStatus struct {
	Folder         string `json:"folder"`
	RestartAttempts int   `json:"restartAttempts"`
}

// Status is the snapshot returned by GetStatus and served at / and
// /status.
type Status struct {
	ActiveWatchers  []WatcherStatus   `json:"activeWatchers"`
	RestartAttempts map[string]int    `json:"restartAttempts"`
	RecentEvents    []EventRecord     `json:"recentEvents"`
	CircuitStates   []CircuitSnapshot `json:"circuitStates"`
	EventCount      int64             `json:"eventCount"`
	Timestamp       time.Time         `json:"timestamp"`
}

// Counters are the monotonic counters exposed at /metrics.
type Counters struct {
	FileProcessedSuccessTotal int64
	FileProcessedFailureTotal int64
	FileEnqueuedTotal         int64
	CircuitOpenTotal          int64
	HTTPAttemptsTotal         int64
	HTTPFailuresTotal         int64
	HTTPShortCircuitsTotal    int64
}

// HTTPCounterSource lets a ResilienceEngine publish its aggregate HTTP
// counters into /metrics without diagnostics importing the resilience
// package (avoids an import cycle, since resilience reports into
// diagnostics).
type HTTPCounterSource interface {
	HTTPCounters() (attempts, failures, shortCircuits int64)
}
