// Package resilience executes HTTP request attempts with retry, backoff
// and a per-endpoint circuit breaker.
package resilience

import (
	"context"
	"net/http"
	"time"
)

// RequestFactory builds a fresh *http.Request for one attempt. It is
// called once per attempt so that request bodies/streams are rebuilt
// rather than reused after a failed send.
type RequestFactory func(ctx context.Context) (*http.Request, error)

// Outcome is the result of one Execute call.
type Outcome struct {
	Success        bool
	Attempts       int
	LastStatus     int // 0 if no response was received
	LastError      error
	TotalElapsed   time.Duration
	ShortCircuited bool
}

// Policy is the per-call resilience configuration, generally sourced from
// a path's EffectiveConfig.RestPost.
type Policy struct {
	Retries                        int
	RetryDelayMs                   int
	EnableCircuitBreaker           bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerOpenDurationMs   int
}
