package resilience

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/trackd/filewatchrest/pkg/logger"
)

// CircuitObserver receives circuit-state transitions for diagnostics
// reporting. *diagnostics.Diagnostics satisfies this interface
// structurally, so this package never imports pkg/diagnostics.
type CircuitObserver interface {
	UpdateCircuitState(endpointKey string, failures int, openUntil *time.Time)
	IncrementCircuitOpen()
}

type noopObserver struct{}

func (noopObserver) UpdateCircuitState(string, int, *time.Time) {}
func (noopObserver) IncrementCircuitOpen()                      {}

// Engine executes HTTP request attempts with retry, jittered backoff, and
// a bounded, per-endpoint circuit breaker.
type Engine struct {
	client   *http.Client
	circuits *circuitTable
	observer CircuitObserver
	log      logger.Logger

	attempts      int64
	failures      int64
	shortCircuits int64
}

// New creates an Engine using client for outbound requests. observer may
// be nil (equivalent to a no-op sink).
func New(client *http.Client, observer CircuitObserver, log logger.Logger) *Engine {
	if client == nil {
		client = http.DefaultClient
	}
	if observer == nil {
		observer = noopObserver{}
	}
	if log == nil {
		log = logger.Noop()
	}
	return &Engine{
		client:   client,
		circuits: newCircuitTable(),
		observer: observer,
		log:      log,
	}
}

// HTTPCounters satisfies diagnostics.HTTPCounterSource.
func (e *Engine) HTTPCounters() (attempts, failures, shortCircuits int64) {
	return atomic.LoadInt64(&e.attempts), atomic.LoadInt64(&e.failures), atomic.LoadInt64(&e.shortCircuits)
}

// Execute runs factory with retry and circuit breaking against
// endpointKey, per policy.
func (e *Engine) Execute(ctx context.Context, endpointKey string, policy Policy, factory RequestFactory) Outcome {
	start := time.Now()
	state := e.circuits.getOrCreate(endpointKey)

	state.mu.Lock()
	if !state.openUntil.IsZero() && time.Now().Before(state.openUntil) {
		failures := state.failures
		openUntil := state.openUntil
		state.mu.Unlock()
		atomic.AddInt64(&e.shortCircuits, 1)
		e.observer.UpdateCircuitState(endpointKey, failures, &openUntil)
		return Outcome{
			Success:        false,
			ShortCircuited: true,
			LastError:      ErrShortCircuited,
			TotalElapsed:   time.Since(start),
		}
	}
	state.mu.Unlock()

	maxAttempts := policy.Retries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var (
		lastStatus   int
		lastErr      error
		attemptsMade int
	)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return Outcome{
				Success:      false,
				Attempts:     attempt - 1,
				LastError:    ctx.Err(),
				TotalElapsed: time.Since(start),
			}
		}

		atomic.AddInt64(&e.attempts, 1)
		attemptsMade = attempt

		req, err := factory(ctx)
		if err != nil {
			lastErr = err
			e.recordFailure(endpointKey, state, policy)
			atomic.AddInt64(&e.failures, 1)
			break
		}

		resp, err := e.client.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return Outcome{
					Success:      false,
					Attempts:     attempt,
					LastError:    ctx.Err(),
					TotalElapsed: time.Since(start),
				}
			}
			atomic.AddInt64(&e.failures, 1)
			if attempt < maxAttempts {
				e.log.Warn("transient send error, retrying", "endpoint", endpointKey, "attempt", attempt, "error", err)
				e.backoff(ctx, attempt, policy)
				continue
			}
			e.recordFailure(endpointKey, state, policy)
			return Outcome{
				Success:      false,
				Attempts:     attempt,
				LastError:    lastErr,
				TotalElapsed: time.Since(start),
			}
		}

		lastStatus = resp.StatusCode
		drainAndClose(resp.Body)

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			state.mu.Lock()
			state.failures = 0
			state.openUntil = time.Time{}
			state.mu.Unlock()
			e.observer.UpdateCircuitState(endpointKey, 0, nil)
			return Outcome{
				Success:      true,
				Attempts:     attempt,
				LastStatus:   resp.StatusCode,
				TotalElapsed: time.Since(start),
			}
		}

		if resp.StatusCode >= 500 && attempt < maxAttempts {
			atomic.AddInt64(&e.failures, 1)
			e.log.Warn("transient HTTP status, retrying", "endpoint", endpointKey, "attempt", attempt, "status", resp.StatusCode)
			e.backoff(ctx, attempt, policy)
			continue
		}

		// Terminal: final 5xx, or any 4xx.
		atomic.AddInt64(&e.failures, 1)
		e.recordFailure(endpointKey, state, policy)
		return Outcome{
			Success:      false,
			Attempts:     attempt,
			LastStatus:   resp.StatusCode,
			TotalElapsed: time.Since(start),
		}
	}

	return Outcome{
		Success:      false,
		Attempts:     attemptsMade,
		LastStatus:   lastStatus,
		LastError:    lastErr,
		TotalElapsed: time.Since(start),
	}
}

// recordFailure applies the circuit-breaker threshold logic under the
// endpoint's own mutex: increment failures; if the threshold is reached,
// open the circuit for CircuitBreakerOpenDurationMs.
func (e *Engine) recordFailure(endpointKey string, state *circuitState, policy Policy) {
	if !policy.EnableCircuitBreaker {
		return
	}

	state.mu.Lock()
	state.failures++
	opened := false
	if state.failures >= policy.CircuitBreakerFailureThreshold && !time.Now().Before(state.openUntil) {
		state.openUntil = time.Now().Add(time.Duration(policy.CircuitBreakerOpenDurationMs) * time.Millisecond)
		opened = true
	}
	failures := state.failures
	var openUntil *time.Time
	if !state.openUntil.IsZero() {
		ou := state.openUntil
		openUntil = &ou
	}
	state.mu.Unlock()

	e.observer.UpdateCircuitState(endpointKey, failures, openUntil)
	if opened {
		e.observer.IncrementCircuitOpen()
	}
}

// backoff sleeps delayMs = max(100, RetryDelayMs)<<(attempt-1) + jitter,
// cancellable via ctx.
func (e *Engine) backoff(ctx context.Context, attempt int, policy Policy) {
	base := policy.RetryDelayMs
	if base < 100 {
		base = 100
	}
	delay := time.Duration(base) * time.Millisecond << uint(attempt-1)
	jitter := time.Duration(rand.Intn(100)) * time.Millisecond

	select {
	case <-time.After(delay + jitter):
	case <-ctx.Done():
	}
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
