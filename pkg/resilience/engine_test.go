package resilience

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/trackd/filewatchrest/pkg/logger"
)

func factoryFor(url string) RequestFactory {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	}
}

func TestExecuteRetryThenSuccess(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := New(srv.Client(), nil, logger.Noop())
	policy := Policy{Retries: 2, RetryDelayMs: 1}

	out := e.Execute(context.Background(), srv.URL, policy, factoryFor(srv.URL))

	if !out.Success {
		t.Fatalf("expected success, got %+v", out)
	}
	if out.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", out.Attempts)
	}
}

func TestExecuteCircuitOpensThenShortCircuits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := New(srv.Client(), nil, logger.Noop())
	policy := Policy{
		Retries:                        0,
		RetryDelayMs:                   1,
		EnableCircuitBreaker:           true,
		CircuitBreakerFailureThreshold: 2,
		CircuitBreakerOpenDurationMs:   60000,
	}

	out1 := e.Execute(context.Background(), srv.URL, policy, factoryFor(srv.URL))
	if out1.Success || out1.Attempts != 1 {
		t.Fatalf("expected 1 failed attempt, got %+v", out1)
	}

	out2 := e.Execute(context.Background(), srv.URL, policy, factoryFor(srv.URL))
	if out2.Success || out2.Attempts != 1 {
		t.Fatalf("expected second call to fail after 1 attempt, got %+v", out2)
	}

	out3 := e.Execute(context.Background(), srv.URL, policy, factoryFor(srv.URL))
	if !out3.ShortCircuited || out3.Attempts != 0 {
		t.Fatalf("expected third call to short-circuit with 0 attempts, got %+v", out3)
	}
}

func TestExecuteRetriesZeroMeansOneAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := New(srv.Client(), nil, logger.Noop())
	out := e.Execute(context.Background(), srv.URL, Policy{Retries: 0, RetryDelayMs: 1}, factoryFor(srv.URL))

	if out.Attempts != 1 {
		t.Fatalf("expected exactly 1 attempt with Retries=0, got %d", out.Attempts)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected exactly 1 HTTP call, got %d", calls)
	}
}

func TestExecuteSuccessResetsCircuit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := New(srv.Client(), nil, logger.Noop())
	policy := Policy{
		Retries:                        0,
		RetryDelayMs:                   1,
		EnableCircuitBreaker:           true,
		CircuitBreakerFailureThreshold: 5,
		CircuitBreakerOpenDurationMs:   60000,
	}

	e.Execute(context.Background(), srv.URL, policy, factoryFor(srv.URL))
	out := e.Execute(context.Background(), srv.URL, policy, factoryFor(srv.URL))
	if !out.Success {
		t.Fatalf("expected second attempt to succeed, got %+v", out)
	}

	state := e.circuits.getOrCreate(srv.URL)
	state.mu.Lock()
	failures := state.failures
	state.mu.Unlock()
	if failures != 0 {
		t.Errorf("expected circuit failures reset to 0 after success, got %d", failures)
	}
}

func Test101stCircuitEntryEvictsOldest(t *testing.T) {
	e := New(http.DefaultClient, nil, logger.Noop())

	for i := 0; i < maxCircuitStates; i++ {
		e.circuits.getOrCreate(fmt.Sprintf("endpoint-%d", i))
	}
	if e.circuits.len() != maxCircuitStates {
		t.Fatalf("expected %d entries, got %d", maxCircuitStates, e.circuits.len())
	}

	e.circuits.getOrCreate("endpoint-new")
	if e.circuits.len() != maxCircuitStates {
		t.Fatalf("expected table to stay capped at %d after insert, got %d", maxCircuitStates, e.circuits.len())
	}
	if _, ok := e.circuits.table["endpoint-0"]; ok {
		t.Error("expected least-recently-accessed endpoint-0 to be evicted")
	}
}

func TestBackoffRespectsCancellation(t *testing.T) {
	e := New(http.DefaultClient, nil, logger.Noop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	e.backoff(ctx, 5, Policy{RetryDelayMs: 100}) // would otherwise sleep ~1.6s
	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("expected cancellation to cut backoff short, took %v", time.Since(start))
	}
}
