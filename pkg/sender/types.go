// Package sender drives the per-file processing state machine:
// readiness wait, notification build, action dispatch, and optional
// archive move. A bounded pool of workers consumes paths from the
// Debouncer's ready channel and runs one instance of the state machine
// per path.
package sender

import (
	"context"
	"time"

	"github.com/trackd/filewatchrest/pkg/config"
	"github.com/trackd/filewatchrest/pkg/diagnostics"
	"github.com/trackd/filewatchrest/pkg/resilience"
)

// Notification is the per-file payload built by the state machine and
// posted to the configured endpoint.
type Notification struct {
	Path          string    `json:"Path"`
	FileSize      int64     `json:"FileSize"`
	LastWriteTime time.Time `json:"LastWriteTime"`
	Content       string    `json:"Content,omitempty"`
}

// Resolver resolves a path to its EffectiveConfig, matching
// watchermgr.Manager.TryResolve's signature so *watchermgr.Manager
// satisfies this interface without pkg/sender importing pkg/watchermgr.
type Resolver interface {
	TryResolve(path string) (config.EffectiveConfig, string, error)
}

// Diag is the subset of *diagnostics.Diagnostics the state machine needs.
// Declared locally (rather than imported as a concrete type everywhere)
// to keep the state machine's dependencies visible and mockable in tests.
type Diag interface {
	IsPosted(path string) bool
	RecordFileEvent(path string, success bool, statusCode *int) diagnostics.EventRecord
}

// Dispatcher executes a resilience-wrapped HTTP request. *resilience.Engine
// satisfies this.
type Dispatcher interface {
	Execute(ctx context.Context, endpointKey string, policy resilience.Policy, factory resilience.RequestFactory) resilience.Outcome
}
