// Package worker wires the service together: it owns the current
// configuration snapshot, starts every other component, drives the
// change-event filter pipeline before a path reaches the Debouncer, and
// reconciles a hot configuration reload without a process restart.
package worker

import (
	"sync"
	"sync/atomic"

	"github.com/trackd/filewatchrest/pkg/config"
	"github.com/trackd/filewatchrest/pkg/debounce"
	"github.com/trackd/filewatchrest/pkg/diagnostics"
	"github.com/trackd/filewatchrest/pkg/logger"
	"github.com/trackd/filewatchrest/pkg/pattern"
	"github.com/trackd/filewatchrest/pkg/resilience"
	"github.com/trackd/filewatchrest/pkg/sender"
	"github.com/trackd/filewatchrest/pkg/watchermgr"
)

// Options configures a Worker at construction time. ConfigPath is the
// file the Worker loads its initial snapshot from and, when Watch is
// true, hot-reloads on subsequent changes.
type Options struct {
	ConfigPath string
	Watch      bool
}

// Worker owns the configuration snapshot and every running component.
type Worker struct {
	opts Options
	log  logger.Logger

	mu  sync.RWMutex
	cfg *config.GlobalConfig

	matcher pattern.Matcher

	diag       *diagnostics.Diagnostics
	diagServer *diagnostics.Server
	eventSink  logger.Sink

	watcherMgr *watchermgr.Manager
	debouncer  *debounce.Debouncer
	senderPool *sender.Pool
	engine     *resilience.Engine

	cfgWatcher *config.Watcher

	reloading atomic.Bool

	extWG sync.WaitGroup

	exhausted chan shutdownSignal

	stopCh chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// shutdownSignal carries the folder whose WatcherManager restart
// attempts were exhausted from the onExhausted callback to Run's select
// loop; exhaustion is fatal and asks the host to stop.
type shutdownSignal struct {
	folder string
}
