package worker

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/trackd/filewatchrest/pkg/config"
	"github.com/trackd/filewatchrest/pkg/diagnostics"
	"github.com/trackd/filewatchrest/pkg/logger"
	"github.com/trackd/filewatchrest/pkg/pattern"
	"github.com/trackd/filewatchrest/pkg/resilience"
	"github.com/trackd/filewatchrest/pkg/sender"
	"github.com/trackd/filewatchrest/pkg/watchermgr"
)

// New creates a Worker from opts, loading (but not yet acting on) the
// initial configuration snapshot.
func New(opts Options) (*Worker, error) {
	var cfg *config.GlobalConfig
	var cfgWatcher *config.Watcher
	var err error

	if opts.Watch {
		cfg, cfgWatcher, err = config.WatchFile(opts.ConfigPath)
	} else {
		cfg, err = config.Load(opts.ConfigPath)
	}
	if err != nil {
		return nil, fmt.Errorf("load initial configuration: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Output: cfg.Logging.Output,
		Format: cfg.Logging.Format,
	})

	posted, err := newPostedCache(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open posted cache: %w", err)
	}

	w := &Worker{
		opts:       opts,
		log:        log,
		cfg:        cfg,
		matcher:    pattern.Default(),
		diag:       diagnostics.New(posted),
		cfgWatcher: cfgWatcher,
		exhausted:  make(chan shutdownSignal, 1),
		stopCh:     make(chan struct{}),
	}

	w.engine = resilience.New(&http.Client{}, w.diag, log.With("component", "resilience"))
	w.diag.SetHTTPCounterSource(w.engine)
	w.watcherMgr = watchermgr.New(w.diag, log.With("component", "watchermgr"))

	if err := w.openEventSink(cfg.Logging); err != nil {
		return nil, fmt.Errorf("open event sink: %w", err)
	}

	return w, nil
}

// openEventSink wires the structured event trail when configured: every
// recorded file event is appended to Logging.EventFile as CSV (default)
// or NDJSON.
func (w *Worker) openEventSink(logging config.LoggingConfig) error {
	if logging.EventFile == "" {
		return nil
	}

	var (
		sink logger.Sink
		err  error
	)
	if strings.EqualFold(logging.EventFormat, "ndjson") {
		sink, err = logger.NewNDJSONSink(logging.EventFile)
	} else {
		sink, err = logger.NewCSVSink(logging.EventFile)
	}
	if err != nil {
		return err
	}

	w.eventSink = sink
	w.diag.SetEventSink(func(rec diagnostics.EventRecord) {
		level := "Information"
		message := "file dispatched"
		if !rec.Success {
			level = "Warning"
			message = "file dispatch failed"
		}
		ev := logger.Event{
			Timestamp:  rec.Timestamp.Format(time.RFC3339Nano),
			Level:      level,
			Message:    message + ": " + rec.Path,
			Category:   "sender",
			StatusCode: rec.StatusCode,
		}
		if err := sink.Write(ev); err != nil {
			w.log.Warn("failed to append event trail", "file", logging.EventFile, "error", err)
		}
	})

	return nil
}

// newPostedCache opens a bbolt-backed PostedCache when
// StorageConfig.PostedCachePersist is set, or an in-memory cache
// otherwise.
func newPostedCache(storage config.StorageConfig) (diagnostics.PostedCache, error) {
	if !storage.PostedCachePersist {
		return diagnostics.NewMemoryPostedCache(), nil
	}

	dir := filepath.Dir(storage.DBPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create posted cache directory: %w", err)
		}
	}

	db, err := bolt.Open(storage.DBPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open posted cache db %s: %w", storage.DBPath, err)
	}

	return diagnostics.NewBoltPostedCache(db)
}

// Run executes the Worker's start sequence and blocks until ctx is
// cancelled, Stop is called, or a watched folder's restart attempts are
// exhausted.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.start(ctx); err != nil {
		return err
	}
	defer w.stop()

	if w.cfgWatcher != nil {
		w.wg.Add(1)
		go w.watchConfig(ctx)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-w.stopCh:
		return nil
	case sig := <-w.exhausted:
		return fmt.Errorf("%w: folder %s", ErrWatcherExhausted, sig.folder)
	}
}

// Stop requests a graceful shutdown of a running Worker. Safe to call
// multiple times.
func (w *Worker) Stop() {
	w.once.Do(func() { close(w.stopCh) })
}

// Diagnostics returns the Worker's diagnostics registry. The Worker
// serves it over HTTP itself when Diagnostics.URLPrefix is configured.
func (w *Worker) Diagnostics() *diagnostics.Diagnostics {
	return w.diag
}

func (w *Worker) start(ctx context.Context) error {
	w.mu.RLock()
	cfg := w.cfg
	w.mu.RUnlock()

	w.startDiagnosticsServer(cfg)

	w.debouncer = debounceFor(w, cfg)
	w.debouncer.Start()

	w.senderPool = sender.New(w.debouncer.Ready(), cfg.SenderParallelism, w.watcherMgr, w.diag, w.engine, w.log.With("component", "sender"))
	w.senderPool.Start(ctx)

	if len(cfg.Folders) > 0 {
		if err := w.watcherMgr.Start(cfg, w.onChanged, w.onWatcherError, w.onWatcherExhausted); err != nil {
			return fmt.Errorf("start watcher manager: %w", err)
		}
		w.rescanExisting(cfg)
	} else {
		w.log.Warn("no folders configured; waiting for a configuration reload")
	}

	return nil
}

func (w *Worker) stop() {
	if w.watcherMgr != nil {
		w.watcherMgr.Close()
	}
	if w.senderPool != nil {
		w.senderPool.Stop()
	}
	if w.debouncer != nil {
		w.debouncer.Stop()
	}
	if w.diagServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = w.diagServer.Shutdown(shutdownCtx)
	}
	if w.cfgWatcher != nil {
		w.cfgWatcher.Close()
	}
	w.wg.Wait()
	w.extWG.Wait()
	if w.eventSink != nil {
		_ = w.eventSink.Close()
	}
}

func (w *Worker) startDiagnosticsServer(cfg *config.GlobalConfig) {
	if cfg.Diagnostics.URLPrefix == "" {
		return
	}

	addr := addrFromURLPrefix(cfg.Diagnostics.URLPrefix)
	server := diagnostics.NewServer(w.diag, cfg.Diagnostics.BearerToken, w.configView)
	if err := server.Start(addr); err != nil {
		w.log.Error("failed to start diagnostics server", "addr", addr, "error", err)
		return
	}
	w.diagServer = server
}

// configView returns the current configuration for the unauthenticated
// GET /config endpoint, with every bearer token redacted so a bearer-less
// diagnostics deployment never leaks a secret over that one open route.
func (w *Worker) configView() any {
	w.mu.RLock()
	cfg := w.cfg
	w.mu.RUnlock()
	return redactedConfigView(cfg)
}

func redactedConfigView(cfg *config.GlobalConfig) any {
	clone := *cfg
	clone.Defaults.Bearer = redactSecret(clone.Defaults.Bearer)
	clone.Diagnostics.BearerToken = redactSecret(clone.Diagnostics.BearerToken)

	actions := make(map[string]config.ActionDef, len(cfg.Actions))
	for name, action := range cfg.Actions {
		if action.RestPost != nil && action.RestPost.Bearer != nil {
			redacted := redactSecret(*action.RestPost.Bearer)
			overrideCopy := *action.RestPost
			overrideCopy.Bearer = &redacted
			action.RestPost = &overrideCopy
		}
		actions[name] = action
	}
	clone.Actions = actions

	return &clone
}

func redactSecret(s string) string {
	if s == "" {
		return ""
	}
	return "***redacted***"
}

// addrFromURLPrefix extracts a listen address (host:port) from a
// configured diagnostics URL prefix such as "http://127.0.0.1:9191".
func addrFromURLPrefix(prefix string) string {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(prefix, "https://"), "http://")
	trimmed = strings.TrimSuffix(trimmed, "/")
	return trimmed
}

func (w *Worker) watchConfig(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case newCfg, ok := <-w.cfgWatcher.Updates():
			if !ok {
				return
			}
			w.reload(ctx, newCfg)
		}
	}
}

// reload applies a new configuration snapshot, serialized by a
// non-blocking try-lock: a reload already in progress causes a
// concurrent attempt to be dropped with a warning (the next file change
// will simply trigger another).
func (w *Worker) reload(ctx context.Context, newCfg *config.GlobalConfig) {
	if !w.reloading.CompareAndSwap(false, true) {
		w.log.Warn("reload already in progress, dropping concurrent reload")
		return
	}
	defer w.reloading.Store(false)

	w.mu.RLock()
	oldCfg := w.cfg
	w.mu.RUnlock()

	w.mu.Lock()
	w.cfg = newCfg
	w.mu.Unlock()

	w.watcherMgr.StopAll()

	if len(newCfg.Folders) > 0 {
		if err := w.watcherMgr.Start(newCfg, w.onChanged, w.onWatcherError, w.onWatcherExhausted); err != nil {
			w.log.Error("failed to restart watchers after reload", "error", err)
		} else {
			w.rescanExisting(newCfg)
		}
	}

	if newCfg.Logging != oldCfg.Logging {
		w.log = logger.New(logger.Config{
			Level:  newCfg.Logging.Level,
			Output: newCfg.Logging.Output,
			Format: newCfg.Logging.Format,
		})
	}

	if newCfg.Diagnostics != oldCfg.Diagnostics {
		if w.diagServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			_ = w.diagServer.Shutdown(shutdownCtx)
			cancel()
			w.diagServer = nil
		}
		w.startDiagnosticsServer(newCfg)
	}

	w.log.Info("configuration reloaded", "folders", len(newCfg.Folders))
}

// rescanExisting scans each configured folder's top-level entries and
// schedules any candidate already present at startup, applying the same
// filter pipeline as live events.
func (w *Worker) rescanExisting(cfg *config.GlobalConfig) {
	for _, folder := range cfg.Folders {
		entries, err := os.ReadDir(folder.Path)
		if err != nil {
			w.log.Warn("failed to scan folder at startup", "folder", folder.Path, "error", err)
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			path := filepath.Join(folder.Path, entry.Name())
			w.dispatchChange(path, watchermgr.Created)
		}
	}
}

func (w *Worker) onWatcherError(folder string, err error) {
	w.log.Warn("watcher error", "folder", folder, "error", err)
}

func (w *Worker) onWatcherExhausted(folder string) {
	w.log.Error("watcher restart attempts exhausted; requesting shutdown", "folder", folder)
	select {
	case w.exhausted <- shutdownSignal{folder: folder}:
	default:
	}
}
