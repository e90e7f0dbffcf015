package watchermgr

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/trackd/filewatchrest/pkg/config"
	"github.com/trackd/filewatchrest/pkg/diagnostics"
	"github.com/trackd/filewatchrest/pkg/logger"
	"github.com/trackd/filewatchrest/pkg/pattern"
)

// renameWindow bounds how long a fsnotify Rename (source side) is held
// pending, waiting for a correlated Create on the destination side of the
// same move, before the move is treated as a plain move-out (suppressed,
// like Delete). Only a Rename or Remove followed by a Create in the same
// directory is correlated; a Create with no such predecessor is forwarded
// as Created.
const renameWindow = 50 * time.Millisecond

// nativeHandle is one OS-level fsnotify watcher instance for a folder.
// When AllowedExtensions is non-empty, one handle is created per
// extension (mirroring a native filter-per-instance watcher); otherwise a
// single catch-all handle is used.
type nativeHandle struct {
	fsw       *fsnotify.Watcher
	extFilter string // empty means accept all files
}

// folderEntry tracks one configured folder's watcher state.
type folderEntry struct {
	mu        sync.Mutex
	folder    string
	effective config.EffectiveConfig
	handles   []*nativeHandle
	state     folderState
	exhausted bool
	// recovering is set after a restart brings the watcher back up; the
	// restart counter is only reset once an event actually arrives, so a
	// watcher that flaps without ever delivering anything still exhausts
	// its bounded attempts.
	recovering bool
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// Manager owns one watcher per configured folder.
type Manager struct {
	mu      sync.Mutex
	started bool
	closed  bool

	entries map[string]*folderEntry // keyed by normalized absolute folder path

	tuning  config.WatcherTuning
	matcher pattern.Matcher
	diag    *diagnostics.Diagnostics
	log     logger.Logger

	onChanged   OnChangedFunc
	onError     OnErrorFunc
	onExhausted OnExhaustedFunc

	renameMu      sync.Mutex
	renamePending map[string]renameRecord // directory -> pending source path

	resolveCache *resolveCache
}

type renameRecord struct {
	oldPath string
	at      time.Time
}

// New creates a Manager. diag and log must not be nil.
func New(diag *diagnostics.Diagnostics, log logger.Logger) *Manager {
	return &Manager{
		entries:       make(map[string]*folderEntry),
		matcher:       pattern.Default(),
		diag:          diag,
		log:           log,
		renamePending: make(map[string]renameRecord),
		resolveCache:  newResolveCache(2 * time.Second),
	}
}

// Start creates a watcher per folder in global.Folders and begins
// delivering events to onChanged. onError is called for every observed
// watcher error; onExhausted is called exactly once per folder once its
// restart attempts are exceeded.
func (m *Manager) Start(global *config.GlobalConfig, onChanged OnChangedFunc, onError OnErrorFunc, onExhausted OnExhaustedFunc) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.tuning = global.Watcher
	m.onChanged = onChanged
	m.onError = onError
	m.onExhausted = onExhausted
	m.mu.Unlock()

	for _, folder := range global.Folders {
		effective, err := config.Resolve(folder, global)
		if err != nil {
			m.log.Warn("skipping folder with unresolvable action", "folder", folder.Path, "error", err)
			continue
		}

		if err := m.startFolder(folder.Path, effective); err != nil {
			m.log.Error("failed to start watcher", "folder", folder.Path, "error", err)
			continue
		}
	}

	return nil
}

func (m *Manager) startFolder(path string, effective config.EffectiveConfig) error {
	absPath, err := filepath.Abs(expandHome(path))
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}

	entry := &folderEntry{
		folder:    absPath,
		effective: effective,
		state:     stateIdle,
		stopCh:    make(chan struct{}),
	}

	if err := m.bringUp(entry); err != nil {
		return err
	}

	m.mu.Lock()
	m.entries[absPath] = entry
	m.mu.Unlock()

	m.diag.RegisterWatcher(absPath)
	m.resolveCache.invalidate()

	return nil
}

// bringUp builds native handles for entry and starts their event loops.
// Caller must not hold entry.mu.
func (m *Manager) bringUp(entry *folderEntry) error {
	handles, err := m.buildHandles(entry.folder, entry.effective)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	entry.handles = handles
	entry.state = stateRunning
	entry.mu.Unlock()

	for _, h := range handles {
		entry.wg.Add(1)
		go m.processEvents(entry, h)
	}

	return nil
}

// buildHandles creates one fsnotify.Watcher per AllowedExtensions entry,
// or a single catch-all handle when none are configured.
func (m *Manager) buildHandles(path string, effective config.EffectiveConfig) ([]*nativeHandle, error) {
	extensions := effective.RestPost.AllowedExtensions
	filters := []string{""}
	if len(extensions) > 0 {
		filters = extensions
	}

	handles := make([]*nativeHandle, 0, len(filters))
	for _, filter := range filters {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			for _, h := range handles {
				_ = h.fsw.Close()
			}
			return nil, fmt.Errorf("create fsnotify watcher: %w", err)
		}

		if err := addPathRecursive(fsw, path, effective.RestPost.IncludeSubdirectories); err != nil {
			_ = fsw.Close()
			for _, h := range handles {
				_ = h.fsw.Close()
			}
			return nil, err
		}

		handles = append(handles, &nativeHandle{fsw: fsw, extFilter: filter})
	}

	// fsnotify does not expose a configurable internal buffer size, so
	// InternalBufferBytes has no native equivalent to apply here; it is
	// still validated as non-negative in pkg/config.
	return handles, nil
}

// addPathRecursive adds path, and every subdirectory when recursive is
// true, to fsw.
func addPathRecursive(fsw *fsnotify.Watcher, path string, recursive bool) error {
	if err := fsw.Add(path); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	if !recursive {
		return nil
	}

	return filepath.Walk(path, func(subPath string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip, continue walking
		}
		if !info.IsDir() || subPath == path {
			return nil
		}
		_ = fsw.Add(subPath) // best-effort; a subdirectory we can't watch is simply not observed
		return nil
	})
}

func (m *Manager) processEvents(entry *folderEntry, handle *nativeHandle) {
	defer entry.wg.Done()

	for {
		select {
		case <-entry.stopCh:
			return

		case event, ok := <-handle.fsw.Events:
			if !ok {
				return
			}
			m.handleEvent(entry, handle, event)

		case err, ok := <-handle.fsw.Errors:
			if !ok {
				return
			}
			m.handleError(entry, err)
		}
	}
}

func (m *Manager) handleEvent(entry *folderEntry, handle *nativeHandle, event fsnotify.Event) {
	if filter := handle.extFilter; filter != "" {
		name := filepath.Base(event.Name)
		var allowed bool
		if strings.HasPrefix(filter, ".") && !m.matcher.ContainsWildcards(filter) {
			allowed = strings.EqualFold(filepath.Ext(name), filter)
		} else {
			allowed = m.matcher.IsMatch(name, filter)
		}
		if !allowed {
			return
		}
	}

	entry.mu.Lock()
	recovered := entry.recovering
	entry.recovering = false
	entry.mu.Unlock()
	if recovered {
		m.diag.ResetRestart(entry.folder)
	}

	now := time.Now()
	dir := filepath.Dir(event.Name)

	switch {
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		// Deleted events are suppressed, but may be the
		// source side of a move; remember it briefly in case a
		// correlated Create follows.
		m.notePendingRename(dir, event.Name, now)
		return

	case event.Op&fsnotify.Rename == fsnotify.Rename:
		m.notePendingRename(dir, event.Name, now)
		return

	case event.Op&fsnotify.Create == fsnotify.Create:
		if oldPath, ok := m.takePendingRename(dir, now); ok {
			m.emit(entry, FileEvent{Path: event.Name, OldPath: oldPath, Kind: Renamed, Timestamp: now})
			return
		}
		m.emit(entry, FileEvent{Path: event.Name, Kind: Created, Timestamp: now})

	case event.Op&fsnotify.Write == fsnotify.Write:
		m.emit(entry, FileEvent{Path: event.Name, Kind: Changed, Timestamp: now})

	default:
		// Chmod and anything else: not part of the forwarded set.
	}
}

func (m *Manager) emit(entry *folderEntry, ev FileEvent) {
	entry.mu.Lock()
	effective := entry.effective
	entry.mu.Unlock()

	if m.onChanged != nil {
		m.onChanged(ev, effective)
	}
}

func (m *Manager) notePendingRename(dir, path string, at time.Time) {
	m.renameMu.Lock()
	defer m.renameMu.Unlock()
	m.renamePending[dir] = renameRecord{oldPath: path, at: at}
}

func (m *Manager) takePendingRename(dir string, now time.Time) (string, bool) {
	m.renameMu.Lock()
	defer m.renameMu.Unlock()

	rec, ok := m.renamePending[dir]
	if !ok {
		return "", false
	}
	delete(m.renamePending, dir)

	if now.Sub(rec.at) > renameWindow {
		return "", false
	}
	return rec.oldPath, true
}

func (m *Manager) handleError(entry *folderEntry, err error) {
	if m.onError != nil {
		m.onError(entry.folder, err)
	}

	entry.mu.Lock()
	entry.state = stateFaulted
	entry.mu.Unlock()

	attempts := m.diag.IncrementRestart(entry.folder)

	if attempts > m.tuning.MaxRestartAttempts {
		entry.mu.Lock()
		alreadyExhausted := entry.exhausted
		entry.exhausted = true
		entry.state = stateExhausted
		entry.mu.Unlock()

		if !alreadyExhausted {
			m.tearDownHandles(entry)
			m.diag.UnregisterWatcher(entry.folder)
			if m.onExhausted != nil {
				m.onExhausted(entry.folder)
			}
		}
		return
	}

	entry.mu.Lock()
	entry.state = stateRestarting
	entry.mu.Unlock()

	go m.restartFolder(entry)
}

func (m *Manager) restartFolder(entry *folderEntry) {
	delay := config.DurationMs(m.tuning.RestartDelayMs)
	select {
	case <-time.After(delay):
	case <-entry.stopCh:
		return
	}

	m.tearDownHandles(entry)

	entry.mu.Lock()
	effective := entry.effective
	folder := entry.folder
	entry.mu.Unlock()

	handles, err := m.buildHandles(folder, effective)
	if err != nil {
		m.log.Error("watcher restart failed", "folder", folder, "error", err)
		m.handleError(entry, err)
		return
	}

	entry.mu.Lock()
	entry.handles = handles
	entry.state = stateRunning
	entry.recovering = true
	entry.mu.Unlock()

	for _, h := range handles {
		entry.wg.Add(1)
		go m.processEvents(entry, h)
	}
}

func (m *Manager) tearDownHandles(entry *folderEntry) {
	entry.mu.Lock()
	handles := entry.handles
	entry.handles = nil
	entry.mu.Unlock()

	for _, h := range handles {
		_ = h.fsw.Close()
	}
}

// StopAll disables and releases every watcher, unregistering each folder
// from Diagnostics.
func (m *Manager) StopAll() {
	m.mu.Lock()
	entries := make([]*folderEntry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.entries = make(map[string]*folderEntry)
	m.started = false
	m.mu.Unlock()

	for _, entry := range entries {
		close(entry.stopCh)
		m.tearDownHandles(entry)
		entry.wg.Wait()
		m.diag.UnregisterWatcher(entry.folder)
	}

	m.resolveCache.invalidate()
}

// Close permanently stops the manager; it cannot be Start-ed again.
func (m *Manager) Close() {
	m.StopAll()
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
