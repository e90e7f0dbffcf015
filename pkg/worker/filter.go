package worker

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/trackd/filewatchrest/pkg/config"
	"github.com/trackd/filewatchrest/pkg/debounce"
	"github.com/trackd/filewatchrest/pkg/watchermgr"
)

// debounceFor builds the Debouncer wired to w, resolving each path's
// debounce window through the WatcherManager's EffectiveConfig
// resolution (falling back to the global default when unresolvable).
func debounceFor(w *Worker, cfg *config.GlobalConfig) *debounce.Debouncer {
	debounceMs := func(path string) int {
		effective, _, err := w.watcherMgr.TryResolve(path)
		if err != nil {
			return cfg.Defaults.DebounceMs
		}
		if effective.Kind != config.ActionRestPost {
			return 0
		}
		return effective.RestPost.DebounceMs
	}

	onDrop := func(path string) {
		w.diag.RecordFileEvent(path, false, nil)
	}

	onEmit := func(string) {
		w.diag.IncrementEnqueued()
	}

	return debounce.New(cfg.ChannelCapacity, debounceMs, onDrop, onEmit, w.log.With("component", "debounce"))
}

// onChanged is the WatcherManager callback feeding the filter pipeline.
func (w *Worker) onChanged(event watchermgr.FileEvent, effective config.EffectiveConfig) {
	w.handleCandidate(event.Path, effective, true)
}

// dispatchChange resolves path's effective configuration for the startup
// rescan, which has no live FileEvent to draw it from, then applies the
// same pipeline as onChanged.
func (w *Worker) dispatchChange(path string, _ watchermgr.ChangeKind) {
	effective, _, err := w.watcherMgr.TryResolve(path)
	if err != nil {
		return
	}
	w.handleCandidate(path, effective, false)
}

// handleCandidate applies the filter pipeline and dispatches by action
// kind: ExternalProcess actions fire immediately, bypassing the
// Debouncer and PostedCache entirely; RestPost candidates are filtered
// and handed to the Debouncer.
//
// live distinguishes a watcher-observed change from the startup rescan:
// a successfully posted path stays skipped until a new change event is
// observed for it, so a live event clears the posted mark and proceeds,
// while the rescan honors it.
func (w *Worker) handleCandidate(path string, effective config.EffectiveConfig, live bool) {
	if effective.Kind == config.ActionExternalProcess {
		w.dispatchExternalProcess(path, effective.ExternalProcess)
		return
	}

	cfg := effective.RestPost

	if pathHasSegment(path, cfg.ProcessedFolder) {
		return
	}
	if len(cfg.AllowedExtensions) > 0 && !w.extensionAllowed(filepath.Base(path), cfg.AllowedExtensions) {
		return
	}
	if _, excluded := w.matcher.TryMatchAny(filepath.Base(path), cfg.ExcludePatterns); excluded {
		return
	}
	if w.diag.IsPosted(path) {
		if !live {
			return
		}
		_ = w.diag.ClearPosted(path)
	}

	w.debouncer.Schedule(path)
}

func (w *Worker) dispatchExternalProcess(path string, cfg config.ExternalProcessConfig) {
	w.extWG.Add(1)
	go func() {
		defer w.extWG.Done()
		if err := w.senderPool.DispatchExternalProcess(context.Background(), path, cfg); err != nil {
			w.log.Warn("external process action failed", "path", path, "error", err)
		}
	}()
}

// extensionAllowed reports whether filename matches one of allowed: a
// dot-prefixed, wildcard-free entry is treated as a literal
// (case-insensitive) extension suffix; any other entry is evaluated as a
// glob pattern.
func (w *Worker) extensionAllowed(filename string, allowed []string) bool {
	for _, entry := range allowed {
		if strings.HasPrefix(entry, ".") && !w.matcher.ContainsWildcards(entry) {
			if strings.EqualFold(filepath.Ext(filename), entry) {
				return true
			}
			continue
		}
		if w.matcher.IsMatch(filename, entry) {
			return true
		}
	}
	return false
}

// pathHasSegment reports whether any path segment equals segment,
// case-insensitively, used to keep already-archived files out of the
// pipeline.
func pathHasSegment(path, segment string) bool {
	if segment == "" {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if strings.EqualFold(part, segment) {
			return true
		}
	}
	return false
}
