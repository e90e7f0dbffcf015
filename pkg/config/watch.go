package config

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a configuration file on disk and broadcasts newly
// parsed, validated GlobalConfig snapshots to subscribers whenever it
// changes, enabling runtime reload without a process restart.
type Watcher struct {
	updates chan *GlobalConfig
	done    chan struct{}
	once    sync.Once
	fsw     *fsnotify.Watcher
}

// Updates returns the channel of new configuration snapshots. The channel
// is single-slot: a reload that arrives before the previous one is
// consumed replaces it rather than blocking, so subscribers always see the
// latest configuration rather than a backlog.
func (w *Watcher) Updates() <-chan *GlobalConfig {
	return w.updates
}

// Close stops watching and releases the underlying OS watch handle.
func (w *Watcher) Close() {
	w.once.Do(func() {
		close(w.done)
		_ = w.fsw.Close()
	})
}

// WatchFile loads path once, then starts watching it for subsequent
// changes. Each change is debounced by 200ms (editors frequently emit
// multiple write events for a single save) before being reloaded and
// validated; an invalid reload is dropped and the previous snapshot
// remains in effect, so subscribers never observe partial state.
func WatchFile(path string) (*GlobalConfig, *Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}
	if err := fsw.Add(path); err != nil {
		_ = fsw.Close()
		return nil, nil, err
	}

	w := &Watcher{
		updates: make(chan *GlobalConfig, 1),
		done:    make(chan struct{}),
		fsw:     fsw,
	}

	go w.run(path)

	return cfg, w, nil
}

func (w *Watcher) run(path string) {
	var debounce <-chan time.Time

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			debounce = time.After(200 * time.Millisecond)

		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}

		case <-debounce:
			debounce = nil
			cfg, err := Load(path)
			if err != nil {
				continue
			}
			select {
			case <-w.updates:
			default:
			}
			w.updates <- cfg
		}
	}
}
