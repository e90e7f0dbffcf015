// Package watchermgr owns one OS-level filesystem watcher per configured
// folder, normalizes fsnotify events into FileEvent values delivered
// together with the folder's resolved EffectiveConfig, and restarts
// faulted watchers up to a bounded
// number of attempts before declaring a folder exhausted.
package watchermgr

import (
	"time"

	"github.com/trackd/filewatchrest/pkg/config"
)

// ChangeKind classifies a normalized filesystem change. Deleted events are
// never forwarded (only Created, Changed and Renamed reach the Worker).
type ChangeKind int

const (
	Created ChangeKind = iota
	Changed
	Renamed
)

// String returns a human-readable change kind name.
func (k ChangeKind) String() string {
	switch k {
	case Created:
		return "created"
	case Changed:
		return "changed"
	case Renamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// FileEvent is a normalized filesystem change. The path's resolved
// EffectiveConfig is passed alongside it to OnChangedFunc.
type FileEvent struct {
	Path      string
	OldPath   string // set only for Renamed, the prior path
	Kind      ChangeKind
	Timestamp time.Time
}

// OnChangedFunc receives a normalized event alongside the EffectiveConfig
// and action snapshot resolved for its path.
type OnChangedFunc func(event FileEvent, effective config.EffectiveConfig)

// OnErrorFunc is invoked for every watcher error observed for folder,
// whether or not it eventually triggers a restart.
type OnErrorFunc func(folder string, err error)

// OnExhaustedFunc is invoked exactly once per folder per exhaustion event,
// once its restart attempts have been exceeded. The Worker treats this as
// fatal and requests shutdown.
type OnExhaustedFunc func(folder string)

// folderState is the per-folder restart state machine:
// Idle -> Running -> Faulted -> Restarting -> Running or -> Exhausted.
type folderState int

const (
	stateIdle folderState = iota
	stateRunning
	stateFaulted
	stateRestarting
	stateExhausted
)

func (s folderState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateRunning:
		return "running"
	case stateFaulted:
		return "faulted"
	case stateRestarting:
		return "restarting"
	case stateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}
