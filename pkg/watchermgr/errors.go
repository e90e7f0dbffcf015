package watchermgr

import "errors"

var (
	// ErrManagerClosed is returned when Start is called on a manager that
	// has already been stopped.
	ErrManagerClosed = errors.New("watchermgr: manager closed")

	// ErrAlreadyStarted is returned when Start is called twice without an
	// intervening StopAll.
	ErrAlreadyStarted = errors.New("watchermgr: already started")

	// ErrNoResolution is returned by TryResolve when path does not fall
	// under any configured folder.
	ErrNoResolution = errors.New("watchermgr: no folder matches path")
)
