package worker

import "errors"

var (
	// ErrAlreadyRunning is returned by Run when the Worker is already started.
	ErrAlreadyRunning = errors.New("worker: already running")

	// ErrWatcherExhausted is the error Run returns when a watched folder's
	// restart attempts were exhausted; the host should stop.
	ErrWatcherExhausted = errors.New("worker: watcher restart attempts exhausted")
)
