package sender

import "errors"

var (
	// ErrNotRestPost is returned internally when ResolveConfig finds no
	// RestPost action applies to a path; the state machine terminates
	// quietly in this case (external-process actions are dispatched
	// directly from the Worker's change callback, not through the pool).
	ErrNotRestPost = errors.New("sender: no rest_post action for path")

	// ErrFileNeverReady is returned when WaitForFileReadyMs elapses without
	// the file becoming ready, DiscardZeroByteFiles is true, and the file
	// still reads as zero bytes (or could not be opened at all). With
	// DiscardZeroByteFiles false the state machine proceeds instead.
	ErrFileNeverReady = errors.New("sender: file never became ready")
)
