package pattern

import "errors"

// Common errors returned by the pattern matcher.
var (
	// ErrEvaluationTimeout names a match that exceeded the evaluation
	// watchdog (100ms by default). IsMatch does not return it: a timed-out
	// match is reported as a non-match (false).
	ErrEvaluationTimeout = errors.New("pattern evaluation timed out")
)
