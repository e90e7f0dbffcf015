package resilience

import "errors"

// ErrShortCircuited is wrapped into Outcome.LastError when a call is
// rejected by an open circuit without attempting a request.
var ErrShortCircuited = errors.New("resilience: circuit open")
