package diagnostics

import "errors"

var (
	// ErrUnauthorized is returned by the HTTP surface when a bearer token
	// is configured and the request's Authorization header does not match.
	ErrUnauthorized = errors.New("diagnostics: unauthorized")

	// ErrMethodNotAllowed is returned for any non-GET (and non-OPTIONS)
	// request against the read-only diagnostics surface.
	ErrMethodNotAllowed = errors.New("diagnostics: method not allowed")

	// ErrNotFound is returned for requests to unknown diagnostics paths.
	ErrNotFound = errors.New("diagnostics: not found")
)
