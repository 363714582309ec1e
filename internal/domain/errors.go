package domain

import "errors"

// Classified errors shared across the pipeline. Handlers map these onto HTTP
// status codes; everything else is treated as internal.
var (
	// ErrValidation marks a malformed client request. No side effects have
	// been performed when it is returned.
	ErrValidation = errors.New("invalid request")

	// ErrUpstream marks a failure of an external collaborator (model backend
	// or narrative engine) before streaming has begun.
	ErrUpstream = errors.New("upstream call failed")

	// ErrSessionNotFound is returned when a sessionId does not resolve.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionBusy is returned when another request already holds the
	// per-session lock.
	ErrSessionBusy = errors.New("session is processing another request")
)
