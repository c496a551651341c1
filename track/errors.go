package track

import "errors"

// Sentinel error kinds. Transport layers map these to status codes and
// clients branch on kind (an invalid transition must not be retried; an
// unavailable dependency should be, with backoff).
var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidLocation   = errors.New("coordinate out of range")
	ErrStaleReport       = errors.New("stale location report")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidState      = errors.New("invalid state for operation")
	ErrConflict          = errors.New("conflicting active assignment")
	ErrUnavailable       = errors.New("dependency unavailable")
)
