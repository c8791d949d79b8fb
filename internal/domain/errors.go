package domain

import "errors"

var (
	// ErrInvalidTransition is returned when a lifecycle event is not allowed
	// from the session's current state.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrNotFound is returned for unknown sessions or records.
	ErrNotFound = errors.New("not found")
	// ErrCaptureUnavailable is returned by capture sources that cannot
	// produce a frame right now.
	ErrCaptureUnavailable = errors.New("capture unavailable")
	// ErrTransientAnalysis marks an analysis failure that exhausted its retries.
	ErrTransientAnalysis = errors.New("transient analysis failure")
	// ErrPermanentAnalysis marks an analysis failure that must not be retried.
	ErrPermanentAnalysis = errors.New("permanent analysis failure")
	// ErrNoRecords is returned when a summary is requested for a session
	// without any succeeded record.
	ErrNoRecords = errors.New("no succeeded records")
	// ErrSessionNotActive is returned when a frame is submitted for a session
	// that no longer accepts context.
	ErrSessionNotActive = errors.New("session not active")
	// ErrInvalidArgument is returned for malformed caller input.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Analyzer failure classes.
var (
	ErrRateLimited = errors.New("analyzer rate limited")
	ErrAuth        = errors.New("analyzer authentication failed")
	ErrTimeout     = errors.New("analyzer timeout")
	ErrMalformed   = errors.New("analyzer rejected malformed input")
)

// IsPermanent reports whether an analyzer error must not be retried.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrAuth) || errors.Is(err, ErrMalformed) || errors.Is(err, ErrPermanentAnalysis)
}
