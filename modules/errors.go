package modules

import "errors"

// Upstream failures are typed so the protocol layer can tell a user that
// they are out of credits instead of pretending a track does not exist.
// Matched with errors.Is; wrap with fmt.Errorf("...: %w", Err...).
var (
	ErrRateLimited         = errors.New("upstream rate limited")
	ErrInsufficientCredits = errors.New("insufficient upstream credits")
	ErrNotFound            = errors.New("track not found")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
