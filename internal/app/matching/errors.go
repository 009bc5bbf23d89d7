package matching

import "errors"

var (
	ErrInvalidRequest = errors.New("invalid_request")
	// ErrNoFreeMatches means every free tier is exhausted and the caller
	// did not opt into a paid grant.
	ErrNoFreeMatches = errors.New("no_free_matches")
	ErrNoCandidates  = errors.New("no_candidates_available")
)
