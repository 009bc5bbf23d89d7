package chatroom

import "errors"

var (
	ErrInvalidRequest = errors.New("invalid_request")
	// ErrNotAuthorized means the user never held a match for this
	// candidate. Surfaced as an authorization failure, not a generic
	// not-found.
	ErrNotAuthorized        = errors.New("not_matched_with_candidate")
	ErrCandidateUnavailable = errors.New("candidate_unavailable")
	ErrAtCapacity           = errors.New("candidate_at_capacity")
	ErrNotFound             = errors.New("chatroom_not_found")
)
