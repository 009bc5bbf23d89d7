package matching

import "time"

// CandidateView is the public shape of a matched sub-account.
type CandidateView struct {
	SubAccountID string `json:"sub_account_id"`
	AgentID      string `json:"agent_id"`
	DisplayName  string `json:"display_name"`
	AvatarURL    string `json:"avatar_url,omitempty"`
	Bio          string `json:"bio,omitempty"`
	Age          int    `json:"age,omitempty"`
	Location     string `json:"location,omitempty"`
}

type MatchView struct {
	MatchID         string         `json:"match_id"`
	MatchType       string         `json:"match_type"`
	Status          string         `json:"status"`
	CreditsConsumed int64          `json:"credits_consumed"`
	ExpiresAt       *time.Time     `json:"expires_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	Candidate       *CandidateView `json:"candidate,omitempty"`
}

// MatchesResponse is returned by both the grant path and the idempotent
// re-request path. Granted is false when existing matches were returned
// instead of new ones.
type MatchesResponse struct {
	Matches   []MatchView `json:"matches"`
	Granted   bool        `json:"granted"`
	GrantType string      `json:"grant_type,omitempty"`
}

type TierBreakdown struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Consumed  int `json:"consumed"`
}

type Breakdown struct {
	ByType map[string]TierBreakdown `json:"by_type"`
}

type Summary struct {
	Available     int `json:"available"`
	TotalConsumed int `json:"total_consumed"`
	TotalGranted  int `json:"total_granted"`
}
