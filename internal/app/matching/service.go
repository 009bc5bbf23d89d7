// Package matching owns the match ledger: tiered grants in fixed
// priority order (initial, daily free, paid), candidate allocation,
// consumption, and the read models the product surfaces.
package matching

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"amoria/internal/app/credits"
	"amoria/internal/config"
	"amoria/internal/store"
)

// MatchStore is the match ledger persistence surface.
type MatchStore interface {
	InsertMatches(ctx context.Context, records []store.MatchRecord) error
	AvailableMatches(ctx context.Context, userID string, limit int) ([]store.MatchRecord, error)
	MatchByCandidate(ctx context.Context, userID, subAccountID string) (*store.MatchRecord, error)
	MatchHistory(ctx context.Context, userID string, limit int) ([]store.MatchRecord, error)
	MarkMatchConsumed(ctx context.Context, matchID, userID string) (bool, error)
	MarkMatchExpired(ctx context.Context, matchID string) error
	ExpireDueMatches(ctx context.Context, before time.Time) (int, error)
	MatchCountsByType(ctx context.Context, userID string) (map[string]store.MatchTypeCounts, error)
	HasDailyMatchBetween(ctx context.Context, userID string, from, to time.Time) (bool, error)
	TotalMatchesConsumed(ctx context.Context, userID string) (int, error)
	MatchHealthCounts(ctx context.Context, now time.Time) (*store.MatchHealth, error)
}

const historyLookback = 200

type Service struct {
	matches   MatchStore
	directory AgentDirectory
	credits   *credits.Service
	alloc     allocator
	cfg       config.MatchConfig

	now func() time.Time
}

func NewService(matches MatchStore, directory AgentDirectory, cr *credits.Service, cfg config.MatchConfig) *Service {
	return &Service{
		matches:   matches,
		directory: directory,
		credits:   cr,
		alloc:     allocator{agents: directory},
		cfg:       cfg,
		now:       time.Now,
	}
}

// RequestNewMatches grants matches for the user under the highest
// eligible tier. Re-requesting while available matches exist returns
// those matches and grants nothing. The paid tier is only attempted
// when allowPaid is set.
func (s *Service) RequestNewMatches(ctx context.Context, userID string, allowPaid bool) (*MatchesResponse, error) {
	if userID == "" {
		return nil, ErrInvalidRequest
	}

	// A match request is often the user's first touch; make sure the
	// credit account (and its welcome grant) exists before any tier
	// decision.
	if _, err := s.credits.GetOrCreateAccount(ctx, userID); err != nil {
		return nil, err
	}

	existing, err := s.liveMatches(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return &MatchesResponse{Matches: existing, Granted: false}, nil
	}

	counts, err := s.matches.MatchCountsByType(ctx, userID)
	if err != nil {
		return nil, err
	}
	if counts[store.MatchTypeInitial].Total == 0 {
		return s.grantInitial(ctx, userID)
	}

	dayStart, dayEnd := utcDayBounds(s.now())
	granted, err := s.matches.HasDailyMatchBetween(ctx, userID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	if !granted {
		return s.grantDailyFree(ctx, userID, dayEnd)
	}

	if allowPaid {
		return s.grantPaid(ctx, userID)
	}
	return nil, ErrNoFreeMatches
}

func (s *Service) grantInitial(ctx context.Context, userID string) (*MatchesResponse, error) {
	candidates, err := s.alloc.pickForUser(ctx, userID, s.cfg.InitialFreeMatches, map[string]bool{})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}
	records := buildRecords(userID, candidates, store.MatchTypeInitial, 0, nil)
	if err := s.matches.InsertMatches(ctx, records); err != nil {
		return nil, err
	}
	return &MatchesResponse{
		Matches:   viewsFor(records, candidates),
		Granted:   true,
		GrantType: store.MatchTypeInitial,
	}, nil
}

func (s *Service) grantDailyFree(ctx context.Context, userID string, expiresAt time.Time) (*MatchesResponse, error) {
	history, err := s.historySet(ctx, userID)
	if err != nil {
		return nil, err
	}
	candidates, err := s.alloc.pickForUser(ctx, userID, 1, history)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}
	records := buildRecords(userID, candidates, store.MatchTypeDailyFree, 0, &expiresAt)
	if err := s.matches.InsertMatches(ctx, records); err != nil {
		return nil, err
	}
	return &MatchesResponse{
		Matches:   viewsFor(records, candidates),
		Granted:   true,
		GrantType: store.MatchTypeDailyFree,
	}, nil
}

// grantPaid is a compensated saga: the debit lands first, and any
// failure to produce the match afterwards refunds it.
func (s *Service) grantPaid(ctx context.Context, userID string) (*MatchesResponse, error) {
	grantID := store.NewID()
	if _, err := s.credits.Consume(ctx, userID, s.cfg.CostPerMatch,
		store.ReasonMatchConsumption, grantID, "match_grant", "Paid match"); err != nil {
		return nil, err
	}

	history, err := s.historySet(ctx, userID)
	if err != nil {
		s.refundFailedGrant(ctx, userID, grantID)
		return nil, err
	}
	candidates, err := s.alloc.pickForUser(ctx, userID, 1, history)
	if err != nil {
		s.refundFailedGrant(ctx, userID, grantID)
		return nil, err
	}
	if len(candidates) == 0 {
		s.refundFailedGrant(ctx, userID, grantID)
		return nil, ErrNoCandidates
	}

	records := buildRecords(userID, candidates, store.MatchTypePaid, s.cfg.CostPerMatch, nil)
	records[0].ID = grantID
	if err := s.matches.InsertMatches(ctx, records); err != nil {
		s.refundFailedGrant(ctx, userID, grantID)
		return nil, err
	}
	return &MatchesResponse{
		Matches:   viewsFor(records, candidates),
		Granted:   true,
		GrantType: store.MatchTypePaid,
	}, nil
}

func (s *Service) refundFailedGrant(ctx context.Context, userID, grantID string) {
	if _, err := s.credits.Refund(ctx, userID, s.cfg.CostPerMatch,
		store.ReasonRefundFailedGrant, grantID, "match_grant", "Paid match grant failed"); err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("grant_id", grantID).
			Msg("refund after failed paid grant did not land")
	}
}

// GetCurrentMatches returns the user's live matches. Degrades to an
// empty list on internal failure since it feeds non-critical UI.
func (s *Service) GetCurrentMatches(ctx context.Context, userID string) []MatchView {
	if userID == "" {
		return []MatchView{}
	}
	matches, err := s.liveMatches(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("current matches lookup failed")
		return []MatchView{}
	}
	return matches
}

// liveMatches loads available matches and lazily expires records whose
// candidate is gone or suspended. Transient states (busy, offline) do
// not expire a match.
func (s *Service) liveMatches(ctx context.Context, userID string) ([]MatchView, error) {
	records, err := s.matches.AvailableMatches(ctx, userID, 0)
	if err != nil {
		return nil, err
	}
	out := []MatchView{}
	for _, m := range records {
		sub, err := s.directory.SubAccountByID(ctx, m.SubAccountID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				s.expireLostCandidate(ctx, m)
				continue
			}
			return nil, err
		}
		if sub.Status == store.SubAccountStatusSuspended {
			s.expireLostCandidate(ctx, m)
			continue
		}
		out = append(out, matchView(m, sub))
	}
	return out, nil
}

func (s *Service) expireLostCandidate(ctx context.Context, m store.MatchRecord) {
	if err := s.matches.MarkMatchExpired(ctx, m.ID); err != nil {
		log.Warn().Err(err).Str("match_id", m.ID).Msg("lazy expiry failed")
	}
}

// ConsumeMatch transitions the user's available match for the candidate
// to consumed. A missing or already-consumed match returns false with
// no side effect.
func (s *Service) ConsumeMatch(ctx context.Context, userID, subAccountID string) (bool, error) {
	m, err := s.matches.MatchByCandidate(ctx, userID, subAccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return s.matches.MarkMatchConsumed(ctx, m.ID, userID)
}

// MatchBreakdown degrades to zero values on failure.
func (s *Service) MatchBreakdown(ctx context.Context, userID string) *Breakdown {
	out := &Breakdown{ByType: map[string]TierBreakdown{}}
	counts, err := s.matches.MatchCountsByType(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("match breakdown query failed")
		return out
	}
	for mt, c := range counts {
		out.ByType[mt] = TierBreakdown{Total: c.Total, Available: c.Available, Consumed: c.Consumed}
	}
	return out
}

// MatchSummary degrades to zero values on failure.
func (s *Service) MatchSummary(ctx context.Context, userID string) *Summary {
	out := &Summary{}
	counts, err := s.matches.MatchCountsByType(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("match summary query failed")
		return out
	}
	for _, c := range counts {
		out.TotalGranted += c.Total
		out.Available += c.Available
	}
	consumed, err := s.matches.TotalMatchesConsumed(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("match summary consumed count failed")
		return out
	}
	out.TotalConsumed = consumed
	return out
}

// MatchHistoryViews degrades to an empty list on failure.
func (s *Service) MatchHistoryViews(ctx context.Context, userID string, limit int) []MatchView {
	records, err := s.matches.MatchHistory(ctx, userID, limit)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("match history query failed")
		return []MatchView{}
	}
	out := make([]MatchView, 0, len(records))
	for _, m := range records {
		out = append(out, matchView(m, nil))
	}
	return out
}

func (s *Service) historySet(ctx context.Context, userID string) (map[string]bool, error) {
	history, err := s.matches.MatchHistory(ctx, userID, historyLookback)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(history))
	for _, m := range history {
		seen[m.SubAccountID] = true
	}
	return seen, nil
}

func utcDayBounds(now time.Time) (time.Time, time.Time) {
	y, m, d := now.UTC().Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

func buildRecords(userID string, candidates []store.SubAccount, matchType string, cost int64, expiresAt *time.Time) []store.MatchRecord {
	records := make([]store.MatchRecord, 0, len(candidates))
	for _, c := range candidates {
		records = append(records, store.MatchRecord{
			ID:              store.NewID(),
			UserID:          userID,
			SubAccountID:    c.ID,
			MatchType:       matchType,
			Status:          store.MatchStatusAvailable,
			CreditsConsumed: cost,
			ExpiresAt:       expiresAt,
		})
	}
	return records
}

func matchView(m store.MatchRecord, sub *store.SubAccount) MatchView {
	v := MatchView{
		MatchID:         m.ID,
		MatchType:       m.MatchType,
		Status:          m.Status,
		CreditsConsumed: m.CreditsConsumed,
		ExpiresAt:       m.ExpiresAt,
		CreatedAt:       m.CreatedAt,
	}
	if sub != nil {
		v.Candidate = &CandidateView{
			SubAccountID: sub.ID,
			AgentID:      sub.AgentID,
			DisplayName:  sub.DisplayName,
			AvatarURL:    sub.AvatarURL,
			Bio:          sub.Bio,
			Age:          sub.Age,
			Location:     sub.Location,
		}
	}
	return v
}

func viewsFor(records []store.MatchRecord, candidates []store.SubAccount) []MatchView {
	byID := make(map[string]*store.SubAccount, len(candidates))
	for i := range candidates {
		byID[candidates[i].ID] = &candidates[i]
	}
	out := make([]MatchView, 0, len(records))
	for _, m := range records {
		out = append(out, matchView(m, byID[m.SubAccountID]))
	}
	return out
}
