package memstore

import (
	"context"
	"time"

	"amoria/internal/store"
)

func matchAvailable(m *store.MatchRecord, now time.Time) bool {
	if m.Status != store.MatchStatusAvailable {
		return false
	}
	return m.ExpiresAt == nil || m.ExpiresAt.After(now)
}

func (s *Store) InsertMatches(ctx context.Context, records []store.MatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for i := range records {
		m := records[i]
		if m.ID == "" {
			m.ID = store.NewID()
		}
		if m.Status == "" {
			m.Status = store.MatchStatusAvailable
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		s.matches = append(s.matches, &m)
	}
	return nil
}

func (s *Store) AvailableMatches(ctx context.Context, userID string, limit int) ([]store.MatchRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	out := []store.MatchRecord{}
	for i := len(s.matches) - 1; i >= 0 && len(out) < limit; i-- {
		m := s.matches[i]
		if m.UserID == userID && matchAvailable(m, now) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *Store) AvailableMatchesByType(ctx context.Context, userID, matchType string) ([]store.MatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	out := []store.MatchRecord{}
	for i := len(s.matches) - 1; i >= 0; i-- {
		m := s.matches[i]
		if m.UserID == userID && m.MatchType == matchType && matchAvailable(m, now) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *Store) MatchByCandidate(ctx context.Context, userID, subAccountID string) (*store.MatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for i := len(s.matches) - 1; i >= 0; i-- {
		m := s.matches[i]
		if m.UserID == userID && m.SubAccountID == subAccountID && matchAvailable(m, now) {
			c := *m
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) MatchHistory(ctx context.Context, userID string, limit int) ([]store.MatchRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []store.MatchRecord{}
	for i := len(s.matches) - 1; i >= 0 && len(out) < limit; i-- {
		if s.matches[i].UserID == userID {
			out = append(out, *s.matches[i])
		}
	}
	return out, nil
}

func (s *Store) MarkMatchConsumed(ctx context.Context, matchID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.matches {
		if m.ID == matchID && m.UserID == userID && m.Status == store.MatchStatusAvailable {
			now := time.Now()
			m.Status = store.MatchStatusConsumed
			m.ConsumedAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) MarkMatchExpired(ctx context.Context, matchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.matches {
		if m.ID == matchID && m.Status == store.MatchStatusAvailable {
			m.Status = store.MatchStatusExpired
		}
	}
	return nil
}

func (s *Store) ExpireDueMatches(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.matches {
		if m.Status == store.MatchStatusAvailable && m.ExpiresAt != nil && m.ExpiresAt.Before(before) {
			m.Status = store.MatchStatusExpired
			n++
		}
	}
	return n, nil
}

func (s *Store) MatchCountsByType(ctx context.Context, userID string) (map[string]store.MatchTypeCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]store.MatchTypeCounts{}
	for _, m := range s.matches {
		if m.UserID != userID {
			continue
		}
		c := out[m.MatchType]
		c.Total++
		switch m.Status {
		case store.MatchStatusAvailable:
			c.Available++
		case store.MatchStatusConsumed:
			c.Consumed++
		}
		out[m.MatchType] = c
	}
	return out, nil
}

func (s *Store) HasDailyMatchBetween(ctx context.Context, userID string, from, to time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.matches {
		if m.UserID == userID && m.MatchType == store.MatchTypeDailyFree &&
			!m.CreatedAt.Before(from) && m.CreatedAt.Before(to) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) TotalMatchesConsumed(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.matches {
		if m.UserID == userID && m.Status == store.MatchStatusConsumed {
			n++
		}
	}
	return n, nil
}

func (s *Store) MatchHealthCounts(ctx context.Context, now time.Time) (*store.MatchHealth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dayStart := now.UTC().Truncate(24 * time.Hour)
	soon := now.Add(24 * time.Hour)
	var h store.MatchHealth
	for _, m := range s.matches {
		h.Total++
		switch m.Status {
		case store.MatchStatusAvailable:
			h.Available++
			if m.ExpiresAt != nil && !m.ExpiresAt.Before(now) && m.ExpiresAt.Before(soon) {
				h.ExpiringSoon++
			}
		case store.MatchStatusConsumed:
			h.Consumed++
		case store.MatchStatusExpired:
			h.Expired++
		}
		if m.MatchType == store.MatchTypeDailyFree && !m.CreatedAt.Before(dayStart) {
			h.GrantedToday++
		}
	}
	return &h, nil
}
