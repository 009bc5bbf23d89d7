package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

const matchColumns = `id, user_id, sub_account_id, match_type, status, credits_consumed, consumed_at, expires_at, created_at`

func scanMatchRows(rows pgx.Rows) ([]MatchRecord, error) {
	defer rows.Close()
	out := []MatchRecord{}
	for rows.Next() {
		var m MatchRecord
		if err := rows.Scan(&m.ID, &m.UserID, &m.SubAccountID, &m.MatchType, &m.Status, &m.CreditsConsumed,
			&m.ConsumedAt, &m.ExpiresAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) InsertMatches(ctx context.Context, records []MatchRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = NewID()
		}
		if records[i].Status == "" {
			records[i].Status = MatchStatusAvailable
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO match_records (id, user_id, sub_account_id, match_type, status, credits_consumed, expires_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			records[i].ID, records[i].UserID, records[i].SubAccountID, records[i].MatchType,
			records[i].Status, records[i].CreditsConsumed, records[i].ExpiresAt)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) AvailableMatches(ctx context.Context, userID string, limit int) ([]MatchRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT `+matchColumns+`
		FROM match_records
		WHERE user_id = $1 AND status = 'available' AND (expires_at IS NULL OR expires_at > now())
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	return scanMatchRows(rows)
}

func (s *Store) AvailableMatchesByType(ctx context.Context, userID, matchType string) ([]MatchRecord, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+matchColumns+`
		FROM match_records
		WHERE user_id = $1 AND match_type = $2 AND status = 'available' AND (expires_at IS NULL OR expires_at > now())
		ORDER BY created_at DESC`, userID, matchType)
	if err != nil {
		return nil, err
	}
	return scanMatchRows(rows)
}

func (s *Store) MatchByCandidate(ctx context.Context, userID, subAccountID string) (*MatchRecord, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT `+matchColumns+`
		FROM match_records
		WHERE user_id = $1 AND sub_account_id = $2 AND status = 'available' AND (expires_at IS NULL OR expires_at > now())
		ORDER BY created_at DESC
		LIMIT 1`, userID, subAccountID)
	var m MatchRecord
	err := row.Scan(&m.ID, &m.UserID, &m.SubAccountID, &m.MatchType, &m.Status, &m.CreditsConsumed,
		&m.ConsumedAt, &m.ExpiresAt, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *Store) MatchHistory(ctx context.Context, userID string, limit int) ([]MatchRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT `+matchColumns+`
		FROM match_records
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	return scanMatchRows(rows)
}

// MarkMatchConsumed transitions an available match to consumed. Returns
// false with no side effect when the record is missing or already
// terminal.
func (s *Store) MarkMatchConsumed(ctx context.Context, matchID, userID string) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE match_records
		SET status = 'consumed', consumed_at = now(), updated_at = now()
		WHERE id = $1 AND user_id = $2 AND status = 'available'`, matchID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) MarkMatchExpired(ctx context.Context, matchID string) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE match_records
		SET status = 'expired', updated_at = now()
		WHERE id = $1 AND status = 'available'`, matchID)
	return err
}

func (s *Store) ExpireDueMatches(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE match_records
		SET status = 'expired', updated_at = now()
		WHERE status = 'available' AND expires_at IS NOT NULL AND expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) MatchCountsByType(ctx context.Context, userID string) (map[string]MatchTypeCounts, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT match_type,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'available'),
		       COUNT(*) FILTER (WHERE status = 'consumed')
		FROM match_records
		WHERE user_id = $1
		GROUP BY match_type`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]MatchTypeCounts{}
	for rows.Next() {
		var mt string
		var c MatchTypeCounts
		if err := rows.Scan(&mt, &c.Total, &c.Available, &c.Consumed); err != nil {
			return nil, err
		}
		out[mt] = c
	}
	return out, rows.Err()
}

// HasDailyMatchBetween reports whether a daily_free grant was created
// inside [from, to). Callers pass UTC calendar-day bounds.
func (s *Store) HasDailyMatchBetween(ctx context.Context, userID string, from, to time.Time) (bool, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT COUNT(1)
		FROM match_records
		WHERE user_id = $1 AND match_type = 'daily_free' AND created_at >= $2 AND created_at < $3`,
		userID, from, to)
	var n int
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) TotalMatchesConsumed(ctx context.Context, userID string) (int, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT COUNT(1) FROM match_records WHERE user_id = $1 AND status = 'consumed'`, userID)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) MatchHealthCounts(ctx context.Context, now time.Time) (*MatchHealth, error) {
	dayStart := now.UTC().Truncate(24 * time.Hour)
	row := s.Pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'available'),
		       COUNT(*) FILTER (WHERE status = 'consumed'),
		       COUNT(*) FILTER (WHERE status = 'expired'),
		       COUNT(*) FILTER (WHERE status = 'available' AND expires_at >= $1 AND expires_at < $1 + interval '24 hours'),
		       COUNT(*) FILTER (WHERE match_type = 'daily_free' AND created_at >= $2)
		FROM match_records`, now, dayStart)
	var h MatchHealth
	if err := row.Scan(&h.Total, &h.Available, &h.Consumed, &h.Expired, &h.ExpiringSoon, &h.GrantedToday); err != nil {
		return nil, err
	}
	return &h, nil
}
