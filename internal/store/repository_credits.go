package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const creditAccountColumns = `id, user_id, current_balance, total_earned, total_spent, created_at, updated_at`

func scanCreditAccount(row pgx.Row) (*CreditAccount, error) {
	var a CreditAccount
	err := row.Scan(&a.ID, &a.UserID, &a.CurrentBalance, &a.TotalEarned, &a.TotalSpent, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *Store) CreditAccountByUser(ctx context.Context, userID string) (*CreditAccount, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+creditAccountColumns+` FROM credit_accounts WHERE user_id = $1`, userID)
	return scanCreditAccount(row)
}

// GetOrCreateCreditAccount returns the user's account, creating it with
// initialBalance on first reference. Creation with a positive balance
// records the matching initial_grant transaction in the same DB
// transaction so the ledger stays audit-complete.
func (s *Store) GetOrCreateCreditAccount(ctx context.Context, userID string, initialBalance int64) (*CreditAccount, error) {
	if existing, err := s.CreditAccountByUser(ctx, userID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO credit_accounts (id, user_id, current_balance, total_earned)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING `+creditAccountColumns,
		NewID(), userID, initialBalance)
	account, err := scanCreditAccount(row)
	if errors.Is(err, ErrNotFound) {
		// Lost a creation race; the other writer owns the grant.
		return s.CreditAccountByUser(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	if initialBalance > 0 {
		if err := insertCreditTransaction(ctx, tx, CreditTransaction{
			ID:            NewID(),
			UserID:        userID,
			Type:          TxnTypeCredit,
			Reason:        ReasonInitialGrant,
			Amount:        initialBalance,
			BalanceBefore: 0,
			BalanceAfter:  initialBalance,
			Description:   fmt.Sprintf("Welcome bonus: %d credits", initialBalance),
		}); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return account, nil
}

// ApplyCreditDelta mutates the balance and appends the transaction row
// in one DB transaction. Debits fail with ErrInsufficientBalance when
// the locked balance cannot cover the amount; the balance row is never
// allowed to go negative.
func (s *Store) ApplyCreditDelta(ctx context.Context, d CreditDelta) (*CreditAccount, error) {
	if d.Amount <= 0 {
		return nil, errors.New("amount must be positive")
	}
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+creditAccountColumns+` FROM credit_accounts WHERE user_id = $1 FOR UPDATE`, d.UserID)
	account, err := scanCreditAccount(row)
	if err != nil {
		return nil, err
	}

	before := account.CurrentBalance
	var after int64
	var signedAmount int64
	switch d.Type {
	case TxnTypeDebit:
		if before < d.Amount {
			return nil, ErrInsufficientBalance
		}
		after = before - d.Amount
		signedAmount = -d.Amount
		_, err = tx.Exec(ctx, `
			UPDATE credit_accounts
			SET current_balance = $1, total_spent = total_spent + $2, updated_at = now()
			WHERE user_id = $3`,
			after, d.Amount, d.UserID)
	case TxnTypeCredit, TxnTypeRefund:
		after = before + d.Amount
		signedAmount = d.Amount
		_, err = tx.Exec(ctx, `
			UPDATE credit_accounts
			SET current_balance = $1, total_earned = total_earned + $2, updated_at = now()
			WHERE user_id = $3`,
			after, d.Amount, d.UserID)
	default:
		return nil, fmt.Errorf("unknown delta type %q", d.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := insertCreditTransaction(ctx, tx, CreditTransaction{
		ID:            NewID(),
		UserID:        d.UserID,
		Type:          d.Type,
		Reason:        d.Reason,
		Amount:        signedAmount,
		BalanceBefore: before,
		BalanceAfter:  after,
		ReferenceID:   d.ReferenceID,
		ReferenceType: d.ReferenceType,
		Description:   d.Description,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	account.CurrentBalance = after
	if signedAmount < 0 {
		account.TotalSpent += d.Amount
	} else {
		account.TotalEarned += d.Amount
	}
	return account, nil
}

func insertCreditTransaction(ctx context.Context, tx pgx.Tx, t CreditTransaction) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO credit_transactions
			(id, user_id, type, reason, amount, balance_before, balance_after, reference_id, reference_type, description)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		t.ID, t.UserID, t.Type, t.Reason, t.Amount, t.BalanceBefore, t.BalanceAfter, t.ReferenceID, t.ReferenceType, t.Description)
	return err
}

func (s *Store) ListCreditTransactions(ctx context.Context, userID string, limit int) ([]CreditTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, user_id, type, reason, amount, balance_before, balance_after, reference_id, reference_type, description, created_at
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []CreditTransaction{}
	for rows.Next() {
		var t CreditTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Reason, &t.Amount, &t.BalanceBefore, &t.BalanceAfter,
			&t.ReferenceID, &t.ReferenceType, &t.Description, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) GetOrCreateMessageStats(ctx context.Context, userID string) (*MessageStats, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO user_message_stats (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = user_message_stats.updated_at
		RETURNING user_id, free_messages_used, last_reset_date`, userID)
	var st MessageStats
	if err := row.Scan(&st.UserID, &st.FreeMessagesUsed, &st.LastResetDate); err != nil {
		return nil, err
	}
	return &st, nil
}

// ResetMessageStats starts a fresh free-message day with one message
// already counted when countFirst is set.
func (s *Store) ResetMessageStats(ctx context.Context, userID string, resetDate time.Time, countFirst bool) error {
	used := 0
	if countFirst {
		used = 1
	}
	_, err := s.Pool.Exec(ctx, `
		UPDATE user_message_stats
		SET free_messages_used = $1, last_reset_date = $2, updated_at = now()
		WHERE user_id = $3`, used, resetDate, userID)
	return err
}

func (s *Store) IncrementFreeMessagesUsed(ctx context.Context, userID string) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE user_message_stats
		SET free_messages_used = free_messages_used + 1, updated_at = now()
		WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
