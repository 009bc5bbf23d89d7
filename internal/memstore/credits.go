package memstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"amoria/internal/store"
)

func copyAccount(a *store.CreditAccount) *store.CreditAccount {
	c := *a
	return &c
}

func (s *Store) CreditAccountByUser(ctx context.Context, userID string) (*store.CreditAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyAccount(a), nil
}

func (s *Store) GetOrCreateCreditAccount(ctx context.Context, userID string, initialBalance int64) (*store.CreditAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[userID]; ok {
		return copyAccount(a), nil
	}
	now := time.Now()
	a := &store.CreditAccount{
		ID:             store.NewID(),
		UserID:         userID,
		CurrentBalance: initialBalance,
		TotalEarned:    initialBalance,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.accounts[userID] = a
	if initialBalance > 0 {
		s.transactions = append(s.transactions, store.CreditTransaction{
			ID:            store.NewID(),
			UserID:        userID,
			Type:          store.TxnTypeCredit,
			Reason:        store.ReasonInitialGrant,
			Amount:        initialBalance,
			BalanceBefore: 0,
			BalanceAfter:  initialBalance,
			Description:   fmt.Sprintf("Welcome bonus: %d credits", initialBalance),
			CreatedAt:     now,
		})
	}
	return copyAccount(a), nil
}

func (s *Store) ApplyCreditDelta(ctx context.Context, d store.CreditDelta) (*store.CreditAccount, error) {
	if d.Amount <= 0 {
		return nil, errors.New("amount must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[d.UserID]
	if !ok {
		return nil, store.ErrNotFound
	}

	before := a.CurrentBalance
	var signedAmount int64
	switch d.Type {
	case store.TxnTypeDebit:
		if before < d.Amount {
			return nil, store.ErrInsufficientBalance
		}
		a.CurrentBalance = before - d.Amount
		a.TotalSpent += d.Amount
		signedAmount = -d.Amount
	case store.TxnTypeCredit, store.TxnTypeRefund:
		a.CurrentBalance = before + d.Amount
		a.TotalEarned += d.Amount
		signedAmount = d.Amount
	default:
		return nil, fmt.Errorf("unknown delta type %q", d.Type)
	}
	a.UpdatedAt = time.Now()

	s.transactions = append(s.transactions, store.CreditTransaction{
		ID:            store.NewID(),
		UserID:        d.UserID,
		Type:          d.Type,
		Reason:        d.Reason,
		Amount:        signedAmount,
		BalanceBefore: before,
		BalanceAfter:  a.CurrentBalance,
		ReferenceID:   d.ReferenceID,
		ReferenceType: d.ReferenceType,
		Description:   d.Description,
		CreatedAt:     a.UpdatedAt,
	})
	return copyAccount(a), nil
}

func (s *Store) ListCreditTransactions(ctx context.Context, userID string, limit int) ([]store.CreditTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []store.CreditTransaction{}
	for i := len(s.transactions) - 1; i >= 0 && len(out) < limit; i-- {
		if s.transactions[i].UserID == userID {
			out = append(out, s.transactions[i])
		}
	}
	return out, nil
}

func (s *Store) GetOrCreateMessageStats(ctx context.Context, userID string) (*store.MessageStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.messageStats[userID]
	if !ok {
		st = &store.MessageStats{UserID: userID, LastResetDate: time.Now()}
		s.messageStats[userID] = st
	}
	c := *st
	return &c, nil
}

func (s *Store) ResetMessageStats(ctx context.Context, userID string, resetDate time.Time, countFirst bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.messageStats[userID]
	if !ok {
		return nil
	}
	st.FreeMessagesUsed = 0
	if countFirst {
		st.FreeMessagesUsed = 1
	}
	st.LastResetDate = resetDate
	return nil
}

func (s *Store) IncrementFreeMessagesUsed(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.messageStats[userID]
	if !ok {
		return store.ErrNotFound
	}
	st.FreeMessagesUsed++
	return nil
}
