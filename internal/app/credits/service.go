// Package credits owns the credit ledger: account bootstrap with the
// welcome grant, debits and refunds with full transaction trails, and
// the per-day free message quota.
package credits

import (
	"context"
	"errors"
	"strings"
	"time"

	"amoria/internal/config"
	"amoria/internal/store"
)

// Store is the persistence surface the service consumes. Both the
// Postgres store and the in-memory store satisfy it.
type Store interface {
	CreditAccountByUser(ctx context.Context, userID string) (*store.CreditAccount, error)
	GetOrCreateCreditAccount(ctx context.Context, userID string, initialBalance int64) (*store.CreditAccount, error)
	ApplyCreditDelta(ctx context.Context, d store.CreditDelta) (*store.CreditAccount, error)
	ListCreditTransactions(ctx context.Context, userID string, limit int) ([]store.CreditTransaction, error)

	GetOrCreateMessageStats(ctx context.Context, userID string) (*store.MessageStats, error)
	ResetMessageStats(ctx context.Context, userID string, resetDate time.Time, countFirst bool) error
	IncrementFreeMessagesUsed(ctx context.Context, userID string) error
}

type Service struct {
	store Store
	cfg   config.MatchConfig

	// now is swappable in tests that cross day boundaries.
	now func() time.Time
}

func NewService(st Store, cfg config.MatchConfig) *Service {
	return &Service{store: st, cfg: cfg, now: time.Now}
}

// GetOrCreateAccount returns the user's credit account, granting the
// configured welcome balance on first touch.
func (s *Service) GetOrCreateAccount(ctx context.Context, userID string) (*store.CreditAccount, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidRequest
	}
	return s.store.GetOrCreateCreditAccount(ctx, userID, s.cfg.InitialFreeCredits)
}

func (s *Service) Balance(ctx context.Context, userID string) (*BalanceResponse, error) {
	account, err := s.GetOrCreateAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &BalanceResponse{
		UserID:         account.UserID,
		CurrentBalance: account.CurrentBalance,
		TotalEarned:    account.TotalEarned,
		TotalSpent:     account.TotalSpent,
	}, nil
}

// Consume debits amount from the user. The account is created first if
// needed so a brand-new user spends out of the welcome grant.
func (s *Service) Consume(ctx context.Context, userID string, amount int64, reason, referenceID, referenceType, description string) (*store.CreditAccount, error) {
	if amount <= 0 {
		return nil, ErrInvalidRequest
	}
	account, err := s.GetOrCreateAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	updated, err := s.store.ApplyCreditDelta(ctx, store.CreditDelta{
		UserID:        userID,
		Type:          store.TxnTypeDebit,
		Reason:        reason,
		Amount:        amount,
		ReferenceID:   referenceID,
		ReferenceType: referenceType,
		Description:   description,
	})
	if err != nil {
		if errors.Is(err, store.ErrInsufficientBalance) {
			return nil, &InsufficientCreditsError{Need: amount, Have: account.CurrentBalance}
		}
		return nil, err
	}
	return updated, nil
}

// Add credits the user, e.g. for a purchase.
func (s *Service) Add(ctx context.Context, userID string, amount int64, reason, referenceID, referenceType, description string) (*store.CreditAccount, error) {
	if amount <= 0 {
		return nil, ErrInvalidRequest
	}
	if _, err := s.GetOrCreateAccount(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ApplyCreditDelta(ctx, store.CreditDelta{
		UserID:        userID,
		Type:          store.TxnTypeCredit,
		Reason:        reason,
		Amount:        amount,
		ReferenceID:   referenceID,
		ReferenceType: referenceType,
		Description:   description,
	})
}

// Refund returns previously debited credits. It never creates an
// account: a refund without a prior debit is a bug.
func (s *Service) Refund(ctx context.Context, userID string, amount int64, reason, referenceID, referenceType, description string) (*store.CreditAccount, error) {
	if amount <= 0 {
		return nil, ErrInvalidRequest
	}
	updated, err := s.store.ApplyCreditDelta(ctx, store.CreditDelta{
		UserID:        userID,
		Type:          store.TxnTypeRefund,
		Reason:        reason,
		Amount:        amount,
		ReferenceID:   referenceID,
		ReferenceType: referenceType,
		Description:   description,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return updated, nil
}

// Adjust applies a signed admin correction. Positive credits, negative
// debits.
func (s *Service) Adjust(ctx context.Context, userID string, delta int64, description string) (*store.CreditAccount, error) {
	if delta == 0 {
		return nil, ErrInvalidRequest
	}
	txnType := store.TxnTypeCredit
	amount := delta
	if delta < 0 {
		txnType = store.TxnTypeDebit
		amount = -delta
	}
	account, err := s.GetOrCreateAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	updated, err := s.store.ApplyCreditDelta(ctx, store.CreditDelta{
		UserID:      userID,
		Type:        txnType,
		Reason:      store.ReasonAdminAdjustment,
		Amount:      amount,
		Description: description,
	})
	if err != nil {
		if errors.Is(err, store.ErrInsufficientBalance) {
			return nil, &InsufficientCreditsError{Need: amount, Have: account.CurrentBalance}
		}
		return nil, err
	}
	return updated, nil
}

func (s *Service) Transactions(ctx context.Context, userID string, limit int) ([]TransactionView, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidRequest
	}
	txns, err := s.store.ListCreditTransactions(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]TransactionView, 0, len(txns))
	for _, t := range txns {
		out = append(out, TransactionView{
			ID:            t.ID,
			Type:          t.Type,
			Reason:        t.Reason,
			Amount:        t.Amount,
			BalanceBefore: t.BalanceBefore,
			BalanceAfter:  t.BalanceAfter,
			ReferenceID:   t.ReferenceID,
			ReferenceType: t.ReferenceType,
			Description:   t.Description,
			CreatedAt:     t.CreatedAt,
		})
	}
	return out, nil
}
