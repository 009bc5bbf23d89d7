package credits

import (
	"context"
	"errors"
	"time"

	"amoria/internal/store"
)

func sameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// MessageStatus reports the user's free quota position and whether a
// send would go through right now.
func (s *Service) MessageStatus(ctx context.Context, userID string) (*MessageStatus, error) {
	account, err := s.GetOrCreateAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats, err := s.store.GetOrCreateMessageStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	used := stats.FreeMessagesUsed
	if !sameUTCDay(stats.LastResetDate, s.now()) {
		used = 0
	}
	remaining := s.cfg.FreeMessagesPerDay - used
	if remaining < 0 {
		remaining = 0
	}
	return &MessageStatus{
		FreeMessagesUsed:  used,
		FreeMessagesLimit: s.cfg.FreeMessagesPerDay,
		FreeRemaining:     remaining,
		CostPerMessage:    s.cfg.CostPerMessage,
		Balance:           account.CurrentBalance,
		CanSend:           remaining > 0 || account.CurrentBalance >= s.cfg.CostPerMessage,
	}, nil
}

// ChargeMessage pays for one outbound message: free quota first, then
// credits. The quota resets lazily on the first send of each UTC day.
func (s *Service) ChargeMessage(ctx context.Context, userID string) (*Charge, error) {
	account, err := s.GetOrCreateAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats, err := s.store.GetOrCreateMessageStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !sameUTCDay(stats.LastResetDate, now) {
		if s.cfg.FreeMessagesPerDay > 0 {
			if err := s.store.ResetMessageStats(ctx, userID, now, true); err != nil {
				return nil, err
			}
			return &Charge{
				UsedFreeQuota: true,
				FreeRemaining: s.cfg.FreeMessagesPerDay - 1,
				Balance:       account.CurrentBalance,
			}, nil
		}
		if err := s.store.ResetMessageStats(ctx, userID, now, false); err != nil {
			return nil, err
		}
		stats.FreeMessagesUsed = 0
	}

	if stats.FreeMessagesUsed < s.cfg.FreeMessagesPerDay {
		if err := s.store.IncrementFreeMessagesUsed(ctx, userID); err != nil {
			return nil, err
		}
		return &Charge{
			UsedFreeQuota: true,
			FreeRemaining: s.cfg.FreeMessagesPerDay - stats.FreeMessagesUsed - 1,
			Balance:       account.CurrentBalance,
		}, nil
	}

	updated, err := s.store.ApplyCreditDelta(ctx, store.CreditDelta{
		UserID:      userID,
		Type:        store.TxnTypeDebit,
		Reason:      store.ReasonMessageConsumption,
		Amount:      s.cfg.CostPerMessage,
		Description: "Message over daily free quota",
	})
	if err != nil {
		if errors.Is(err, store.ErrInsufficientBalance) {
			return nil, &InsufficientCreditsError{Need: s.cfg.CostPerMessage, Have: account.CurrentBalance}
		}
		return nil, err
	}
	return &Charge{
		CreditsCharged: s.cfg.CostPerMessage,
		Balance:        updated.CurrentBalance,
	}, nil
}
