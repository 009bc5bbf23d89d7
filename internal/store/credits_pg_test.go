package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"amoria/internal/store"
	"amoria/internal/testutil"
)

func TestGetOrCreateCreditAccountIdempotent(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()
	ctx := context.Background()

	acct, err := st.GetOrCreateCreditAccount(ctx, "user-1", 50)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if acct.CurrentBalance != 50 || acct.TotalEarned != 50 {
		t.Fatalf("account = %+v, want balance 50 earned 50", acct)
	}

	again, err := st.GetOrCreateCreditAccount(ctx, "user-1", 50)
	if err != nil {
		t.Fatalf("reread account: %v", err)
	}
	if again.ID != acct.ID || again.CurrentBalance != 50 {
		t.Fatalf("second call = %+v, want same account", again)
	}

	txns, err := st.ListCreditTransactions(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(txns) != 1 || txns[0].Reason != store.ReasonInitialGrant {
		t.Fatalf("transactions = %+v, want single initial grant", txns)
	}
}

func TestApplyCreditDeltaDebitAndRefund(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := st.GetOrCreateCreditAccount(ctx, "user-1", 50); err != nil {
		t.Fatalf("create account: %v", err)
	}

	acct, err := st.ApplyCreditDelta(ctx, store.CreditDelta{
		UserID:      "user-1",
		Type:        store.TxnTypeDebit,
		Reason:      store.ReasonMatchConsumption,
		Amount:      5,
		ReferenceID: "match-1",
	})
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if acct.CurrentBalance != 45 || acct.TotalSpent != 5 {
		t.Fatalf("after debit = %+v, want balance 45 spent 5", acct)
	}

	acct, err = st.ApplyCreditDelta(ctx, store.CreditDelta{
		UserID: "user-1",
		Type:   store.TxnTypeRefund,
		Reason: store.ReasonRefundFailedGrant,
		Amount: 5,
	})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if acct.CurrentBalance != 50 {
		t.Fatalf("after refund balance = %d, want 50", acct.CurrentBalance)
	}

	txns, err := st.ListCreditTransactions(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(txns) != 3 {
		t.Fatalf("got %d transactions, want 3", len(txns))
	}
	// Newest first.
	if txns[0].Type != store.TxnTypeRefund || txns[1].ReferenceID != "match-1" {
		t.Fatalf("transaction order = %+v", txns)
	}
}

func TestApplyCreditDeltaInsufficientBalance(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := st.GetOrCreateCreditAccount(ctx, "user-1", 3); err != nil {
		t.Fatalf("create account: %v", err)
	}

	_, err := st.ApplyCreditDelta(ctx, store.CreditDelta{
		UserID: "user-1",
		Type:   store.TxnTypeDebit,
		Reason: store.ReasonMatchConsumption,
		Amount: 5,
	})
	if !errors.Is(err, store.ErrInsufficientBalance) {
		t.Fatalf("debit err = %v, want ErrInsufficientBalance", err)
	}

	acct, err := st.CreditAccountByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("read account: %v", err)
	}
	if acct.CurrentBalance != 3 {
		t.Fatalf("balance = %d, want untouched 3", acct.CurrentBalance)
	}
}

func TestApplyCreditDeltaConcurrentDebits(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := st.GetOrCreateCreditAccount(ctx, "user-1", 5); err != nil {
		t.Fatalf("create account: %v", err)
	}

	const workers = 10
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.ApplyCreditDelta(ctx, store.CreditDelta{
				UserID: "user-1",
				Type:   store.TxnTypeDebit,
				Reason: store.ReasonMessageConsumption,
				Amount: 1,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, rejected int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, store.ErrInsufficientBalance):
			rejected++
		default:
			t.Fatalf("unexpected debit error: %v", err)
		}
	}
	if ok != 5 || rejected != 5 {
		t.Fatalf("ok=%d rejected=%d, want 5/5", ok, rejected)
	}

	acct, err := st.CreditAccountByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("read account: %v", err)
	}
	if acct.CurrentBalance != 0 {
		t.Fatalf("final balance = %d, want 0", acct.CurrentBalance)
	}
}

func TestMessageStatsResetAndIncrement(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()
	ctx := context.Background()

	stats, err := st.GetOrCreateMessageStats(ctx, "user-1")
	if err != nil {
		t.Fatalf("create stats: %v", err)
	}
	if stats.FreeMessagesUsed != 0 {
		t.Fatalf("fresh stats used = %d, want 0", stats.FreeMessagesUsed)
	}

	if err := st.IncrementFreeMessagesUsed(ctx, "user-1"); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := st.IncrementFreeMessagesUsed(ctx, "user-1"); err != nil {
		t.Fatalf("increment: %v", err)
	}
	stats, err = st.GetOrCreateMessageStats(ctx, "user-1")
	if err != nil {
		t.Fatalf("reread stats: %v", err)
	}
	if stats.FreeMessagesUsed != 2 {
		t.Fatalf("used = %d, want 2", stats.FreeMessagesUsed)
	}

	nextDay := time.Now().UTC().AddDate(0, 0, 1)
	if err := st.ResetMessageStats(ctx, "user-1", nextDay, true); err != nil {
		t.Fatalf("reset: %v", err)
	}
	stats, err = st.GetOrCreateMessageStats(ctx, "user-1")
	if err != nil {
		t.Fatalf("reread stats: %v", err)
	}
	if stats.FreeMessagesUsed != 1 {
		t.Fatalf("used after counted reset = %d, want 1", stats.FreeMessagesUsed)
	}
	if stats.LastResetDate.UTC().Format("2006-01-02") != nextDay.Format("2006-01-02") {
		t.Fatalf("reset date = %v, want %v", stats.LastResetDate, nextDay)
	}
}
