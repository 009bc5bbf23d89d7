package matching

import (
	"context"
	"errors"
	"testing"
	"time"

	"amoria/internal/app/credits"
	"amoria/internal/config"
	"amoria/internal/memstore"
	"amoria/internal/store"
)

func testConfig() config.MatchConfig {
	return config.MatchConfig{
		InitialFreeMatches: 5,
		CostPerMatch:       5,
		InitialFreeCredits: 50,
		CostPerMessage:     1,
		FreeMessagesPerDay: 10,
	}
}

type fixture struct {
	store   *memstore.Store
	credits *credits.Service
	svc     *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memstore.New()
	cfg := testConfig()
	cr := credits.NewService(st, cfg)
	return &fixture{store: st, credits: cr, svc: NewService(st, st, cr, cfg)}
}

// seedRoster creates agents each with the given number of available
// sub-accounts, returning sub-account ids grouped by agent.
func (f *fixture) seedRoster(t *testing.T, agents, subsPerAgent int) [][]string {
	t.Helper()
	ctx := context.Background()
	out := make([][]string, 0, agents)
	for a := 0; a < agents; a++ {
		agentID, err := f.store.CreateAgent(ctx, "agent", 10-a)
		if err != nil {
			t.Fatalf("CreateAgent: %v", err)
		}
		ids := make([]string, 0, subsPerAgent)
		for i := 0; i < subsPerAgent; i++ {
			id, err := f.store.CreateSubAccount(ctx, store.SubAccount{
				AgentID:     agentID,
				Name:        "candidate",
				DisplayName: "Candidate",
			})
			if err != nil {
				t.Fatalf("CreateSubAccount: %v", err)
			}
			ids = append(ids, id)
		}
		out = append(out, ids)
	}
	return out
}

func (f *fixture) consumeAll(t *testing.T, userID string) {
	t.Helper()
	ctx := context.Background()
	for _, m := range f.svc.GetCurrentMatches(ctx, userID) {
		ok, err := f.svc.ConsumeMatch(ctx, userID, m.Candidate.SubAccountID)
		if err != nil || !ok {
			t.Fatalf("ConsumeMatch(%s): ok=%v err=%v", m.Candidate.SubAccountID, ok, err)
		}
	}
}

func TestInitialGrantOncePerUser(t *testing.T) {
	f := newFixture(t)
	f.seedRoster(t, 2, 5)
	ctx := context.Background()

	resp, err := f.svc.RequestNewMatches(ctx, "user-1", false)
	if err != nil {
		t.Fatalf("RequestNewMatches: %v", err)
	}
	if !resp.Granted || resp.GrantType != store.MatchTypeInitial {
		t.Fatalf("expected initial grant, got %+v", resp)
	}
	if len(resp.Matches) != 5 {
		t.Fatalf("granted %d matches, want 5", len(resp.Matches))
	}
	for _, m := range resp.Matches {
		if m.CreditsConsumed != 0 || m.ExpiresAt != nil {
			t.Fatalf("initial match should be free with no expiry: %+v", m)
		}
	}

	// Re-request with matches still available: idempotent, no grant.
	again, err := f.svc.RequestNewMatches(ctx, "user-1", false)
	if err != nil {
		t.Fatalf("re-request: %v", err)
	}
	if again.Granted {
		t.Fatal("re-request must not grant while matches are available")
	}
	if len(again.Matches) != 5 {
		t.Fatalf("re-request returned %d matches, want 5", len(again.Matches))
	}

	// After consuming everything the initial tier never fires again.
	f.consumeAll(t, "user-1")
	next, err := f.svc.RequestNewMatches(ctx, "user-1", false)
	if err != nil {
		t.Fatalf("post-consume request: %v", err)
	}
	if next.GrantType == store.MatchTypeInitial {
		t.Fatal("initial tier granted twice")
	}
}

func TestRequestBootstrapsCreditAccount(t *testing.T) {
	f := newFixture(t)
	f.seedRoster(t, 1, 3)
	ctx := context.Background()

	if _, err := f.store.CreditAccountByUser(ctx, "user-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected no account before first request, got %v", err)
	}

	if _, err := f.svc.RequestNewMatches(ctx, "user-1", false); err != nil {
		t.Fatalf("RequestNewMatches: %v", err)
	}

	// The match request is often a user's first touch; it opens the
	// credit account and applies the welcome grant.
	acct, err := f.store.CreditAccountByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("CreditAccountByUser: %v", err)
	}
	if acct.CurrentBalance != 50 {
		t.Fatalf("balance = %d, want 50", acct.CurrentBalance)
	}
	txns, _ := f.credits.Transactions(ctx, "user-1", 10)
	if len(txns) != 1 || txns[0].Reason != store.ReasonInitialGrant {
		t.Fatalf("expected a single initial_grant txn, got %+v", txns)
	}
}

func TestDailyFreeOncePerUTCDay(t *testing.T) {
	f := newFixture(t)
	f.seedRoster(t, 2, 5)
	ctx := context.Background()

	// Anchor to the real current UTC day: the store stamps records with
	// wall-clock time and the daily window check compares against it.
	y, m, d := time.Now().UTC().Date()
	day1 := time.Date(y, m, d, 23, 59, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return day1 }

	if _, err := f.svc.RequestNewMatches(ctx, "user-1", false); err != nil {
		t.Fatalf("initial grant: %v", err)
	}
	f.consumeAll(t, "user-1")

	daily, err := f.svc.RequestNewMatches(ctx, "user-1", false)
	if err != nil {
		t.Fatalf("daily grant: %v", err)
	}
	if daily.GrantType != store.MatchTypeDailyFree || len(daily.Matches) != 1 {
		t.Fatalf("expected one daily_free match, got %+v", daily)
	}
	wantExpiry := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	if daily.Matches[0].ExpiresAt == nil || !daily.Matches[0].ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("daily expiry = %v, want %v", daily.Matches[0].ExpiresAt, wantExpiry)
	}

	// Same UTC day, entitlement spent: no further free grant.
	f.consumeAll(t, "user-1")
	if _, err := f.svc.RequestNewMatches(ctx, "user-1", false); !errors.Is(err, ErrNoFreeMatches) {
		t.Fatalf("expected ErrNoFreeMatches, got %v", err)
	}

	// Two minutes later it is a new UTC date.
	f.svc.now = func() time.Time { return day1.Add(2 * time.Minute) }
	daily2, err := f.svc.RequestNewMatches(ctx, "user-1", false)
	if err != nil {
		t.Fatalf("next-day daily grant: %v", err)
	}
	if daily2.GrantType != store.MatchTypeDailyFree {
		t.Fatalf("expected daily_free on new date, got %+v", daily2)
	}
}

func TestPaidGrantDebitsCredits(t *testing.T) {
	f := newFixture(t)
	f.seedRoster(t, 1, 3)
	ctx := context.Background()

	if _, err := f.svc.RequestNewMatches(ctx, "user-1", false); err != nil {
		t.Fatalf("initial grant: %v", err)
	}
	f.consumeAll(t, "user-1")
	f.consumeDailyTier(t, "user-1")

	resp, err := f.svc.RequestNewMatches(ctx, "user-1", true)
	if err != nil {
		t.Fatalf("paid grant: %v", err)
	}
	if resp.GrantType != store.MatchTypePaid || len(resp.Matches) != 1 {
		t.Fatalf("expected one paid match, got %+v", resp)
	}
	if resp.Matches[0].CreditsConsumed != 5 {
		t.Fatalf("credits_consumed = %d, want 5", resp.Matches[0].CreditsConsumed)
	}

	balance, err := f.credits.Balance(ctx, "user-1")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance.CurrentBalance != 45 {
		t.Fatalf("balance = %d, want 45", balance.CurrentBalance)
	}

	txns, _ := f.credits.Transactions(ctx, "user-1", 10)
	if txns[0].Reason != store.ReasonMatchConsumption || txns[0].Amount != -5 {
		t.Fatalf("expected match_consumption debit, got %+v", txns[0])
	}
	if txns[0].ReferenceID != resp.Matches[0].MatchID {
		t.Fatalf("debit reference %q does not point at granted match %q", txns[0].ReferenceID, resp.Matches[0].MatchID)
	}
}

// consumeDailyTier burns the user's daily free entitlement for today.
func (f *fixture) consumeDailyTier(t *testing.T, userID string) {
	t.Helper()
	ctx := context.Background()
	resp, err := f.svc.RequestNewMatches(ctx, userID, false)
	if err != nil {
		t.Fatalf("daily grant: %v", err)
	}
	if resp.GrantType != store.MatchTypeDailyFree {
		t.Fatalf("expected daily tier, got %+v", resp)
	}
	f.consumeAll(t, userID)
}

func TestPaidGrantInsufficientCredits(t *testing.T) {
	st := memstore.New()
	cfg := testConfig()
	cfg.InitialFreeCredits = 3
	cr := credits.NewService(st, cfg)
	f := &fixture{store: st, credits: cr, svc: NewService(st, st, cr, cfg)}
	f.seedRoster(t, 1, 3)
	ctx := context.Background()

	if _, err := f.svc.RequestNewMatches(ctx, "user-1", false); err != nil {
		t.Fatalf("initial grant: %v", err)
	}
	f.consumeAll(t, "user-1")
	f.consumeDailyTier(t, "user-1")

	_, err := f.svc.RequestNewMatches(ctx, "user-1", true)
	if !errors.Is(err, credits.ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}

	// Failed paid grant leaves the ledger untouched.
	balance, _ := cr.Balance(ctx, "user-1")
	if balance.CurrentBalance != 3 {
		t.Fatalf("balance = %d, want 3", balance.CurrentBalance)
	}
}

func TestPaidGrantRefundsWhenNoCandidates(t *testing.T) {
	f := newFixture(t)
	roster := f.seedRoster(t, 1, 1)
	ctx := context.Background()

	if _, err := f.svc.RequestNewMatches(ctx, "user-1", false); err != nil {
		t.Fatalf("initial grant: %v", err)
	}
	f.consumeAll(t, "user-1")
	f.consumeDailyTier(t, "user-1")

	// Candidate disappears from the roster before the paid attempt.
	if err := f.store.UpdateSubAccountStatus(ctx, roster[0][0], store.SubAccountStatusSuspended); err != nil {
		t.Fatalf("suspend candidate: %v", err)
	}

	_, err := f.svc.RequestNewMatches(ctx, "user-1", true)
	if !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("expected ErrNoCandidates, got %v", err)
	}

	// The debit was compensated.
	balance, _ := f.credits.Balance(ctx, "user-1")
	if balance.CurrentBalance != 50 {
		t.Fatalf("balance = %d, want 50 after refund", balance.CurrentBalance)
	}
	txns, _ := f.credits.Transactions(ctx, "user-1", 10)
	if txns[0].Reason != store.ReasonRefundFailedGrant || txns[0].Type != store.TxnTypeRefund {
		t.Fatalf("expected refund_failed_grant txn, got %+v", txns[0])
	}
}

func TestConsumeMatchIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seedRoster(t, 1, 3)
	ctx := context.Background()

	resp, err := f.svc.RequestNewMatches(ctx, "user-1", false)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	target := resp.Matches[0].Candidate.SubAccountID

	ok, err := f.svc.ConsumeMatch(ctx, "user-1", target)
	if err != nil || !ok {
		t.Fatalf("first consume: ok=%v err=%v", ok, err)
	}
	ok, err = f.svc.ConsumeMatch(ctx, "user-1", target)
	if err != nil {
		t.Fatalf("second consume: %v", err)
	}
	if ok {
		t.Fatal("second consume must report nothing to consume")
	}
}

func TestConsumeMatchUnknownCandidate(t *testing.T) {
	f := newFixture(t)
	ok, err := f.svc.ConsumeMatch(context.Background(), "user-1", "nope")
	if err != nil {
		t.Fatalf("ConsumeMatch: %v", err)
	}
	if ok {
		t.Fatal("consume of unknown candidate must be a no-op")
	}
}

func TestLazyExpiryOnLostCandidate(t *testing.T) {
	f := newFixture(t)
	f.seedRoster(t, 1, 3)
	ctx := context.Background()

	resp, err := f.svc.RequestNewMatches(ctx, "user-1", false)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	lost := resp.Matches[0].Candidate.SubAccountID
	if err := f.store.UpdateSubAccountStatus(ctx, lost, store.SubAccountStatusSuspended); err != nil {
		t.Fatalf("suspend: %v", err)
	}

	current := f.svc.GetCurrentMatches(ctx, "user-1")
	for _, m := range current {
		if m.Candidate.SubAccountID == lost {
			t.Fatal("suspended candidate still surfaced")
		}
	}

	// The record transitioned to expired, not just been hidden.
	breakdown := f.svc.MatchBreakdown(ctx, "user-1")
	tier := breakdown.ByType[store.MatchTypeInitial]
	if tier.Available != len(current) {
		t.Fatalf("available = %d, want %d", tier.Available, len(current))
	}
}

func TestBusyCandidateNotExpired(t *testing.T) {
	f := newFixture(t)
	f.seedRoster(t, 1, 3)
	ctx := context.Background()

	resp, err := f.svc.RequestNewMatches(ctx, "user-1", false)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	busy := resp.Matches[0].Candidate.SubAccountID
	if err := f.store.UpdateSubAccountStatus(ctx, busy, store.SubAccountStatusBusy); err != nil {
		t.Fatalf("busy: %v", err)
	}

	current := f.svc.GetCurrentMatches(ctx, "user-1")
	found := false
	for _, m := range current {
		if m.Candidate.SubAccountID == busy {
			found = true
		}
	}
	if !found {
		t.Fatal("busy candidate must stay matched; busy is transient")
	}
}

func TestMatchSummaryCounts(t *testing.T) {
	f := newFixture(t)
	f.seedRoster(t, 2, 5)
	ctx := context.Background()

	resp, err := f.svc.RequestNewMatches(ctx, "user-1", false)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if _, err := f.svc.ConsumeMatch(ctx, "user-1", resp.Matches[0].Candidate.SubAccountID); err != nil {
		t.Fatalf("consume: %v", err)
	}

	summary := f.svc.MatchSummary(ctx, "user-1")
	if summary.TotalGranted != 5 || summary.Available != 4 || summary.TotalConsumed != 1 {
		t.Fatalf("summary = %+v, want granted=5 available=4 consumed=1", summary)
	}
}

func TestExpireOldMatchesSweep(t *testing.T) {
	f := newFixture(t)
	f.seedRoster(t, 1, 3)
	ctx := context.Background()

	day1 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return day1 }

	if _, err := f.svc.RequestNewMatches(ctx, "user-1", false); err != nil {
		t.Fatalf("initial grant: %v", err)
	}
	f.consumeAll(t, "user-1")
	if _, err := f.svc.RequestNewMatches(ctx, "user-1", false); err != nil {
		t.Fatalf("daily grant: %v", err)
	}

	// Sweep before expiry: nothing due.
	n, err := f.svc.ExpireOldMatches(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 0 {
		t.Fatalf("expired %d, want 0", n)
	}

	f.svc.now = func() time.Time { return day1.Add(24 * time.Hour) }
	n, err = f.svc.ExpireOldMatches(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired %d, want 1", n)
	}

	health, err := f.svc.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Expired != 1 {
		t.Fatalf("health expired = %d, want 1", health.Expired)
	}
}
