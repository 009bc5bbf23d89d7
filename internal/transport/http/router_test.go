package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"amoria/internal/app/chatroom"
	"amoria/internal/app/credits"
	"amoria/internal/app/matching"
	"amoria/internal/config"
	"amoria/internal/memstore"
	"amoria/internal/store"
)

type noopNotifier struct{}

func (noopNotifier) Publish(channel, event string, payload any) {}

type routerFixture struct {
	router  http.Handler
	store   *memstore.Store
	cfg     config.MatchConfig
	matches *matching.Service
}

func newRouterFixture(t *testing.T, cfg config.MatchConfig) *routerFixture {
	t.Helper()
	st := memstore.New()
	cr := credits.NewService(st, cfg)
	ms := matching.NewService(st, st, cr, cfg)
	cs := chatroom.NewService(st, st, st, noopNotifier{})

	router := NewRouter(Services{
		Credits:   cr,
		Matching:  ms,
		Chatrooms: cs,
	}, st, st, config.ServerConfig{AdminAPIKey: "sesame"})

	return &routerFixture{router: router, store: st, cfg: cfg, matches: ms}
}

func defaultMatchConfig() config.MatchConfig {
	return config.MatchConfig{
		InitialFreeMatches: 5,
		CostPerMatch:       5,
		InitialFreeCredits: 50,
		CostPerMessage:     1,
		FreeMessagesPerDay: 10,
	}
}

func (f *routerFixture) seedRoster(t *testing.T, agents, subsPerAgent int) []string {
	t.Helper()
	ctx := context.Background()
	var subIDs []string
	for a := 0; a < agents; a++ {
		agentID, err := f.store.CreateAgent(ctx, "agent", 10-a)
		if err != nil {
			t.Fatalf("CreateAgent: %v", err)
		}
		for i := 0; i < subsPerAgent; i++ {
			id, err := f.store.CreateSubAccount(ctx, store.SubAccount{
				AgentID:     agentID,
				Name:        "candidate",
				DisplayName: "Candidate",
			})
			if err != nil {
				t.Fatalf("CreateSubAccount: %v", err)
			}
			subIDs = append(subIDs, id)
		}
	}
	return subIDs
}

func (f *routerFixture) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestHealthEndpoint(t *testing.T) {
	f := newRouterFixture(t, defaultMatchConfig())
	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /healthz = %d, want 200", rec.Code)
	}
}

func TestMatchRequestGrantsInitialBatch(t *testing.T) {
	f := newRouterFixture(t, defaultMatchConfig())
	f.seedRoster(t, 2, 3)

	rec := f.do(t, http.MethodPost, "/api/matches/request", "user-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("request matches = %d, body %s", rec.Code, rec.Body)
	}
	resp := decodeBody[matching.MatchesResponse](t, rec)
	if !resp.Granted || resp.GrantType != "initial" {
		t.Fatalf("granted=%v grant_type=%q, want initial grant", resp.Granted, resp.GrantType)
	}
	if len(resp.Matches) != 5 {
		t.Fatalf("got %d matches, want 5", len(resp.Matches))
	}

	// Re-requesting while matches are live returns them without a new grant.
	rec = f.do(t, http.MethodPost, "/api/matches/request", "user-1", nil)
	resp = decodeBody[matching.MatchesResponse](t, rec)
	if resp.Granted {
		t.Fatal("second request granted a new batch while matches were live")
	}
	if len(resp.Matches) != 5 {
		t.Fatalf("second request returned %d matches, want 5", len(resp.Matches))
	}
}

func TestMatchRequestRequiresUserHeader(t *testing.T) {
	f := newRouterFixture(t, defaultMatchConfig())
	rec := f.do(t, http.MethodPost, "/api/matches/request", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing user header = %d, want 400", rec.Code)
	}
}

func TestMatchRequestExhaustedFreeTiers(t *testing.T) {
	f := newRouterFixture(t, defaultMatchConfig())
	f.seedRoster(t, 2, 3)

	// Burn the initial grant, then the daily free grant.
	for i := 0; i < 2; i++ {
		rec := f.do(t, http.MethodPost, "/api/matches/request", "user-1", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d = %d, body %s", i, rec.Code, rec.Body)
		}
		resp := decodeBody[matching.MatchesResponse](t, rec)
		for _, m := range resp.Matches {
			body := map[string]string{"sub_account_id": m.Candidate.SubAccountID}
			cr := f.do(t, http.MethodPost, "/api/matches/consume", "user-1", body)
			if cr.Code != http.StatusOK {
				t.Fatalf("consume = %d, body %s", cr.Code, cr.Body)
			}
		}
	}

	rec := f.do(t, http.MethodPost, "/api/matches/request", "user-1", map[string]bool{"allow_paid": false})
	if rec.Code != http.StatusConflict {
		t.Fatalf("exhausted tiers = %d, want 409", rec.Code)
	}
}

func TestMatchRequestPaidInsufficientCredits(t *testing.T) {
	cfg := defaultMatchConfig()
	cfg.InitialFreeCredits = 2
	f := newRouterFixture(t, cfg)
	f.seedRoster(t, 2, 3)

	for i := 0; i < 2; i++ {
		rec := f.do(t, http.MethodPost, "/api/matches/request", "user-1", nil)
		resp := decodeBody[matching.MatchesResponse](t, rec)
		for _, m := range resp.Matches {
			f.do(t, http.MethodPost, "/api/matches/consume", "user-1", map[string]string{"sub_account_id": m.Candidate.SubAccountID})
		}
	}

	rec := f.do(t, http.MethodPost, "/api/matches/request", "user-1", map[string]bool{"allow_paid": true})
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("paid grant without credits = %d, want 402", rec.Code)
	}
}

func TestChatroomCreateRequiresMatch(t *testing.T) {
	f := newRouterFixture(t, defaultMatchConfig())
	subIDs := f.seedRoster(t, 1, 2)

	rec := f.do(t, http.MethodPost, "/api/chatrooms", "user-1", map[string]string{"sub_account_id": subIDs[0]})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("chat without match = %d, want 403", rec.Code)
	}
}

func TestChatroomCreateAndReplay(t *testing.T) {
	f := newRouterFixture(t, defaultMatchConfig())
	f.seedRoster(t, 1, 2)

	rec := f.do(t, http.MethodPost, "/api/matches/request", "user-1", nil)
	resp := decodeBody[matching.MatchesResponse](t, rec)
	if len(resp.Matches) == 0 {
		t.Fatal("no matches granted")
	}
	subID := resp.Matches[0].Candidate.SubAccountID

	rec = f.do(t, http.MethodPost, "/api/chatrooms", "user-1", map[string]string{"sub_account_id": subID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("fresh chat = %d, body %s", rec.Code, rec.Body)
	}
	created := decodeBody[chatroom.ChatResponse](t, rec)
	if created.Existed {
		t.Fatal("fresh chat flagged as existing")
	}

	rec = f.do(t, http.MethodPost, "/api/chatrooms", "user-1", map[string]string{"sub_account_id": subID})
	if rec.Code != http.StatusOK {
		t.Fatalf("replayed chat = %d, want 200", rec.Code)
	}
	replayed := decodeBody[chatroom.ChatResponse](t, rec)
	if !replayed.Existed {
		t.Fatal("replayed chat not flagged as existing")
	}
	if replayed.Chatroom.ChatroomID != created.Chatroom.ChatroomID {
		t.Fatalf("replay returned chatroom %s, want %s", replayed.Chatroom.ChatroomID, created.Chatroom.ChatroomID)
	}
}

func TestMessageChargeUsesFreeQuota(t *testing.T) {
	f := newRouterFixture(t, defaultMatchConfig())

	rec := f.do(t, http.MethodPost, "/api/messages/charge", "user-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("charge = %d, body %s", rec.Code, rec.Body)
	}
	charge := decodeBody[credits.Charge](t, rec)
	if !charge.UsedFreeQuota || charge.CreditsCharged != 0 {
		t.Fatalf("charge = %+v, want free quota message", charge)
	}
}

func TestAdminRoutesRequireKey(t *testing.T) {
	f := newRouterFixture(t, defaultMatchConfig())

	rec := f.do(t, http.MethodGet, "/api/admin/agents", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("admin without key = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/agents", nil)
	req.Header.Set("X-Admin-Key", "sesame")
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("admin with key = %d, want 200", rr.Code)
	}
}

func TestAdminExpireMatches(t *testing.T) {
	f := newRouterFixture(t, defaultMatchConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/matches/expire", nil)
	req.Header.Set("Authorization", "Bearer sesame")
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expire = %d, body %s", rr.Code, rr.Body)
	}
	out := decodeBody[map[string]int](t, rr)
	if out["expired"] != 0 {
		t.Fatalf("expired = %d, want 0", out["expired"])
	}
}
