package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"amoria/internal/app/credits"
	"amoria/internal/app/matching"
	"amoria/internal/store"
)

// AdminStore is the roster management surface behind the admin key.
type AdminStore interface {
	CreateAgent(ctx context.Context, name string, priority int) (string, error)
	ActiveAgents(ctx context.Context) ([]store.Agent, error)
	CreateSubAccount(ctx context.Context, sub store.SubAccount) (string, error)
	UpdateSubAccountStatus(ctx context.Context, subAccountID, status string) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type AdminHandlers struct {
	store     AdminStore
	db        Pinger
	creditSvc *credits.Service
	matchSvc  *matching.Service
}

func NewAdminHandlers(st AdminStore, db Pinger, creditSvc *credits.Service, matchSvc *matching.Service) *AdminHandlers {
	return &AdminHandlers{store: st, db: db, creditSvc: creditSvc, matchSvc: matchSvc}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "db": "down"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "db": "up"})
	}
}

func (h *AdminHandlers) CreateAgent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name     string `json:"name"`
			Priority int    `json:"priority"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if body.Name == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		id, err := h.store.CreateAgent(r.Context(), body.Name, body.Priority)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"agent_id": id})
	}
}

func (h *AdminHandlers) ListAgents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := h.store.ActiveAgents(r.Context())
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
	}
}

func (h *AdminHandlers) CreateSubAccount() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			AgentID            string `json:"agent_id"`
			Name               string `json:"name"`
			DisplayName        string `json:"display_name"`
			AvatarURL          string `json:"avatar_url"`
			Bio                string `json:"bio"`
			Age                int    `json:"age"`
			Location           string `json:"location"`
			MaxConcurrentChats int    `json:"max_concurrent_chats"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if body.AgentID == "" || body.Name == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		id, err := h.store.CreateSubAccount(r.Context(), store.SubAccount{
			AgentID:            body.AgentID,
			Name:               body.Name,
			DisplayName:        body.DisplayName,
			AvatarURL:          body.AvatarURL,
			Bio:                body.Bio,
			Age:                body.Age,
			Location:           body.Location,
			MaxConcurrentChats: body.MaxConcurrentChats,
		})
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"sub_account_id": id})
	}
}

func (h *AdminHandlers) SetSubAccountStatus() http.HandlerFunc {
	valid := map[string]bool{
		store.SubAccountStatusAvailable: true,
		store.SubAccountStatusBusy:      true,
		store.SubAccountStatusOffline:   true,
		store.SubAccountStatusSuspended: true,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			SubAccountID string `json:"sub_account_id"`
			Status       string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if body.SubAccountID == "" || !valid[body.Status] {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		if err := h.store.UpdateSubAccountStatus(r.Context(), body.SubAccountID, body.Status); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				WriteHTTPError(w, http.StatusNotFound, "sub_account_not_found")
				return
			}
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

func (h *AdminHandlers) AdjustCredits() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			UserID      string `json:"user_id"`
			Delta       int64  `json:"delta"`
			Description string `json:"description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if body.UserID == "" || body.Delta == 0 {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		account, err := h.creditSvc.Adjust(r.Context(), body.UserID, body.Delta, body.Description)
		if err != nil {
			if errors.Is(err, credits.ErrInsufficientCredits) {
				WriteHTTPError(w, http.StatusPaymentRequired, "insufficient_credits")
				return
			}
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user_id":         account.UserID,
			"current_balance": account.CurrentBalance,
		})
	}
}

func (h *AdminHandlers) AddCredits() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			UserID      string `json:"user_id"`
			Amount      int64  `json:"amount"`
			ReferenceID string `json:"reference_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if body.UserID == "" || body.Amount <= 0 {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		account, err := h.creditSvc.Add(r.Context(), body.UserID, body.Amount,
			store.ReasonPurchase, body.ReferenceID, "purchase", "Credit purchase")
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user_id":         account.UserID,
			"current_balance": account.CurrentBalance,
		})
	}
}

func (h *AdminHandlers) ExpireMatches() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := h.matchSvc.ExpireOldMatches(r.Context())
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"expired": n})
	}
}

func (h *AdminHandlers) MatchHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health, err := h.matchSvc.Health(r.Context())
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(health)
	}
}
