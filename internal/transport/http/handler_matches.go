package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"amoria/internal/app/credits"
	"amoria/internal/app/matching"
)

type MatchHandlers struct {
	matchSvc *matching.Service
}

func NewMatchHandlers(matchSvc *matching.Service) *MatchHandlers {
	return &MatchHandlers{matchSvc: matchSvc}
}

func (h *MatchHandlers) Request() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := UserIDFromRequest(r)
		if userID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "missing_user")
			return
		}
		var body struct {
			AllowPaid bool `json:"allow_paid"`
		}
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
				return
			}
		}

		metricMatchRequestTotal.Add(1)
		resp, err := h.matchSvc.RequestNewMatches(r.Context(), userID, body.AllowPaid)
		if err != nil {
			metricMatchRequestErrors.Add(1)
			switch {
			case errors.Is(err, matching.ErrInvalidRequest):
				WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			case errors.Is(err, matching.ErrNoFreeMatches):
				WriteHTTPError(w, http.StatusConflict, "no_free_matches")
			case errors.Is(err, matching.ErrNoCandidates):
				WriteHTTPError(w, http.StatusNotFound, "no_candidates_available")
			case errors.Is(err, credits.ErrInsufficientCredits):
				WriteHTTPError(w, http.StatusPaymentRequired, "insufficient_credits")
			default:
				WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			}
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *MatchHandlers) Current() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := UserIDFromRequest(r)
		if userID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "missing_user")
			return
		}
		matches := h.matchSvc.GetCurrentMatches(r.Context(), userID)
		_ = json.NewEncoder(w).Encode(map[string]any{"matches": matches})
	}
}

func (h *MatchHandlers) Consume() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := UserIDFromRequest(r)
		var body struct {
			SubAccountID string `json:"sub_account_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if userID == "" || body.SubAccountID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		consumed, err := h.matchSvc.ConsumeMatch(r.Context(), userID, body.SubAccountID)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		metricMatchConsumeTotal.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"consumed": consumed})
	}
}

func (h *MatchHandlers) Breakdown() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := UserIDFromRequest(r)
		if userID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "missing_user")
			return
		}
		_ = json.NewEncoder(w).Encode(h.matchSvc.MatchBreakdown(r.Context(), userID))
	}
}

func (h *MatchHandlers) Summary() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := UserIDFromRequest(r)
		if userID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "missing_user")
			return
		}
		_ = json.NewEncoder(w).Encode(h.matchSvc.MatchSummary(r.Context(), userID))
	}
}

func (h *MatchHandlers) History() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := UserIDFromRequest(r)
		if userID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "missing_user")
			return
		}
		limit := ParseLimit(r)
		matches := h.matchSvc.MatchHistoryViews(r.Context(), userID, limit)
		_ = json.NewEncoder(w).Encode(map[string]any{"matches": matches, "limit": limit})
	}
}
