package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"amoria/internal/app/credits"
)

type CreditHandlers struct {
	creditSvc *credits.Service
}

func NewCreditHandlers(creditSvc *credits.Service) *CreditHandlers {
	return &CreditHandlers{creditSvc: creditSvc}
}

func (h *CreditHandlers) Balance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := UserIDFromRequest(r)
		if userID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "missing_user")
			return
		}
		resp, err := h.creditSvc.Balance(r.Context(), userID)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *CreditHandlers) Transactions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := UserIDFromRequest(r)
		if userID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "missing_user")
			return
		}
		limit := ParseLimit(r)
		items, err := h.creditSvc.Transactions(r.Context(), userID, limit)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items, "limit": limit})
	}
}

func (h *CreditHandlers) MessageStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := UserIDFromRequest(r)
		if userID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "missing_user")
			return
		}
		resp, err := h.creditSvc.MessageStatus(r.Context(), userID)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *CreditHandlers) ChargeMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := UserIDFromRequest(r)
		if userID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "missing_user")
			return
		}
		metricMessageChargeTotal.Add(1)
		charge, err := h.creditSvc.ChargeMessage(r.Context(), userID)
		if err != nil {
			metricMessageChargeErrors.Add(1)
			if errors.Is(err, credits.ErrInsufficientCredits) {
				WriteHTTPError(w, http.StatusPaymentRequired, "insufficient_credits")
				return
			}
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(charge)
	}
}
