package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"amoria/internal/app/chatroom"
)

type ChatroomHandlers struct {
	chatSvc *chatroom.Service
}

func NewChatroomHandlers(chatSvc *chatroom.Service) *ChatroomHandlers {
	return &ChatroomHandlers{chatSvc: chatSvc}
}

func (h *ChatroomHandlers) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := UserIDFromRequest(r)
		var body struct {
			SubAccountID string `json:"sub_account_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}

		metricChatCreateTotal.Add(1)
		resp, err := h.chatSvc.CreateOrGetChat(r.Context(), userID, body.SubAccountID)
		if err != nil {
			metricChatCreateErrors.Add(1)
			switch {
			case errors.Is(err, chatroom.ErrInvalidRequest):
				WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			case errors.Is(err, chatroom.ErrNotAuthorized):
				WriteHTTPError(w, http.StatusForbidden, "not_matched_with_candidate")
			case errors.Is(err, chatroom.ErrCandidateUnavailable):
				WriteHTTPError(w, http.StatusConflict, "candidate_unavailable")
			case errors.Is(err, chatroom.ErrAtCapacity):
				WriteHTTPError(w, http.StatusConflict, "candidate_at_capacity")
			default:
				WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			}
			return
		}
		if !resp.Existed {
			w.WriteHeader(http.StatusCreated)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *ChatroomHandlers) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.chatSvc.GetChat(r.Context(), chi.URLParam(r, "chatroom_id"))
		if err != nil {
			if errors.Is(err, chatroom.ErrNotFound) {
				WriteHTTPError(w, http.StatusNotFound, "chatroom_not_found")
				return
			}
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *ChatroomHandlers) End() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h.chatSvc.EndChat(r.Context(), chi.URLParam(r, "chatroom_id"))
		if err != nil {
			switch {
			case errors.Is(err, chatroom.ErrInvalidRequest):
				WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			case errors.Is(err, chatroom.ErrNotFound):
				WriteHTTPError(w, http.StatusNotFound, "chatroom_not_found")
			default:
				WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			}
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

func (h *ChatroomHandlers) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := UserIDFromRequest(r)
		if userID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "missing_user")
			return
		}
		limit := ParseLimit(r)
		items := h.chatSvc.UserChats(r.Context(), userID, limit)
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items, "limit": limit})
	}
}
