// Package chatroom is the session admission controller: it turns a
// consumed match into a live chat session, idempotently and bounded by
// per-candidate concurrency capacity.
package chatroom

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"amoria/internal/store"
)

// SessionStore persists the chat sessions themselves.
type SessionStore interface {
	ExistingChatroom(ctx context.Context, userID, subAccountID string) (*store.Chatroom, error)
	CreateChatroom(ctx context.Context, userID, subAccountID, agentID string) (*store.Chatroom, error)
	ChatroomByID(ctx context.Context, chatroomID string) (*store.Chatroom, error)
	EndChatroom(ctx context.Context, chatroomID string) (bool, error)
	UserChatrooms(ctx context.Context, userID string, limit int) ([]store.Chatroom, error)
}

// CandidateDirectory covers candidate lookup and the capacity counter.
// This controller is the only writer of chat slot counts.
type CandidateDirectory interface {
	SubAccountByID(ctx context.Context, subAccountID string) (*store.SubAccount, error)
	ReserveChatSlot(ctx context.Context, subAccountID string) error
	ReleaseChatSlot(ctx context.Context, subAccountID string) error
}

// MatchLedger is the slice of the match ledger admission needs:
// the live-match authorization lookup and consumption.
type MatchLedger interface {
	MatchByCandidate(ctx context.Context, userID, subAccountID string) (*store.MatchRecord, error)
	MarkMatchConsumed(ctx context.Context, matchID, userID string) (bool, error)
}

// Notifier announces sessions to interested parties. Best effort:
// implementations must not block, and failures never affect admission.
type Notifier interface {
	Publish(channel, event string, payload any)
}

type Service struct {
	sessions   SessionStore
	candidates CandidateDirectory
	matches    MatchLedger
	notifier   Notifier
}

func NewService(sessions SessionStore, candidates CandidateDirectory, matches MatchLedger, notifier Notifier) *Service {
	return &Service{sessions: sessions, candidates: candidates, matches: matches, notifier: notifier}
}

// CreateOrGetChat admits a session for the pair. The sequence is:
// idempotency lookup, live-match authorization, conditional capacity
// reservation, session create (released on failure), then match
// consumption and notification. A consumed or expired match does not
// authorize a fresh session.
func (s *Service) CreateOrGetChat(ctx context.Context, userID, subAccountID string) (*ChatResponse, error) {
	if userID == "" || subAccountID == "" {
		return nil, ErrInvalidRequest
	}

	existing, err := s.sessions.ExistingChatroom(ctx, userID, subAccountID)
	if err == nil {
		return &ChatResponse{Chatroom: viewOf(existing), Existed: true}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	match, err := s.matches.MatchByCandidate(ctx, userID, subAccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotAuthorized
		}
		return nil, err
	}

	sub, err := s.candidates.SubAccountByID(ctx, subAccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCandidateUnavailable
		}
		return nil, err
	}
	if sub.Status != store.SubAccountStatusAvailable {
		return nil, ErrCandidateUnavailable
	}

	// Single conditional increment. Two racing admissions cannot both
	// take the last slot.
	if err := s.candidates.ReserveChatSlot(ctx, subAccountID); err != nil {
		if errors.Is(err, store.ErrAtCapacity) {
			return nil, ErrAtCapacity
		}
		return nil, err
	}

	room, err := s.sessions.CreateChatroom(ctx, userID, subAccountID, sub.AgentID)
	if err != nil {
		if relErr := s.candidates.ReleaseChatSlot(ctx, subAccountID); relErr != nil {
			log.Error().Err(relErr).Str("sub_account_id", subAccountID).
				Msg("slot release after failed session create did not land")
		}
		return nil, err
	}

	// The session exists from here on. A consumption failure leaves the
	// match available alongside the live session; log it rather than
	// fail an admission that already happened.
	if _, err := s.matches.MarkMatchConsumed(ctx, match.ID, userID); err != nil {
		log.Error().Err(err).Str("match_id", match.ID).Str("chatroom_id", room.ID).
			Msg("match consumption after session create failed")
	}

	s.announce(room)
	return &ChatResponse{Chatroom: viewOf(room), Existed: false}, nil
}

func (s *Service) announce(room *store.Chatroom) {
	if s.notifier == nil {
		return
	}
	payload := sessionEvent{
		ChatroomID:   room.ID,
		ChannelName:  room.ChannelName,
		UserID:       room.UserID,
		SubAccountID: room.SubAccountID,
		AgentID:      room.AgentID,
	}
	s.notifier.Publish("private-user-"+room.UserID, "match.created", payload)
	s.notifier.Publish("private-agent-"+room.AgentID, "match.created", payload)
}

// EndChat transitions the session to ended and releases the candidate
// slot. Ending an already-ended session is a no-op.
func (s *Service) EndChat(ctx context.Context, chatroomID string) error {
	if chatroomID == "" {
		return ErrInvalidRequest
	}
	room, err := s.sessions.ChatroomByID(ctx, chatroomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	ended, err := s.sessions.EndChatroom(ctx, chatroomID)
	if err != nil {
		return err
	}
	if !ended {
		return nil
	}
	return s.candidates.ReleaseChatSlot(ctx, room.SubAccountID)
}

// GetChat returns a single session.
func (s *Service) GetChat(ctx context.Context, chatroomID string) (*ChatroomView, error) {
	room, err := s.sessions.ChatroomByID(ctx, chatroomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	v := viewOf(room)
	return &v, nil
}

// UserChats degrades to an empty list on internal failure.
func (s *Service) UserChats(ctx context.Context, userID string, limit int) []ChatroomView {
	rooms, err := s.sessions.UserChatrooms(ctx, userID, limit)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("user chatrooms lookup failed")
		return []ChatroomView{}
	}
	out := make([]ChatroomView, 0, len(rooms))
	for i := range rooms {
		out = append(out, viewOf(&rooms[i]))
	}
	return out
}

func viewOf(room *store.Chatroom) ChatroomView {
	return ChatroomView{
		ChatroomID:   room.ID,
		UserID:       room.UserID,
		SubAccountID: room.SubAccountID,
		AgentID:      room.AgentID,
		Status:       room.Status,
		ChannelName:  room.ChannelName,
		StartedAt:    room.StartedAt,
		EndedAt:      room.EndedAt,
	}
}
