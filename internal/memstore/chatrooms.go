package memstore

import (
	"context"
	"time"

	"amoria/internal/store"
)

func (s *Store) ExistingChatroom(ctx context.Context, userID, subAccountID string) (*store.Chatroom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.chatrooms) - 1; i >= 0; i-- {
		c := s.chatrooms[i]
		if c.UserID == userID && c.SubAccountID == subAccountID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateChatroom(ctx context.Context, userID, subAccountID, agentID string) (*store.Chatroom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := store.NewID()
	now := time.Now()
	c := &store.Chatroom{
		ID:           id,
		UserID:       userID,
		SubAccountID: subAccountID,
		AgentID:      agentID,
		Status:       store.ChatroomStatusActive,
		ChannelName:  "presence-chatroom-" + id,
		StartedAt:    now,
		CreatedAt:    now,
	}
	s.chatrooms = append(s.chatrooms, c)
	cp := *c
	return &cp, nil
}

func (s *Store) ChatroomByID(ctx context.Context, chatroomID string) (*store.Chatroom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.chatrooms {
		if c.ID == chatroomID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) EndChatroom(ctx context.Context, chatroomID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.chatrooms {
		if c.ID == chatroomID && c.Status == store.ChatroomStatusActive {
			now := time.Now()
			c.Status = store.ChatroomStatusEnded
			c.EndedAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) UserChatrooms(ctx context.Context, userID string, limit int) ([]store.Chatroom, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []store.Chatroom{}
	for i := len(s.chatrooms) - 1; i >= 0 && len(out) < limit; i-- {
		if s.chatrooms[i].UserID == userID {
			out = append(out, *s.chatrooms[i])
		}
	}
	return out, nil
}
