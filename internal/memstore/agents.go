package memstore

import (
	"context"
	"sort"
	"time"

	"amoria/internal/store"
)

func (s *Store) CreateAgent(ctx context.Context, name string, priority int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := store.NewID()
	s.agents[id] = &store.Agent{
		ID:                id,
		Name:              name,
		Priority:          priority,
		LastAssignedIndex: -1,
		Status:            store.AgentStatusActive,
		CreatedAt:         time.Now(),
	}
	return id, nil
}

func (s *Store) AgentByID(ctx context.Context, agentID string) (*store.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[agentID]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *a
	return &c, nil
}

func (s *Store) ActiveAgents(ctx context.Context) ([]store.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []store.Agent{}
	for _, a := range s.agents {
		if a.Status == store.AgentStatusActive {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) AdvanceRoundRobin(ctx context.Context, agentID string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.agents[agentID]; ok {
		a.LastAssignedIndex = index
	}
	return nil
}

func (s *Store) CreateSubAccount(ctx context.Context, sub store.SubAccount) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := store.NewID()
	if sub.MaxConcurrentChats <= 0 {
		sub.MaxConcurrentChats = 5
	}
	if sub.Status == "" {
		sub.Status = store.SubAccountStatusAvailable
	}
	sub.ID = id
	sub.CreatedAt = time.Now()
	s.subAccounts[id] = &sub
	return id, nil
}

func (s *Store) SubAccountByID(ctx context.Context, subAccountID string) (*store.SubAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subAccounts[subAccountID]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *sub
	return &c, nil
}

func (s *Store) AvailableSubAccounts(ctx context.Context, agentID string) ([]store.SubAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []store.SubAccount{}
	for _, sub := range s.subAccounts {
		if sub.AgentID == agentID && sub.Status == store.SubAccountStatusAvailable &&
			sub.CurrentChatCount < sub.MaxConcurrentChats {
			out = append(out, *sub)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ReserveChatSlot(ctx context.Context, subAccountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subAccounts[subAccountID]
	if !ok || sub.Status != store.SubAccountStatusAvailable || sub.CurrentChatCount >= sub.MaxConcurrentChats {
		return store.ErrAtCapacity
	}
	sub.CurrentChatCount++
	return nil
}

func (s *Store) ReleaseChatSlot(ctx context.Context, subAccountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subAccounts[subAccountID]; ok && sub.CurrentChatCount > 0 {
		sub.CurrentChatCount--
	}
	return nil
}

func (s *Store) UpdateSubAccountStatus(ctx context.Context, subAccountID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subAccounts[subAccountID]
	if !ok {
		return store.ErrNotFound
	}
	sub.Status = status
	return nil
}
