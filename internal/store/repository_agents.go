package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

const subAccountColumns = `id, agent_id, name, display_name, avatar_url, bio, age, location, status, current_chat_count, max_concurrent_chats, created_at`

func (s *Store) CreateAgent(ctx context.Context, name string, priority int) (string, error) {
	id := NewID()
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO agents (id, name, priority, status) VALUES ($1, $2, $3, 'active')`,
		id, name, priority)
	return id, err
}

func (s *Store) AgentByID(ctx context.Context, agentID string) (*Agent, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, name, priority, last_assigned_index, status, created_at
		FROM agents WHERE id = $1`, agentID)
	var a Agent
	if err := row.Scan(&a.ID, &a.Name, &a.Priority, &a.LastAssignedIndex, &a.Status, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *Store) ActiveAgents(ctx context.Context) ([]Agent, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, name, priority, last_assigned_index, status, created_at
		FROM agents
		WHERE status = 'active'
		ORDER BY priority DESC, created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Agent{}
	for rows.Next() {
		var a Agent
		if err := rows.Scan(&a.ID, &a.Name, &a.Priority, &a.LastAssignedIndex, &a.Status, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) AdvanceRoundRobin(ctx context.Context, agentID string, index int) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE agents SET last_assigned_index = $1, updated_at = now() WHERE id = $2`, index, agentID)
	return err
}

func (s *Store) CreateSubAccount(ctx context.Context, sub SubAccount) (string, error) {
	id := NewID()
	if sub.MaxConcurrentChats <= 0 {
		sub.MaxConcurrentChats = 5
	}
	if sub.Status == "" {
		sub.Status = SubAccountStatusAvailable
	}
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO sub_accounts (id, agent_id, name, display_name, avatar_url, bio, age, location, status, max_concurrent_chats)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		id, sub.AgentID, sub.Name, sub.DisplayName, sub.AvatarURL, sub.Bio, sub.Age, sub.Location, sub.Status, sub.MaxConcurrentChats)
	return id, err
}

func (s *Store) SubAccountByID(ctx context.Context, subAccountID string) (*SubAccount, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+subAccountColumns+` FROM sub_accounts WHERE id = $1`, subAccountID)
	var sub SubAccount
	err := row.Scan(&sub.ID, &sub.AgentID, &sub.Name, &sub.DisplayName, &sub.AvatarURL, &sub.Bio, &sub.Age,
		&sub.Location, &sub.Status, &sub.CurrentChatCount, &sub.MaxConcurrentChats, &sub.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// AvailableSubAccounts returns an agent's candidates that can take a
// new chat right now, in stable creation order so round cursors stay
// meaningful.
func (s *Store) AvailableSubAccounts(ctx context.Context, agentID string) ([]SubAccount, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+subAccountColumns+`
		FROM sub_accounts
		WHERE agent_id = $1 AND status = 'available' AND current_chat_count < max_concurrent_chats
		ORDER BY created_at ASC`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []SubAccount{}
	for rows.Next() {
		var sub SubAccount
		if err := rows.Scan(&sub.ID, &sub.AgentID, &sub.Name, &sub.DisplayName, &sub.AvatarURL, &sub.Bio, &sub.Age,
			&sub.Location, &sub.Status, &sub.CurrentChatCount, &sub.MaxConcurrentChats, &sub.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// ReserveChatSlot is the capacity reservation: a single conditional
// increment, so two racing admissions cannot both pass a separate
// check-then-increment.
func (s *Store) ReserveChatSlot(ctx context.Context, subAccountID string) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE sub_accounts
		SET current_chat_count = current_chat_count + 1, updated_at = now()
		WHERE id = $1 AND status = 'available' AND current_chat_count < max_concurrent_chats`,
		subAccountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAtCapacity
	}
	return nil
}

func (s *Store) ReleaseChatSlot(ctx context.Context, subAccountID string) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE sub_accounts
		SET current_chat_count = GREATEST(current_chat_count - 1, 0), updated_at = now()
		WHERE id = $1`, subAccountID)
	return err
}

func (s *Store) UpdateSubAccountStatus(ctx context.Context, subAccountID, status string) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE sub_accounts SET status = $1, updated_at = now() WHERE id = $2`, status, subAccountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
