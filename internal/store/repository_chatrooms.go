package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

const chatroomColumns = `id, user_id, sub_account_id, agent_id, status, channel_name, started_at, ended_at, created_at`

func scanChatroom(row pgx.Row) (*Chatroom, error) {
	var c Chatroom
	err := row.Scan(&c.ID, &c.UserID, &c.SubAccountID, &c.AgentID, &c.Status, &c.ChannelName,
		&c.StartedAt, &c.EndedAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ExistingChatroom returns the most recent chatroom for the pair, any
// status. Session creation is idempotent on this lookup.
func (s *Store) ExistingChatroom(ctx context.Context, userID, subAccountID string) (*Chatroom, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT `+chatroomColumns+`
		FROM chatrooms
		WHERE user_id = $1 AND sub_account_id = $2
		ORDER BY created_at DESC
		LIMIT 1`, userID, subAccountID)
	return scanChatroom(row)
}

func (s *Store) CreateChatroom(ctx context.Context, userID, subAccountID, agentID string) (*Chatroom, error) {
	id := NewID()
	channel := "presence-chatroom-" + id
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO chatrooms (id, user_id, sub_account_id, agent_id, status, channel_name)
		VALUES ($1,$2,$3,$4,'active',$5)
		RETURNING `+chatroomColumns,
		id, userID, subAccountID, agentID, channel)
	return scanChatroom(row)
}

func (s *Store) ChatroomByID(ctx context.Context, chatroomID string) (*Chatroom, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+chatroomColumns+` FROM chatrooms WHERE id = $1`, chatroomID)
	return scanChatroom(row)
}

// EndChatroom returns false when the room was already ended, so the
// caller can skip the capacity release on a double end.
func (s *Store) EndChatroom(ctx context.Context, chatroomID string) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE chatrooms
		SET status = 'ended', ended_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'active'`, chatroomID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) UserChatrooms(ctx context.Context, userID string, limit int) ([]Chatroom, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT `+chatroomColumns+`
		FROM chatrooms
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Chatroom{}
	for rows.Next() {
		var c Chatroom
		if err := rows.Scan(&c.ID, &c.UserID, &c.SubAccountID, &c.AgentID, &c.Status, &c.ChannelName,
			&c.StartedAt, &c.EndedAt, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
