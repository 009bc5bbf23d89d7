package chatroom

import "time"

type ChatroomView struct {
	ChatroomID   string     `json:"chatroom_id"`
	UserID       string     `json:"user_id"`
	SubAccountID string     `json:"sub_account_id"`
	AgentID      string     `json:"agent_id"`
	Status       string     `json:"status"`
	ChannelName  string     `json:"channel_name"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
}

// ChatResponse flags whether the session already existed so callers
// can tell an idempotent replay from a fresh admission.
type ChatResponse struct {
	Chatroom ChatroomView `json:"chatroom"`
	Existed  bool         `json:"existed"`
}

type sessionEvent struct {
	ChatroomID   string `json:"chatroom_id"`
	ChannelName  string `json:"channel_name"`
	UserID       string `json:"user_id"`
	SubAccountID string `json:"sub_account_id"`
	AgentID      string `json:"agent_id"`
}
