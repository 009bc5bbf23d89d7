package credits

import "time"

type BalanceResponse struct {
	UserID         string `json:"user_id"`
	CurrentBalance int64  `json:"current_balance"`
	TotalEarned    int64  `json:"total_earned"`
	TotalSpent     int64  `json:"total_spent"`
}

type TransactionView struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Reason        string    `json:"reason"`
	Amount        int64     `json:"amount"`
	BalanceBefore int64     `json:"balance_before"`
	BalanceAfter  int64     `json:"balance_after"`
	ReferenceID   string    `json:"reference_id,omitempty"`
	ReferenceType string    `json:"reference_type,omitempty"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Charge describes how a single message send was paid for.
type Charge struct {
	UsedFreeQuota  bool  `json:"used_free_quota"`
	CreditsCharged int64 `json:"credits_charged"`
	FreeRemaining  int   `json:"free_remaining"`
	Balance        int64 `json:"balance"`
}

type MessageStatus struct {
	FreeMessagesUsed  int   `json:"free_messages_used"`
	FreeMessagesLimit int   `json:"free_messages_limit"`
	FreeRemaining     int   `json:"free_remaining"`
	CostPerMessage    int64 `json:"cost_per_message"`
	Balance           int64 `json:"balance"`
	CanSend           bool  `json:"can_send"`
}
