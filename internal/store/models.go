package store

import "time"

const (
	MatchTypeInitial   = "initial"
	MatchTypeDailyFree = "daily_free"
	MatchTypePaid      = "paid"

	MatchStatusAvailable = "available"
	MatchStatusConsumed  = "consumed"
	MatchStatusExpired   = "expired"

	TxnTypeCredit = "credit"
	TxnTypeDebit  = "debit"
	TxnTypeRefund = "refund"

	ReasonInitialGrant       = "initial_grant"
	ReasonPurchase           = "purchase"
	ReasonMatchConsumption   = "match_consumption"
	ReasonMessageConsumption = "message_consumption"
	ReasonAdminAdjustment    = "admin_adjustment"
	ReasonRefundCancelled    = "refund_cancelled_chat"
	ReasonRefundFailedGrant  = "refund_failed_grant"

	AgentStatusActive    = "active"
	AgentStatusInactive  = "inactive"
	AgentStatusSuspended = "suspended"

	SubAccountStatusAvailable = "available"
	SubAccountStatusBusy      = "busy"
	SubAccountStatusOffline   = "offline"
	SubAccountStatusSuspended = "suspended"

	ChatroomStatusActive = "active"
	ChatroomStatusEnded  = "ended"
)

type Agent struct {
	ID                string
	Name              string
	Priority          int
	LastAssignedIndex int
	Status            string
	CreatedAt         time.Time
}

type SubAccount struct {
	ID                 string
	AgentID            string
	Name               string
	DisplayName        string
	AvatarURL          string
	Bio                string
	Age                int
	Location           string
	Status             string
	CurrentChatCount   int
	MaxConcurrentChats int
	CreatedAt          time.Time
}

type CreditAccount struct {
	ID             string
	UserID         string
	CurrentBalance int64
	TotalEarned    int64
	TotalSpent     int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreditDelta describes a single balance mutation. Amount is always
// positive; Type decides the direction.
type CreditDelta struct {
	UserID        string
	Type          string
	Reason        string
	Amount        int64
	ReferenceID   string
	ReferenceType string
	Description   string
}

type CreditTransaction struct {
	ID            string
	UserID        string
	Type          string
	Reason        string
	Amount        int64
	BalanceBefore int64
	BalanceAfter  int64
	ReferenceID   string
	ReferenceType string
	Description   string
	CreatedAt     time.Time
}

type MatchRecord struct {
	ID              string
	UserID          string
	SubAccountID    string
	MatchType       string
	Status          string
	CreditsConsumed int64
	ConsumedAt      *time.Time
	ExpiresAt       *time.Time
	CreatedAt       time.Time
}

type MatchTypeCounts struct {
	Total     int
	Available int
	Consumed  int
}

type MatchHealth struct {
	Total        int
	Available    int
	Consumed     int
	Expired      int
	ExpiringSoon int
	GrantedToday int
}

type Chatroom struct {
	ID           string
	UserID       string
	SubAccountID string
	AgentID      string
	Status       string
	ChannelName  string
	StartedAt    time.Time
	EndedAt      *time.Time
	CreatedAt    time.Time
}

type MessageStats struct {
	UserID           string
	FreeMessagesUsed int
	LastResetDate    time.Time
}
