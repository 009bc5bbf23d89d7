// Package memstore is an in-memory implementation of the persistence
// surface the services consume. It backs handler and service tests and
// keeps the same sentinel-error contract as the Postgres store.
package memstore

import (
	"context"
	"sync"

	"amoria/internal/store"
)

type Store struct {
	mu sync.Mutex

	accounts     map[string]*store.CreditAccount // keyed by user ID
	transactions []store.CreditTransaction
	messageStats map[string]*store.MessageStats

	agents      map[string]*store.Agent
	subAccounts map[string]*store.SubAccount

	matches   []*store.MatchRecord
	chatrooms []*store.Chatroom
}

func New() *Store {
	return &Store{
		accounts:     map[string]*store.CreditAccount{},
		messageStats: map[string]*store.MessageStats{},
		agents:       map[string]*store.Agent{},
		subAccounts:  map[string]*store.SubAccount{},
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return nil
}
