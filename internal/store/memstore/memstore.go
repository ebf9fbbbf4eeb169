// Package memstore is an in-memory OrderStore for tests and simulator runs.
package memstore

import (
	"context"
	"sync"
	"time"

	"tradepipe/internal/domain"
	"tradepipe/internal/gateway"
)

type transition struct {
	From domain.OrderStatus
	To   domain.OrderStatus
	Note string
	At   time.Time
}

type Store struct {
	mu          sync.RWMutex
	orders      map[string]domain.Order
	transitions map[string][]transition
}

var _ gateway.OrderStore = (*Store)(nil)

func New() *Store {
	return &Store{
		orders:      make(map[string]domain.Order),
		transitions: make(map[string][]transition),
	}
}

func (s *Store) Load(_ context.Context, orderID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, gateway.ErrOrderNotFound
	}
	cp := o
	return &cp, nil
}

func (s *Store) Save(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	s.orders[order.ID] = *order
	s.mu.Unlock()
	return nil
}

func (s *Store) LogTransition(_ context.Context, orderID string, from, to domain.OrderStatus, note string, at time.Time) error {
	s.mu.Lock()
	s.transitions[orderID] = append(s.transitions[orderID], transition{From: from, To: to, Note: note, At: at})
	s.mu.Unlock()
	return nil
}

// TransitionCount reports how many audit rows exist for an order.
func (s *Store) TransitionCount(orderID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transitions[orderID])
}
