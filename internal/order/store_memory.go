package order

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"onboard/pkg/platform/sentinel"
)

// MemoryStore keeps orders in process memory with copy-on-read semantics.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*Order
}

func NewMemory() *MemoryStore {
	return &MemoryStore{orders: make(map[uuid.UUID]*Order)}
}

func (s *MemoryStore) Upsert(_ context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *o
	s.orders[o.ID] = &clone
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, orderID uuid.UUID) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *o
	return &clone, nil
}

func (s *MemoryStore) FindByExternalID(_ context.Context, externalID string) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if o.ExternalID == externalID {
			clone := *o
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemoryStore) ListByCustomer(_ context.Context, customerID uuid.UUID) ([]*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Order
	for _, o := range s.orders {
		if o.CustomerID == customerID {
			clone := *o
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
