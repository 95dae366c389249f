package profile

import (
	"context"
	"sync"

	id "onboard/pkg/domain"
	"onboard/pkg/platform/sentinel"
)

// MemoryStore keeps profiles in process memory with copy-on-read semantics.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[id.TaxID]*CustomerProfile
}

func NewMemory() *MemoryStore {
	return &MemoryStore{profiles: make(map[id.TaxID]*CustomerProfile)}
}

func (s *MemoryStore) Upsert(_ context.Context, p *CustomerProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.TaxID] = cloneProfile(p)
	return nil
}

func (s *MemoryStore) FindByTaxID(_ context.Context, taxID id.TaxID) (*CustomerProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[taxID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneProfile(p), nil
}

func cloneProfile(p *CustomerProfile) *CustomerProfile {
	clone := *p
	if p.CustomerID != nil {
		customerID := *p.CustomerID
		clone.CustomerID = &customerID
	}
	if p.SubmittedAt != nil {
		submittedAt := *p.SubmittedAt
		clone.SubmittedAt = &submittedAt
	}
	clone.Nominees = append([]Nominee(nil), p.Nominees...)
	clone.WatchlistHits = append([]WatchlistHit(nil), p.WatchlistHits...)
	return &clone
}
