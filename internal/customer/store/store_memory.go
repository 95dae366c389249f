package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"onboard/internal/customer/models"
	id "onboard/pkg/domain"
	"onboard/pkg/platform/sentinel"
)

// MemoryStore keeps customers in process memory. Used by unit tests and local
// development; it mirrors the postgres store's observable behaviour,
// including copy-on-read so callers never alias stored state.
type MemoryStore struct {
	mu        sync.RWMutex
	customers map[uuid.UUID]*models.Customer
	links     map[string]models.OperatorLink
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		customers: make(map[uuid.UUID]*models.Customer),
		links:     make(map[string]models.OperatorLink),
	}
}

func (s *MemoryStore) Upsert(_ context.Context, customer *models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[customer.ID] = cloneCustomer(customer)
	return nil
}

func (s *MemoryStore) UpdateConnection(_ context.Context, customerID uuid.UUID, conn *models.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	customer, ok := s.customers[customerID]
	if !ok {
		return sentinel.ErrNotFound
	}
	connClone := *conn
	customer.PutConnection(&connClone)
	customer.UpdatedAt = conn.UpdatedAt
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, customerID uuid.UUID) (*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	customer, ok := s.customers[customerID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneCustomer(customer), nil
}

func (s *MemoryStore) FindByTaxID(_ context.Context, taxID id.TaxID) (*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, customer := range s.customers {
		if customer.TaxID == taxID {
			return cloneCustomer(customer), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemoryStore) FindByConnection(_ context.Context, system id.SystemType, foreignID string) (*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, customer := range s.customers {
		conn := customer.Connection(system)
		if conn != nil && conn.ForeignID == foreignID {
			return cloneCustomer(customer), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemoryStore) LinkOperator(_ context.Context, link models.OperatorLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := link.CustomerID.String() + "/" + link.OperatorID + "/" + link.AccountID
	if _, exists := s.links[key]; exists {
		return nil // unique per (customer, operator, account)
	}
	s.links[key] = link
	return nil
}

func (s *MemoryStore) OperatorLinks(_ context.Context, customerID uuid.UUID) ([]models.OperatorLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.OperatorLink
	for _, link := range s.links {
		if link.CustomerID == customerID {
			out = append(out, link)
		}
	}
	return out, nil
}

func cloneCustomer(c *models.Customer) *models.Customer {
	clone := *c
	clone.Connections = make(map[id.SystemType]*models.Connection, len(c.Connections))
	for system, conn := range c.Connections {
		connClone := *conn
		clone.Connections[system] = &connClone
	}
	return &clone
}
