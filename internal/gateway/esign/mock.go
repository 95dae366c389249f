package esign

import (
	"context"
	"fmt"
	"sync"
	"time"

	"onboard/pkg/platform/sentinel"
)

// MockGateway stores generated documents in memory.
type MockGateway struct {
	Latency time.Duration

	mu      sync.Mutex
	nextID  int
	content map[string][]byte
}

func NewMock() *MockGateway {
	return &MockGateway{content: make(map[string][]byte)}
}

func (g *MockGateway) CreateDocument(_ context.Context, fields DocumentFields) (string, error) {
	time.Sleep(g.Latency)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	docID := fmt.Sprintf("doc-%04d", g.nextID)
	g.content[docID] = fmt.Appendf(nil, "account opening form: %s (%s)", fields.CustomerName, fields.TaxID)
	return docID, nil
}

func (g *MockGateway) FetchSignedDocument(_ context.Context, documentID string) ([]byte, error) {
	time.Sleep(g.Latency)
	g.mu.Lock()
	defer g.mu.Unlock()
	content, ok := g.content[documentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return content, nil
}
