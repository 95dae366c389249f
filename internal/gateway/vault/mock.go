package vault

import (
	"context"
	"fmt"
	"sync"
	"time"

	"onboard/pkg/requestcontext"
)

// MockGateway issues deterministic grants and returns the tax card the grant
// was created for. A WrongTaxID override exercises the cross-validation
// rejection path.
type MockGateway struct {
	Latency  time.Duration
	GrantTTL time.Duration
	// WrongTaxID, when set, is returned in proofs instead of the requested
	// tax id.
	WrongTaxID string

	mu     sync.Mutex
	nextID int
	grants map[string]IdentityProof
}

func NewMock() *MockGateway {
	return &MockGateway{
		GrantTTL: 30 * time.Minute,
		grants:   make(map[string]IdentityProof),
	}
}

func (g *MockGateway) CreateAccessRequest(ctx context.Context, customerName, taxID string) (AccessGrant, error) {
	time.Sleep(g.Latency)
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nextID++
	docID := fmt.Sprintf("vault-%04d", g.nextID)
	proofTaxID := taxID
	if g.WrongTaxID != "" {
		proofTaxID = g.WrongTaxID
	}
	g.grants[docID] = IdentityProof{
		Kind:     "tax_card",
		TaxID:    proofTaxID,
		Name:     customerName,
		ImageURL: "https://vault.mock/proofs/" + docID,
	}
	return AccessGrant{
		DocID:     docID,
		Token:     "vt-" + docID,
		ValidTill: requestcontext.Now(ctx).Add(g.GrantTTL),
	}, nil
}

func (g *MockGateway) RefreshAccessRequest(ctx context.Context, docID string) (string, time.Time, error) {
	time.Sleep(g.Latency)
	return "vt-refreshed-" + docID, requestcontext.Now(ctx).Add(g.GrantTTL), nil
}

func (g *MockGateway) FetchIdentityDocuments(_ context.Context, docID, _ string) (Documents, error) {
	time.Sleep(g.Latency)
	g.mu.Lock()
	proof, ok := g.grants[docID]
	g.mu.Unlock()
	if !ok {
		return Documents{}, fmt.Errorf("unknown vault doc id: %s", docID)
	}
	return Documents{Proofs: []IdentityProof{proof}}, nil
}
