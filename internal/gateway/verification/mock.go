package verification

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	id "onboard/pkg/domain"
	"onboard/pkg/requestcontext"
)

// MockGateway is a deterministic in-process vendor used in development and
// tests. Foreign ids derive from the tax identifier so create-or-fetch
// semantics hold across calls, and a configurable latency mimics real calls.
type MockGateway struct {
	SystemType   id.SystemType
	Latency      time.Duration
	VendorStatus string

	mu         sync.Mutex
	identities map[string]IdentityFields
}

func NewMock(system id.SystemType) *MockGateway {
	return &MockGateway{
		SystemType:   system,
		VendorStatus: "pending",
		identities:   make(map[string]IdentityFields),
	}
}

func (g *MockGateway) System() id.SystemType {
	return g.SystemType
}

func (g *MockGateway) CreateIdentity(ctx context.Context, fields IdentityFields) (Identity, error) {
	time.Sleep(g.Latency)
	foreignID := g.foreignIDFor(fields.TaxID)

	g.mu.Lock()
	g.identities[foreignID] = fields
	g.mu.Unlock()

	now := requestcontext.Now(ctx)
	return Identity{
		ForeignID:    foreignID,
		AccessToken:  "at-" + foreignID,
		RefreshToken: "rt-" + foreignID,
		TokenExpiry:  now.Add(1 * time.Hour),
	}, nil
}

func (g *MockGateway) UpdateIdentity(_ context.Context, foreignID string, fields IdentityFields) error {
	time.Sleep(g.Latency)
	g.mu.Lock()
	g.identities[foreignID] = fields
	g.mu.Unlock()
	return nil
}

func (g *MockGateway) GetIdentity(_ context.Context, creds Credentials) (IdentityStatus, error) {
	time.Sleep(g.Latency)
	g.mu.Lock()
	fields, ok := g.identities[creds.ForeignID]
	g.mu.Unlock()
	if !ok {
		return IdentityStatus{VendorStatus: g.VendorStatus}, nil
	}
	return IdentityStatus{
		VendorStatus: g.VendorStatus,
		FullName:     fields.FullName,
		Email:        fields.Email,
		Phone:        fields.Phone,
		DateOfBirth:  fields.DateOfBirth,
	}, nil
}

func (g *MockGateway) GetAccessToken(ctx context.Context, refreshToken string) (Token, error) {
	time.Sleep(g.Latency)
	now := requestcontext.Now(ctx)
	return Token{
		AccessToken: "at-refreshed-" + refreshToken,
		Expiry:      now.Add(1 * time.Hour),
	}, nil
}

func (g *MockGateway) GetKYCID(_ context.Context, creds Credentials) (string, error) {
	time.Sleep(g.Latency)
	return "kyc-" + creds.ForeignID, nil
}

func (g *MockGateway) foreignIDFor(taxID id.TaxID) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s/%s", g.SystemType, taxID)))
	return hex.EncodeToString(sum[:8])
}
