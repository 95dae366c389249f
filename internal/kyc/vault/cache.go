// Package vault manages access to the government document vault: a signed
// access token minted per customer with an expiry, cached and transparently
// refreshed, and identity cross-validation of fetched proofs.
package vault

import (
	"context"
	"time"

	gateway "onboard/internal/gateway/vault"
)

// CachedGrant is the vault grant stored per tax identifier, wrapped in the
// locally signed token.
type CachedGrant struct {
	DocID       string    `json:"doc_id"`
	VendorToken string    `json:"vendor_token"`
	ValidTill   time.Time `json:"valid_till"`
	// Signed is the locally minted JWT wrapping this grant.
	Signed string `json:"signed"`
}

// Cache persists grants between requests. Redis in production, memory in
// tests.
type Cache interface {
	Get(ctx context.Context, key string) (*CachedGrant, error)
	Set(ctx context.Context, key string, grant *CachedGrant, ttl time.Duration) error
}

// Gateway aliases the vendor port for wiring convenience.
type Gateway = gateway.Gateway
