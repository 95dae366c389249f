// Package vault defines the port to the government-backed document vault,
// the alternative identity-proof source. Access requires a time-limited
// grant minted per customer.
package vault

import (
	"context"
	"time"
)

// AccessGrant is a time-limited authorisation to read a customer's documents.
type AccessGrant struct {
	DocID     string
	Token     string
	ValidTill time.Time
}

// IdentityProof is one document fetched from the vault.
type IdentityProof struct {
	Kind     string // "tax_card", "address", ...
	TaxID    string
	Name     string
	ImageURL string
}

// Documents is the full fetch result.
type Documents struct {
	Proofs []IdentityProof
}

type Gateway interface {
	CreateAccessRequest(ctx context.Context, customerName, taxID string) (AccessGrant, error)
	RefreshAccessRequest(ctx context.Context, docID string) (token string, validTill time.Time, err error)
	FetchIdentityDocuments(ctx context.Context, docID, token string) (Documents, error)
}
