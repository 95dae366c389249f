// Package verification defines the port to a per-system identity and KYC
// vendor. One Gateway instance is constructed per external system.
package verification

import (
	"context"
	"time"

	id "onboard/pkg/domain"
)

// IdentityFields carries the demographic fields pushed to the vendor when an
// identity is created or updated.
type IdentityFields struct {
	TaxID       id.TaxID
	FullName    string
	Email       string
	Phone       string
	DateOfBirth string
}

// Identity is the vendor-side identity handle plus its credentials.
type Identity struct {
	ForeignID    string
	AccessToken  string
	RefreshToken string
	TokenExpiry  time.Time
}

// Credentials identifies an existing vendor identity for read calls.
type Credentials struct {
	ForeignID   string
	AccessToken string
}

// IdentityStatus is the vendor's view of an identity: its KYC progress string
// (vendor vocabulary, mapped by the projector) and current demographics.
type IdentityStatus struct {
	VendorStatus string
	FullName     string
	Email        string
	Phone        string
	DateOfBirth  string
}

// Token is a refreshed access grant.
type Token struct {
	AccessToken string
	Expiry      time.Time
}

// Gateway is the per-system identity vendor port. CreateIdentity is
// create-or-fetch on the vendor side: calling it again for the same tax
// identifier returns the same foreign id.
type Gateway interface {
	System() id.SystemType
	CreateIdentity(ctx context.Context, fields IdentityFields) (Identity, error)
	UpdateIdentity(ctx context.Context, foreignID string, fields IdentityFields) error
	GetIdentity(ctx context.Context, creds Credentials) (IdentityStatus, error)
	GetAccessToken(ctx context.Context, refreshToken string) (Token, error)
	GetKYCID(ctx context.Context, creds Credentials) (string, error)
}
