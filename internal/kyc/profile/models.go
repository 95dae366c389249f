package profile

import (
	"time"

	"github.com/google/uuid"

	id "onboard/pkg/domain"
)

// CustomerProfile is the secondary aggregate built up step by step during
// onboarding. It is keyed by tax identifier and may predate the customer
// linkage; CustomerID is adopted once resolution happens.
type CustomerProfile struct {
	ID         uuid.UUID
	TaxID      id.TaxID
	CustomerID *uuid.UUID
	// SessionToken correlates submissions of one logical session. Opaque:
	// profiles are keyed by tax identifier, never by session.
	SessionToken string

	FullName    string
	Email       string
	Phone       string
	DateOfBirth string

	Address     Address
	BankAccount BankAccount
	Nominees    []Nominee

	WatchlistHits  []WatchlistHit
	ReviewRequired bool

	// Document references: storage URLs only, never raw bytes.
	SelfieURL     string
	SignatureURL  string
	ChequeURL     string
	VaultProofURL string

	AllDetailsFilled bool
	// SubmittedBy snapshots the operator who sealed the profile, for audit.
	SubmittedBy string
	SubmittedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Sealed reports whether the profile completed final submission.
func (p *CustomerProfile) Sealed() bool {
	return p.AllDetailsFilled
}

// Address is the customer's declared correspondence address.
type Address struct {
	Line1   string
	Line2   string
	City    string
	State   string
	PinCode string
}

// BankAccount is the declared settlement account. Verified flips only on a
// confirmed name/account/IFSC match.
type BankAccount struct {
	Number     string
	IFSC       id.IFSC
	HolderName string
	Verified   bool
}

// Nominee is a declared beneficiary.
type Nominee struct {
	Name         string
	Relationship string
	SharePercent int
}

// WatchlistHit is a screening match recorded on the profile for review.
type WatchlistHit struct {
	List   string
	Name   string
	Score  float64
	Source string
}
