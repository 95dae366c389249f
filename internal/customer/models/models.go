package models

import (
	"time"

	"github.com/google/uuid"

	"onboard/internal/kyc/status"
	id "onboard/pkg/domain"
)

// Customer is the identity aggregate. Exactly one customer exists per tax
// identifier; connections are embedded and exclusively owned.
type Customer struct {
	ID           uuid.UUID
	TaxID        id.TaxID
	FullName     string
	Email        string
	Phone        string
	DateOfBirth  string
	ConsentFlags ConsentFlags
	// Connections holds at most one entry per external system type.
	Connections map[id.SystemType]*Connection
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ConsentFlags records the customer's onboarding consents.
type ConsentFlags struct {
	TermsAccepted  bool
	DataSharing    bool
	ElectronicDocs bool
}

// Connection is the per-external-system record of identity, credentials and
// KYC status for a customer.
type Connection struct {
	System       id.SystemType
	ForeignID    string
	AccessToken  string
	RefreshToken string
	TokenExpiry  time.Time
	KYCStatus    status.Status
	// KYCID is the canonical KYC identifier assigned by the external system
	// once verification completes.
	KYCID string
	// RejectionReason is recorded on explicit customer rejection for operator
	// follow-up.
	RejectionReason string
	UpdatedAt       time.Time
}

// Connection returns the connection for the given system, or nil.
func (c *Customer) Connection(system id.SystemType) *Connection {
	if c.Connections == nil {
		return nil
	}
	return c.Connections[system]
}

// PutConnection attaches or replaces the connection for its system type.
func (c *Customer) PutConnection(conn *Connection) {
	if c.Connections == nil {
		c.Connections = make(map[id.SystemType]*Connection)
	}
	c.Connections[conn.System] = conn
}

// NewCustomer builds an unconnected customer for the given identity fields.
func NewCustomer(taxID id.TaxID, fullName, email, phone, dob string, consent ConsentFlags, now time.Time) *Customer {
	return &Customer{
		ID:           uuid.New(),
		TaxID:        taxID,
		FullName:     fullName,
		Email:        email,
		Phone:        phone,
		DateOfBirth:  dob,
		ConsentFlags: consent,
		Connections:  make(map[id.SystemType]*Connection),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// OperatorLink associates an onboarding operator (advisor) with a customer.
// Unique per (customer, operator, account).
type OperatorLink struct {
	CustomerID   uuid.UUID
	OperatorID   string
	AccountID    string
	FirstContact bool
	CreatedAt    time.Time
}
