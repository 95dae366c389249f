// Package order tracks the account-opening payment order raised against a
// customer and maps the payment vendor's status vocabulary onto the local
// lifecycle.
package order

import (
	"time"

	"github.com/google/uuid"

	dErrors "onboard/pkg/domain-errors"
)

// Status is the local payment order lifecycle. LINK_SENT and LINK_OPENED are
// pre-payment states; the rest arrive from the vendor via webhook.
type Status string

const (
	LinkSent       Status = "LINK_SENT"
	LinkOpened     Status = "LINK_OPENED"
	PaymentPending Status = "PAYMENT_PENDING"
	PaymentSuccess Status = "PAYMENT_SUCCESS"
	Rejected       Status = "REJECTED"
	Cancelled      Status = "CANCELLED"
	Refunded       Status = "REFUNDED"
)

func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether the order can still move. A successful payment
// can only move to refunded.
func (s Status) IsTerminal() bool {
	switch s {
	case Rejected, Cancelled, Refunded:
		return true
	}
	return false
}

// Order is one payment order. ExternalID is the vendor's order handle used to
// correlate webhooks.
type Order struct {
	ID          uuid.UUID
	CustomerID  uuid.UUID
	ExternalID  string
	AmountPaise int64
	Currency    string
	Status      Status
	PaymentLink string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// externalStatuses is the fixed vendor-to-local mapping. A vendor string
// outside this table is a mapping error, never a silent default.
var externalStatuses = map[string]Status{
	"opened":       LinkOpened,
	"authorized":   PaymentPending,
	"pending":      PaymentPending,
	"captured":     PaymentSuccess,
	"failed":       Rejected,
	"user_dropped": Cancelled,
	"expired":      Cancelled,
	"refunded":     Refunded,
}

// MapExternalStatus translates the payment vendor's status string.
func MapExternalStatus(external string) (Status, error) {
	mapped, ok := externalStatuses[external]
	if !ok {
		return "", dErrors.Newf(dErrors.CodeBadRequest, "unmapped payment status %q", external)
	}
	return mapped, nil
}

// Advance applies the vendor status to the order. Link progression only moves
// forward; terminal orders refuse everything except success turning into a
// refund.
func (o *Order) Advance(external string, now time.Time) error {
	mapped, err := MapExternalStatus(external)
	if err != nil {
		return err
	}
	switch {
	case o.Status.IsTerminal():
		return dErrors.Newf(dErrors.CodeConflict, "order already %s", o.Status)
	case o.Status == PaymentSuccess && mapped != Refunded:
		return dErrors.Newf(dErrors.CodeConflict, "paid order cannot become %s", mapped)
	case mapped == LinkOpened && o.Status != LinkSent:
		// A late "opened" webhook after payment progress carries no news.
		return nil
	}
	o.Status = mapped
	o.UpdatedAt = now
	return nil
}
