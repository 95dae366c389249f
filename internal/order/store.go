package order

import (
	"context"

	"github.com/google/uuid"
)

// Store is the persistence boundary for payment orders. FindByExternalID is
// the webhook correlation lookup.
type Store interface {
	Upsert(ctx context.Context, o *Order) error
	FindByID(ctx context.Context, orderID uuid.UUID) (*Order, error)
	FindByExternalID(ctx context.Context, externalID string) (*Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*Order, error)
}
