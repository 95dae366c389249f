// Package store persists the customer aggregate. Stores are pure I/O;
// reconciliation and status rules live in the resolver and registry services.
package store

import (
	"context"

	"github.com/google/uuid"

	"onboard/internal/customer/models"
	id "onboard/pkg/domain"
)

// Store is the persistence boundary for customers and their connections.
// All writes are upsert-by-key; FindByConnection is the reconciliation
// lookup keyed by (system, foreign id). UpdateConnection writes a single
// connection row so concurrent per-system updates never overwrite each
// other through a whole-aggregate rewrite.
type Store interface {
	Upsert(ctx context.Context, customer *models.Customer) error
	UpdateConnection(ctx context.Context, customerID uuid.UUID, conn *models.Connection) error
	FindByID(ctx context.Context, customerID uuid.UUID) (*models.Customer, error)
	FindByTaxID(ctx context.Context, taxID id.TaxID) (*models.Customer, error)
	FindByConnection(ctx context.Context, system id.SystemType, foreignID string) (*models.Customer, error)
	LinkOperator(ctx context.Context, link models.OperatorLink) error
	OperatorLinks(ctx context.Context, customerID uuid.UUID) ([]models.OperatorLink, error)
}
