package profile

import (
	"context"

	id "onboard/pkg/domain"
)

// Store persists profiles keyed by tax identifier. One row exists per tax id:
// unsealed submissions for the same identifier are one logical session, and a
// sealed profile stays forever as the dedup record.
type Store interface {
	Upsert(ctx context.Context, p *CustomerProfile) error
	FindByTaxID(ctx context.Context, taxID id.TaxID) (*CustomerProfile, error)
}
