// Package watchlist defines the sanctions / politically-exposed-person
// screening port.
package watchlist

import (
	"context"

	id "onboard/pkg/domain"
)

// Hit is a single screening match.
type Hit struct {
	List   string
	Name   string
	Score  float64
	Source string
}

// Result carries screening output. Hits flag the profile for manual review;
// they never block onboarding.
type Result struct {
	Hits []Hit
}

type Gateway interface {
	Screen(ctx context.Context, taxID id.TaxID, name, dob string) (Result, error)
}
