package watchlist

import (
	"context"
	"strings"
	"time"

	id "onboard/pkg/domain"
)

// MockGateway returns deterministic screening results: any name containing a
// configured needle produces a hit. Mirrors how sanctions lists behave without
// an external dependency.
type MockGateway struct {
	Latency time.Duration
	// FlagNames lowercased substrings that trigger a hit.
	FlagNames []string
}

func NewMock() *MockGateway {
	return &MockGateway{FlagNames: []string{"flagged"}}
}

func (g *MockGateway) Screen(_ context.Context, _ id.TaxID, name, _ string) (Result, error) {
	time.Sleep(g.Latency)
	lower := strings.ToLower(name)
	for _, needle := range g.FlagNames {
		if strings.Contains(lower, needle) {
			return Result{Hits: []Hit{{
				List:   "sanctions",
				Name:   name,
				Score:  0.92,
				Source: "mock",
			}}}, nil
		}
	}
	return Result{}, nil
}
