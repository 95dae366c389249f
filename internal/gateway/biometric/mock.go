package biometric

import (
	"context"
	"strings"
	"time"
)

// MockGateway matches any capture whose URL does not carry the mismatch
// marker, and derives a deterministic stored URL from the live capture.
type MockGateway struct {
	Latency        time.Duration
	MismatchMarker string
}

func NewMock() *MockGateway {
	return &MockGateway{MismatchMarker: "no-match"}
}

func (g *MockGateway) CompareFace(_ context.Context, liveURL, _ string) (CompareResult, error) {
	time.Sleep(g.Latency)
	return g.compare(liveURL, "faces")
}

func (g *MockGateway) CompareSignature(_ context.Context, liveURL, _ string) (CompareResult, error) {
	time.Sleep(g.Latency)
	return g.compare(liveURL, "signatures")
}

func (g *MockGateway) compare(liveURL, kind string) (CompareResult, error) {
	if strings.Contains(liveURL, g.MismatchMarker) {
		return CompareResult{Match: false, Confidence: 0.21}, nil
	}
	return CompareResult{
		Match:      true,
		Confidence: 0.97,
		StoredURL:  "https://vault.mock/" + kind + "/" + lastSegment(liveURL),
	}, nil
}

func lastSegment(url string) string {
	if i := strings.LastIndexByte(url, '/'); i >= 0 {
		return url[i+1:]
	}
	return url
}
