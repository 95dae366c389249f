package biometric

import (
	"context"

	"onboard/internal/gateway/httpclient"
)

// HTTPGateway compares captures through a hosted biometric vendor.
type HTTPGateway struct {
	client *httpclient.Client
}

func NewHTTP(cfg httpclient.Config) *HTTPGateway {
	return &HTTPGateway{client: httpclient.New("biometric", cfg)}
}

func (g *HTTPGateway) CompareFace(ctx context.Context, liveURL, referenceURL string) (CompareResult, error) {
	return g.compare(ctx, "/compare/face", liveURL, referenceURL)
}

func (g *HTTPGateway) CompareSignature(ctx context.Context, liveURL, referenceURL string) (CompareResult, error) {
	return g.compare(ctx, "/compare/signature", liveURL, referenceURL)
}

func (g *HTTPGateway) compare(ctx context.Context, path, liveURL, referenceURL string) (CompareResult, error) {
	var resp struct {
		Match      bool    `json:"match"`
		Confidence float64 `json:"confidence"`
		StoredURL  string  `json:"stored_url"`
	}
	err := g.client.Post(ctx, path, map[string]string{
		"live_url":      liveURL,
		"reference_url": referenceURL,
	}, &resp)
	if err != nil {
		return CompareResult{}, err
	}
	return CompareResult{Match: resp.Match, Confidence: resp.Confidence, StoredURL: resp.StoredURL}, nil
}
