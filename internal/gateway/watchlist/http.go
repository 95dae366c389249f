package watchlist

import (
	"context"

	"onboard/internal/gateway/httpclient"
	id "onboard/pkg/domain"
)

// HTTPGateway screens against a hosted AML vendor.
type HTTPGateway struct {
	client *httpclient.Client
}

func NewHTTP(cfg httpclient.Config) *HTTPGateway {
	return &HTTPGateway{client: httpclient.New("watchlist", cfg)}
}

func (g *HTTPGateway) Screen(ctx context.Context, taxID id.TaxID, name, dob string) (Result, error) {
	var resp struct {
		Hits []struct {
			List   string  `json:"list"`
			Name   string  `json:"name"`
			Score  float64 `json:"score"`
			Source string  `json:"source"`
		} `json:"hits"`
	}
	err := g.client.Post(ctx, "/screen", map[string]string{
		"tax_id":        taxID.String(),
		"name":          name,
		"date_of_birth": dob,
	}, &resp)
	if err != nil {
		return Result{}, err
	}
	result := Result{Hits: make([]Hit, 0, len(resp.Hits))}
	for _, h := range resp.Hits {
		result.Hits = append(result.Hits, Hit(h))
	}
	return result, nil
}
