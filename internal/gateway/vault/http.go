package vault

import (
	"context"
	"time"

	"onboard/internal/gateway/httpclient"
)

// HTTPGateway talks to the hosted document vault.
type HTTPGateway struct {
	client *httpclient.Client
}

func NewHTTP(cfg httpclient.Config) *HTTPGateway {
	return &HTTPGateway{client: httpclient.New("vault", cfg)}
}

type grantResponse struct {
	DocID     string    `json:"doc_id"`
	Token     string    `json:"token"`
	ValidTill time.Time `json:"valid_till"`
}

func (g *HTTPGateway) CreateAccessRequest(ctx context.Context, customerName, taxID string) (AccessGrant, error) {
	var resp grantResponse
	err := g.client.Post(ctx, "/access-requests", map[string]string{
		"customer_name": customerName,
		"tax_id":        taxID,
	}, &resp)
	if err != nil {
		return AccessGrant{}, err
	}
	return AccessGrant{DocID: resp.DocID, Token: resp.Token, ValidTill: resp.ValidTill}, nil
}

func (g *HTTPGateway) RefreshAccessRequest(ctx context.Context, docID string) (string, time.Time, error) {
	var resp grantResponse
	err := g.client.Post(ctx, "/access-requests/"+docID+"/refresh", nil, &resp)
	if err != nil {
		return "", time.Time{}, err
	}
	return resp.Token, resp.ValidTill, nil
}

func (g *HTTPGateway) FetchIdentityDocuments(ctx context.Context, docID, token string) (Documents, error) {
	var resp struct {
		Proofs []struct {
			Kind     string `json:"kind"`
			TaxID    string `json:"tax_id"`
			Name     string `json:"name"`
			ImageURL string `json:"image_url"`
		} `json:"proofs"`
	}
	err := g.client.Post(ctx, "/documents/"+docID+"/fetch", map[string]string{"token": token}, &resp)
	if err != nil {
		return Documents{}, err
	}
	docs := Documents{Proofs: make([]IdentityProof, 0, len(resp.Proofs))}
	for _, p := range resp.Proofs {
		docs.Proofs = append(docs.Proofs, IdentityProof(p))
	}
	return docs, nil
}
