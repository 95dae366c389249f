package esign

import (
	"context"
	"encoding/base64"

	"onboard/internal/gateway/httpclient"
)

// HTTPGateway generates documents through a hosted e-sign vendor.
type HTTPGateway struct {
	client *httpclient.Client
}

func NewHTTP(cfg httpclient.Config) *HTTPGateway {
	return &HTTPGateway{client: httpclient.New("esign", cfg)}
}

func (g *HTTPGateway) CreateDocument(ctx context.Context, fields DocumentFields) (string, error) {
	var resp struct {
		DocumentID string `json:"document_id"`
	}
	err := g.client.Post(ctx, "/documents", map[string]string{
		"customer_name": fields.CustomerName,
		"tax_id":        fields.TaxID,
		"email":         fields.Email,
		"operator_id":   fields.OperatorID,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.DocumentID, nil
}

func (g *HTTPGateway) FetchSignedDocument(ctx context.Context, documentID string) ([]byte, error) {
	var resp struct {
		Content string `json:"content"` // base64
	}
	if err := g.client.Get(ctx, "/documents/"+documentID, &resp); err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(resp.Content)
}
