package verification

import (
	"context"
	"time"

	"onboard/internal/gateway/httpclient"
	id "onboard/pkg/domain"
)

// HTTPGateway talks to a real vendor over its REST API.
type HTTPGateway struct {
	client *httpclient.Client
	system id.SystemType
}

// NewHTTP builds a vendor gateway for one external system.
func NewHTTP(system id.SystemType, cfg httpclient.Config) *HTTPGateway {
	return &HTTPGateway{
		client: httpclient.New("verification/"+system.String(), cfg),
		system: system,
	}
}

func (g *HTTPGateway) System() id.SystemType {
	return g.system
}

type identityRequest struct {
	TaxID       string `json:"tax_id"`
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	DateOfBirth string `json:"date_of_birth"`
}

type identityResponse struct {
	ForeignID    string    `json:"id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenExpiry  time.Time `json:"expires_at"`
}

func (g *HTTPGateway) CreateIdentity(ctx context.Context, fields IdentityFields) (Identity, error) {
	var resp identityResponse
	err := g.client.Post(ctx, "/identities", identityRequest{
		TaxID:       fields.TaxID.String(),
		FullName:    fields.FullName,
		Email:       fields.Email,
		Phone:       fields.Phone,
		DateOfBirth: fields.DateOfBirth,
	}, &resp)
	if err != nil {
		return Identity{}, err
	}
	return Identity{
		ForeignID:    resp.ForeignID,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenExpiry:  resp.TokenExpiry,
	}, nil
}

func (g *HTTPGateway) UpdateIdentity(ctx context.Context, foreignID string, fields IdentityFields) error {
	return g.client.Post(ctx, "/identities/"+foreignID, identityRequest{
		TaxID:       fields.TaxID.String(),
		FullName:    fields.FullName,
		Email:       fields.Email,
		Phone:       fields.Phone,
		DateOfBirth: fields.DateOfBirth,
	}, nil)
}

type identityStatusResponse struct {
	Status      string `json:"status"`
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	DateOfBirth string `json:"date_of_birth"`
}

func (g *HTTPGateway) GetIdentity(ctx context.Context, creds Credentials) (IdentityStatus, error) {
	var resp identityStatusResponse
	if err := g.client.Get(ctx, "/identities/"+creds.ForeignID, &resp); err != nil {
		return IdentityStatus{}, err
	}
	return IdentityStatus{
		VendorStatus: resp.Status,
		FullName:     resp.FullName,
		Email:        resp.Email,
		Phone:        resp.Phone,
		DateOfBirth:  resp.DateOfBirth,
	}, nil
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	Expiry      time.Time `json:"expires_at"`
}

func (g *HTTPGateway) GetAccessToken(ctx context.Context, refreshToken string) (Token, error) {
	var resp tokenResponse
	err := g.client.Post(ctx, "/tokens", map[string]string{"refresh_token": refreshToken}, &resp)
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: resp.AccessToken, Expiry: resp.Expiry}, nil
}

func (g *HTTPGateway) GetKYCID(ctx context.Context, creds Credentials) (string, error) {
	var resp struct {
		KYCID string `json:"kyc_id"`
	}
	if err := g.client.Get(ctx, "/identities/"+creds.ForeignID+"/kyc-id", &resp); err != nil {
		return "", err
	}
	return resp.KYCID, nil
}
