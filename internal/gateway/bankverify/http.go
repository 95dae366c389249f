package bankverify

import (
	"context"

	"onboard/internal/gateway/httpclient"
	id "onboard/pkg/domain"
)

// HTTPGateway verifies accounts through a hosted verification vendor.
type HTTPGateway struct {
	client *httpclient.Client
}

func NewHTTP(cfg httpclient.Config) *HTTPGateway {
	return &HTTPGateway{client: httpclient.New("bankverify", cfg)}
}

func (g *HTTPGateway) VerifyPennyDrop(ctx context.Context, account Account) (PennyDropResult, error) {
	var resp struct {
		Verified    bool   `json:"verified"`
		AccountName string `json:"account_name"`
	}
	err := g.client.Post(ctx, "/penny-drop", map[string]string{
		"account_number": account.Number,
		"ifsc":           account.IFSC.String(),
		"holder_name":    account.HolderName,
	}, &resp)
	if err != nil {
		return PennyDropResult{}, err
	}
	return PennyDropResult{Verified: resp.Verified, AccountName: resp.AccountName}, nil
}

func (g *HTTPGateway) VerifyChequeImage(ctx context.Context, imageURL string) (ChequeResult, error) {
	var resp struct {
		AccountNumber string `json:"account_number"`
		IFSC          string `json:"ifsc"`
	}
	err := g.client.Post(ctx, "/cheque-ocr", map[string]string{"image_url": imageURL}, &resp)
	if err != nil {
		return ChequeResult{}, err
	}
	ifsc, err := id.ParseIFSC(resp.IFSC)
	if err != nil {
		return ChequeResult{}, err
	}
	return ChequeResult{AccountNumber: resp.AccountNumber, IFSC: ifsc}, nil
}
