package bankverify

import (
	"context"
	"strings"
	"time"

	id "onboard/pkg/domain"
)

// MockGateway verifies deterministically: penny-drop echoes the declared
// holder name unless the account number carries a configured mismatch marker,
// and cheque OCR recovers whatever the Cheques map holds for the image URL.
type MockGateway struct {
	Latency time.Duration
	// MismatchMarker account numbers containing this substring come back with
	// a different holder name, exercising the rejection path.
	MismatchMarker string
	// Cheques maps image URL to the recovered account data.
	Cheques map[string]ChequeResult
}

func NewMock() *MockGateway {
	return &MockGateway{
		MismatchMarker: "9999",
		Cheques:        make(map[string]ChequeResult),
	}
}

func (g *MockGateway) VerifyPennyDrop(_ context.Context, account Account) (PennyDropResult, error) {
	time.Sleep(g.Latency)
	if strings.Contains(account.Number, g.MismatchMarker) {
		return PennyDropResult{Verified: false, AccountName: "Someone Else"}, nil
	}
	return PennyDropResult{Verified: true, AccountName: account.HolderName}, nil
}

func (g *MockGateway) VerifyChequeImage(_ context.Context, imageURL string) (ChequeResult, error) {
	time.Sleep(g.Latency)
	if result, ok := g.Cheques[imageURL]; ok {
		return result, nil
	}
	return ChequeResult{AccountNumber: "000111222333", IFSC: id.IFSC("HDFC0000123")}, nil
}
