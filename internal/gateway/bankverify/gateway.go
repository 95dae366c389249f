// Package bankverify defines the account-ownership verification port:
// penny-drop checks against a live account and OCR extraction from a
// cancelled cheque image.
package bankverify

import (
	"context"

	id "onboard/pkg/domain"
)

// Account identifies the bank account under verification.
type Account struct {
	Number     string
	IFSC       id.IFSC
	HolderName string
}

// PennyDropResult reports whether the account resolved and the holder name
// the bank returned for it.
type PennyDropResult struct {
	Verified    bool
	AccountName string
}

// ChequeResult is the account data recovered from a cancelled cheque image.
type ChequeResult struct {
	AccountNumber string
	IFSC          id.IFSC
}

type Gateway interface {
	VerifyPennyDrop(ctx context.Context, account Account) (PennyDropResult, error)
	VerifyChequeImage(ctx context.Context, imageURL string) (ChequeResult, error)
}
