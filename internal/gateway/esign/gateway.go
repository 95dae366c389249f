// Package esign defines the digital-signature vendor port used to generate
// and retrieve the account-opening document after final submission.
package esign

import "context"

// DocumentFields is the data rendered into the account-opening document.
type DocumentFields struct {
	CustomerName string
	TaxID        string
	Email        string
	OperatorID   string
}

type Gateway interface {
	CreateDocument(ctx context.Context, fields DocumentFields) (documentID string, err error)
	FetchSignedDocument(ctx context.Context, documentID string) ([]byte, error)
}
