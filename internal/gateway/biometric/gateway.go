// Package biometric defines the port for comparing live captures (selfie,
// signature) to reference documents. Only storage URLs travel through this
// API; raw bytes never reach the profile.
package biometric

import "context"

// CompareResult reports a match decision with vendor confidence.
type CompareResult struct {
	Match      bool
	Confidence float64
	// StoredURL is where the vendor parked the accepted capture.
	StoredURL string
}

type Gateway interface {
	CompareFace(ctx context.Context, liveURL, referenceURL string) (CompareResult, error)
	CompareSignature(ctx context.Context, liveURL, referenceURL string) (CompareResult, error)
}
