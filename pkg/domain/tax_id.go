package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
)

// TaxID is the government tax identifier (PAN) used as the natural dedup key
// for a customer. It is validated at parse time so downstream code can treat
// any non-empty TaxID as well formed.
type TaxID string

var taxIDPattern = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)

// ParseTaxID validates and returns a TaxID.
func ParseTaxID(s string) (TaxID, error) {
	if !taxIDPattern.MatchString(s) {
		return "", fmt.Errorf("invalid tax identifier: %q", s)
	}
	return TaxID(s), nil
}

func (t TaxID) String() string {
	return string(t)
}

// IsNil returns true when the tax identifier is empty.
func (t TaxID) IsNil() bool {
	return t == ""
}

// Hash returns a SHA-256 hex digest of the identifier. Logs and audit events
// carry the hash, never the raw value.
func (t TaxID) Hash() string {
	sum := sha256.Sum256([]byte(t))
	return hex.EncodeToString(sum[:])
}
