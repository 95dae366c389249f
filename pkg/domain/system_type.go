package domain

import "fmt"

// SystemType identifies one of the two external verification systems a
// customer connection can belong to.
type SystemType string

const (
	// SystemSelf is the direct (self-service) KYC vendor.
	SystemSelf SystemType = "self"

	// SystemAssisted is the operator-assisted KYC vendor.
	SystemAssisted SystemType = "assisted"
)

var knownSystems = map[SystemType]struct{}{
	SystemSelf:     {},
	SystemAssisted: {},
}

// ParseSystemType validates and returns a SystemType.
func ParseSystemType(s string) (SystemType, error) {
	st := SystemType(s)
	if _, ok := knownSystems[st]; !ok {
		return "", fmt.Errorf("unknown system type: %q", s)
	}
	return st, nil
}

func (s SystemType) String() string {
	return string(s)
}

// AllSystems returns the systems in a stable order. Resolution and sync
// iterate this slice instead of hand-duplicating per-system code paths.
func AllSystems() []SystemType {
	return []SystemType{SystemSelf, SystemAssisted}
}
