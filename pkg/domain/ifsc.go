package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// IFSC is a bank branch routing code. Validated at parse time.
type IFSC string

var ifscPattern = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)

// ParseIFSC validates and returns an IFSC, normalising case.
func ParseIFSC(s string) (IFSC, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if !ifscPattern.MatchString(s) {
		return "", fmt.Errorf("invalid IFSC: %q", s)
	}
	return IFSC(s), nil
}

func (i IFSC) String() string {
	return string(i)
}
