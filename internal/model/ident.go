package model

import (
	"fmt"
	"regexp"

	"golang.org/x/text/unicode/norm"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// NormalizeIdent NFC-normalizes a table or column name and validates it.
func NormalizeIdent(name string) (string, error) {
	n := norm.NFC.String(name)
	if !identPattern.MatchString(n) {
		return "", fmt.Errorf("invalid identifier %q", name)
	}
	return n, nil
}

func normalizeAll(names []string) ([]string, error) {
	out := make([]string, len(names))
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		n, err := NormalizeIdent(name)
		if err != nil {
			return nil, err
		}
		if seen[n] {
			return nil, fmt.Errorf("duplicate column %q", n)
		}
		seen[n] = true
		out[i] = n
	}
	return out, nil
}
