package fx

import (
	"fmt"
	"strings"
)

// Policy describes how conversions behave when a rate is unavailable.
type Policy struct {
	Fallback Fallback
}

// Fallback enumerates missing-rate behaviours.
type Fallback string

const (
	// FallbackStrict fails the conversion with a MissingRateError.
	FallbackStrict Fallback = "strict"
	// FallbackIdentity returns the input amount unconverted.
	FallbackIdentity Fallback = "identity"
)

// DefaultPolicy fails loudly on missing rates.
func DefaultPolicy() Policy {
	return Policy{Fallback: FallbackStrict}
}

// ParseFallback maps configuration values onto a Fallback.
func ParseFallback(value string) (Fallback, error) {
	switch Fallback(strings.ToLower(strings.TrimSpace(value))) {
	case "", FallbackStrict:
		return FallbackStrict, nil
	case FallbackIdentity:
		return FallbackIdentity, nil
	default:
		return "", fmt.Errorf("fx: unknown fallback %q", value)
	}
}
