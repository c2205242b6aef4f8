// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used when the caller does not supply one.
const DefaultRegion = "US"

// NormalizeE164 formats a phone number to E.164 using region for numbers without a
// country prefix. If parsing fails or the number is invalid, it returns the trimmed input.
func NormalizeE164(input, region string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}
	if region == "" {
		region = DefaultRegion
	}

	number, err := phonenumbers.Parse(trimmed, region)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// Candidates returns the distinct lookup keys for a receiving line number:
// the E.164 form first, then the raw trimmed input.
func Candidates(input, region string) []string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil
	}
	normalized := NormalizeE164(trimmed, region)
	if normalized == trimmed {
		return []string{trimmed}
	}
	return []string{normalized, trimmed}
}
