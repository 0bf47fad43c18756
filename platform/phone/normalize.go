// Package phone provides phone number utilities: the digit-only canonical
// form used to link leads to a client, and E.164 display formatting.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strconv"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"
)

const (
	defaultRegion = "IN"

	// MinMatchableDigits is the shortest canonical form that can identify a client.
	MinMatchableDigits = 10

	clientIDPrefix = "client_"
	countryCode    = "91"
)

// now is swapped in tests.
var now = time.Now

// Normalize strips every non-digit, then drops a leading country code from a
// 12 digit number and a leading trunk zero from an 11 digit number.
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 12 && strings.HasPrefix(digits, countryCode):
		digits = digits[2:]
	case len(digits) == 11 && strings.HasPrefix(digits, "0"):
		digits = digits[1:]
	}
	return digits
}

// IsMatchable reports whether the phone normalizes to a usable client key.
func IsMatchable(input string) bool {
	return len(Normalize(input)) >= MinMatchableDigits
}

// Match reports whether two phones identify the same client.
func Match(a, b string) bool {
	na := Normalize(a)
	return len(na) >= MinMatchableDigits && na == Normalize(b)
}

// ClientID derives the client key for a phone. Phones too short to match
// get a timestamp-based key that can never collide with a real client.
func ClientID(input string) string {
	normalized := Normalize(input)
	if len(normalized) < MinMatchableDigits {
		return clientIDPrefix + strconv.FormatInt(now().UnixNano(), 10)
	}
	return clientIDPrefix + normalized
}

// FormatE164 formats a phone number to E.164 for display. If parsing fails,
// it returns the trimmed input. The result never feeds client identity.
func FormatE164(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}
