// Package phone repairs Brazilian phone numbers into the canonical
// 55 + area code + 9 + subscriber form used to open a chat.
package phone

import (
	"strings"
)

const (
	// CountryCode is prepended when the number carries only area code and subscriber.
	CountryCode = "55"
	// CanonicalLength is the digit count of 55 + 2-digit area + 9 + 8-digit subscriber.
	CanonicalLength = 13

	mobilePrefix = "9"
)

// Digits strips everything except 0-9. A trailing ".0" left behind by
// spreadsheet exports that stored the number as a float is dropped first.
func Digits(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSuffix(raw, ".0")

	result := strings.Builder{}
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// Normalize repairs raw and reports whether the result is in canonical form.
// Numbers too short to repair (8 or 9 digits, no area code) and unexpected
// lengths come back as bare digits with false; the send is likely to fail.
//
// An 11-digit number starting with 55 is read as country code + area + legacy
// subscriber and only gets the 9 inserted, so it stays one digit short of
// canonical. A real area-code-first number in area 55 cannot be told apart
// from the digits alone.
func Normalize(raw string) (string, bool) {
	d := Digits(raw)

	var out string
	switch len(d) {
	case 13:
		out = d
	case 12:
		out = insertMobilePrefix(d)
	case 11:
		if strings.HasPrefix(d, CountryCode) {
			out = insertMobilePrefix(d)
		} else {
			out = CountryCode + d
		}
	case 10:
		out = insertMobilePrefix(CountryCode + d)
	default:
		out = d
	}
	return out, IsCanonical(out)
}

// Canonical is Normalize without the repair flag, for callers that only need a
// stable key (ledger lookups, coverage matching).
func Canonical(raw string) string {
	n, _ := Normalize(raw)
	return n
}

// IsCanonical reports whether d is already in the 13-digit 55… form.
func IsCanonical(d string) bool {
	return len(d) == CanonicalLength && strings.HasPrefix(d, CountryCode) && d == Digits(d)
}

// insertMobilePrefix puts the 9 right after the 2-digit area code that follows 55.
func insertMobilePrefix(d string) string {
	const at = len(CountryCode) + 2
	return d[:at] + mobilePrefix + d[at:]
}
