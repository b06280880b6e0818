// Package dedupe finds and merges probable duplicate candidates. Matching
// works on normalized signals so formatting differences between sources
// never hide a duplicate; merging is flag-based and never deletes.
package dedupe

import (
	"sort"
	"strings"
)

// PhonePrefixLen is how many leading digits two phones must share for the
// name-plus-phone-prefix signal.
const PhonePrefixLen = 6

// minPhoneDigits is the shortest digit string treated as a usable phone.
const minPhoneDigits = 7

// NormalizeEmail lowercases and trims an email address. Empty input stays
// empty.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone strips a phone number to its digits. Strings with fewer
// than seven digits are treated as unusable and normalize to "".
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteByte(byte(r))
		}
	}
	if b.Len() < minPhoneDigits {
		return ""
	}
	return b.String()
}

// PhonePrefix returns the leading digits used for prefix matching, "" when
// the phone is unusable.
func PhonePrefix(phone string) string {
	digits := NormalizePhone(phone)
	if len(digits) < PhonePrefixLen {
		return ""
	}
	return digits[:PhonePrefixLen]
}

// NameKey normalizes a first/last name pair into an order-insensitive
// token key, so "Ana María Silva" and "Silva, Ana Maria" style variations
// from different sources still collide.
func NameKey(first, last string) string {
	tokens := nameTokens(first, last)
	if len(tokens) == 0 {
		return ""
	}
	return strings.Join(tokens, " ")
}

func nameTokens(first, last string) []string {
	fields := append(strings.Fields(first), strings.Fields(last)...)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tokens = append(tokens, strings.ToLower(f))
	}
	sort.Strings(tokens)
	return tokens
}

// EqualFullName compares full names ignoring case and surrounding space.
func EqualFullName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
