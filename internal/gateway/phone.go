package gateway

import "strings"

// countryCode is the Tanzanian calling code prefix expected by both vendors.
const countryCode = "255"

// NormalizePhone sanitizes a payer account string to digits and rewrites it
// into international form: a leading "0" becomes the country code, a bare
// local number gets the country code prepended, and numbers already in
// international form pass through unchanged.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	clean := b.String()

	if strings.HasPrefix(clean, countryCode) {
		return clean
	}
	if strings.HasPrefix(clean, "0") {
		return countryCode + clean[1:]
	}
	return countryCode + clean
}

// ProviderFromPhone guesses the mobile-money network from the local prefix.
// Returns "" when the prefix is unrecognized.
func ProviderFromPhone(phone string) string {
	local := NormalizePhone(phone)
	if strings.HasPrefix(local, countryCode) {
		local = "0" + local[len(countryCode):]
	}
	if len(local) < 3 {
		return ""
	}
	switch local[:3] {
	case "071", "065", "067":
		return "Tigo"
	case "075", "076", "074":
		return "Vodacom"
	case "078", "068", "069":
		return "Airtel"
	case "062":
		return "Halotel"
	case "073":
		return "TTCL"
	}
	return ""
}
