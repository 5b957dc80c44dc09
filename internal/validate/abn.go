// Package validate holds pure checksum validators for government-issued
// identifiers. They run before any provider adapter is invoked so malformed
// input never reaches a billable external verifier.
package validate

import "strings"

// abnWeights are the published ABN check weights, leading digit first.
var abnWeights = [11]int{10, 1, 3, 5, 7, 9, 11, 13, 15, 17, 19}

// NormalizeABN strips spaces and hyphens from a raw business number
func NormalizeABN(raw string) string {
	return normalizeDigits(raw)
}

// ValidateABN reports whether raw is a well-formed Australian Business Number
// and returns its normalized form. An ABN is 11 digits whose weighted digit
// sum is congruent to 10 modulo 89.
func ValidateABN(raw string) (string, bool) {
	abn := NormalizeABN(raw)
	if len(abn) != 11 || !allDigits(abn) {
		return abn, false
	}

	sum := 0
	for i, r := range abn {
		sum += int(r-'0') * abnWeights[i]
	}
	return abn, sum%89 == 10
}

func normalizeDigits(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r == ' ' || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
