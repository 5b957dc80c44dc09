package validate

// TFN check weight tables. The legacy eight-digit form uses its own table,
// not a truncation of the nine-digit one.
var (
	tfnWeights9 = [9]int{1, 4, 3, 7, 5, 8, 6, 9, 10}
	tfnWeights8 = [8]int{10, 7, 8, 4, 6, 3, 5, 1}
)

// NormalizeTFN strips spaces and hyphens from a raw tax file number
func NormalizeTFN(raw string) string {
	return normalizeDigits(raw)
}

// ValidateTFN reports whether raw is a well-formed Australian Tax File Number
// and returns its normalized form. A TFN is 8 or 9 digits with no leading
// zero, and its weighted digit sum must be divisible by 11.
func ValidateTFN(raw string) (string, bool) {
	tfn := NormalizeTFN(raw)
	if !allDigits(tfn) || tfn[0] == '0' {
		return tfn, false
	}

	sum := 0
	switch len(tfn) {
	case 9:
		for i, r := range tfn {
			sum += int(r-'0') * tfnWeights9[i]
		}
	case 8:
		for i, r := range tfn {
			sum += int(r-'0') * tfnWeights8[i]
		}
	default:
		return tfn, false
	}
	return tfn, sum%11 == 0
}

// TFNLast4 returns the last four digits of a normalized TFN for audit display
func TFNLast4(tfn string) string {
	if len(tfn) < 4 {
		return tfn
	}
	return tfn[len(tfn)-4:]
}
