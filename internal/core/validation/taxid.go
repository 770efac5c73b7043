package validation

import (
	"regexp"
	"strings"
)

var (
	taxIDPattern  = regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`)
	digitsPattern = regexp.MustCompile(`^[0-9]+$`)
)

// Bounds for the banking fields, inclusive.
const (
	RoutingMinLen = 9
	RoutingMaxLen = 12
	AccountMinLen = 5
	AccountMaxLen = 17
)

// FormatTaxID reformats raw keyboard input into the 3-2-4 grouping as it is
// typed. Non-digits are dropped and at most 9 digits are kept.
func FormatTaxID(input string) string {
	digits := make([]byte, 0, 9)
	for i := 0; i < len(input) && len(digits) < 9; i++ {
		if c := input[i]; c >= '0' && c <= '9' {
			digits = append(digits, c)
		}
	}

	var b strings.Builder
	for i, d := range digits {
		if i == 3 || i == 5 {
			b.WriteByte('-')
		}
		b.WriteByte(d)
	}
	return b.String()
}

// ValidTaxID reports whether s is a complete 3-2-4 tax ID.
func ValidTaxID(s string) bool { return taxIDPattern.MatchString(s) }

// ValidRoutingNumber reports whether s is 9 to 12 digits.
func ValidRoutingNumber(s string) bool {
	return digitsPattern.MatchString(s) && len(s) >= RoutingMinLen && len(s) <= RoutingMaxLen
}

// ValidAccountNumber reports whether s is 5 to 17 digits.
func ValidAccountNumber(s string) bool {
	return digitsPattern.MatchString(s) && len(s) >= AccountMinLen && len(s) <= AccountMaxLen
}
