package utils

import (
	"regexp"
	"strings"

	"github.com/invoiceguard/gst-invoice-verification/dto"
	"github.com/shopspring/decimal"
)

// Tolerance policy shared by every arithmetic check: a declared amount is
// accepted when it is within max(absEpsilon, relativePct * expected) of
// the expected value.
const (
	AmountAbsEpsilon  = 0.05
	AmountRelativePct = 0.05
)

var currencyMarkers = regexp.MustCompile(`(?i)₹|rs\.?|inr`)
var numericToken = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

// ParseAmountToken normalizes a currency token (strips currency symbols
// and thousands separators) and parses it as a decimal. An empty token is
// Absent; a token that survives normalization but does not parse is
// Malformed, never silently zero.
func ParseAmountToken(raw string) dto.AmountField {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return dto.AmountField{State: dto.FieldAbsent}
	}

	s := currencyMarkers.ReplaceAllString(trimmed, "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if !numericToken.MatchString(s) {
		return dto.AmountField{Raw: trimmed, State: dto.FieldMalformed}
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return dto.AmountField{Raw: trimmed, State: dto.FieldMalformed}
	}
	return dto.AmountField{Raw: trimmed, Value: v, State: dto.FieldPresent}
}

// ParsePercentToken parses a percentage token, tolerating a trailing '%'.
func ParsePercentToken(raw string) dto.AmountField {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return dto.AmountField{State: dto.FieldAbsent}
	}
	return ParseAmountToken(strings.TrimSuffix(trimmed, "%"))
}

// ApproxEqual reports whether actual is within tolerance of expected,
// where tolerance = max(absEpsilon, relativePct * |expected|).
func ApproxEqual(expected, actual decimal.Decimal, relativePct, absEpsilon float64) bool {
	tolerance := expected.Abs().Mul(decimal.NewFromFloat(relativePct))
	eps := decimal.NewFromFloat(absEpsilon)
	if tolerance.LessThan(eps) {
		tolerance = eps
	}
	return expected.Sub(actual).Abs().LessThanOrEqual(tolerance)
}

// WithinTolerance applies the package tolerance policy.
func WithinTolerance(expected, actual decimal.Decimal) bool {
	return ApproxEqual(expected, actual, AmountRelativePct, AmountAbsEpsilon)
}
