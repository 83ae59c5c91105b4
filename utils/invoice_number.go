package utils

import (
	"fmt"
	"strings"
)

const maxInvoiceNoLength = 16

// InvoiceNumberValidation is the Rule 46 outcome for an invoice number.
// Normalized is always populated so the duplicate key can be built even
// for a non-compliant number.
type InvoiceNumberValidation struct {
	Normalized string
	Valid      bool
	Errors     []string
}

// ValidateInvoiceNumber checks Rule 46 compliance: at most 16 characters,
// drawn from letters, digits, '-' and '/'. Each rule is reported
// independently.
func ValidateInvoiceNumber(raw string) InvoiceNumberValidation {
	v := InvoiceNumberValidation{Normalized: NormalizeInvoiceNumber(raw)}
	trimmed := strings.TrimSpace(raw)

	if trimmed == "" {
		v.Errors = append(v.Errors, "missing invoice number")
		return v
	}

	if len(trimmed) > maxInvoiceNoLength {
		v.Errors = append(v.Errors, fmt.Sprintf("invoice number exceeds %d characters (got %d)", maxInvoiceNoLength, len(trimmed)))
	}

	for _, r := range trimmed {
		if !isInvoiceNoRune(r) {
			v.Errors = append(v.Errors, fmt.Sprintf("invalid character %q; only letters, digits, '-' and '/' are allowed", r))
			break
		}
	}

	v.Valid = len(v.Errors) == 0
	return v
}

// NormalizeInvoiceNumber produces the duplicate-key form of an invoice
// number: trimmed and uppercased. Idempotent, never shown to the user.
func NormalizeInvoiceNumber(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func isInvoiceNoRune(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case r == '-' || r == '/':
		return true
	}
	return false
}
