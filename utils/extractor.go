package utils

import (
	"regexp"
	"strings"

	"github.com/invoiceguard/gst-invoice-verification/dto"
)

// Label/value patterns per field, tried in priority order; the first
// pattern that matches wins. A field with no match stays absent, which is
// not an error.

var gstinPatterns = compileAll(
	`(?i)GSTIN\s*(?:/\s*UIN)?\s*(?:of\s*Supplier)?\s*[:\-]?\s*([0-9A-Z]{15})`,
	`(?i)GST\s*(?:Reg(?:istration)?\s*)?(?:No\.?|Number)\s*[:\-]?\s*([0-9A-Z]{15})`,
)

var invoiceNoPatterns = compileAll(
	`(?i)Invoice\s*(?:No\.?|Number|#)\s*[:\-]?\s*([A-Za-z0-9\-/]{1,30})`,
	`(?i)Inv\.?\s*(?:No\.?|#)\s*[:\-]?\s*([A-Za-z0-9\-/]{1,30})`,
	`(?i)Bill\s*No\.?\s*[:\-]?\s*([A-Za-z0-9\-/]{1,30})`,
)

var invoiceDatePatterns = compileAll(
	`(?i)Invoice\s*Date\s*[:\-]?\s*([0-9]{4}-[0-9]{2}-[0-9]{2})`,
	`(?i)Invoice\s*Date\s*[:\-]?\s*([0-9]{1,2}[^\n]{0,12}[0-9]{2,4})`,
	`(?i)Dated?\s*[:\-]\s*([0-9]{4}-[0-9]{2}-[0-9]{2})`,
	`(?i)Dated?\s*[:\-]\s*([0-9]{1,2}[^\n]{0,12}[0-9]{2,4})`,
)

var placeOfSupplyPatterns = compileAll(
	`(?i)Place\s*of\s*Supply\s*[:\-]?\s*([^\n]+)`,
)

var hsnPatterns = compileAll(
	`(?i)HSN\s*(?:/\s*SAC)?\s*(?:Code)?\s*[/:\-]?\s*([0-9]{4,8})`,
	`(?i)SAC\s*(?:Code)?\s*[/:\-]?\s*([0-9]{4,8})`,
)

const currencyToken = `((?:₹|Rs\.?|INR)?\s*[0-9][0-9,]*(?:\.[0-9]+)?)`

var taxableValuePatterns = compileAll(
	`(?i)Taxable\s*(?:Value|Amount)\s*[:\-]?\s*`+currencyToken,
	`(?i)Sub\s*[\-]?Total\s*[:\-]?\s*`+currencyToken,
)

// Tax component patterns capture the rate and the amount together,
// e.g. "CGST 2.5% 3.33" or "SGST @ 9% : ₹1,350.00".
var cgstPatterns = compileAll(`(?i)CGST\s*(?:@\s*)?([0-9]+(?:\.[0-9]+)?)\s*%\s*[:\-]?\s*` + currencyToken)
var sgstPatterns = compileAll(`(?i)SGST\s*(?:@\s*)?([0-9]+(?:\.[0-9]+)?)\s*%\s*[:\-]?\s*` + currencyToken)
var igstPatterns = compileAll(`(?i)IGST\s*(?:@\s*)?([0-9]+(?:\.[0-9]+)?)\s*%\s*[:\-]?\s*` + currencyToken)

var totalPattern = regexp.MustCompile(`(?i)(?:Grand\s*)?Total\s*(?:Amount|Invoice\s*Value)?\s*[:\-]?\s*` + currencyToken)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

func firstMatch(text string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func firstRateAmount(text string, patterns []*regexp.Regexp) (rate, amount string) {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); len(m) > 2 {
			return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
		}
	}
	return "", ""
}

// ExtractInvoiceFields pulls named fields from a raw text blob already
// extracted from a document. Pure and idempotent: identical text yields
// identical fields, and the input is never mutated.
func ExtractInvoiceFields(text string) dto.InvoiceFields {
	fields := dto.InvoiceFields{
		TaxableValue: dto.AmountField{State: dto.FieldAbsent},
		CGSTRate:     dto.AmountField{State: dto.FieldAbsent},
		CGSTAmount:   dto.AmountField{State: dto.FieldAbsent},
		SGSTRate:     dto.AmountField{State: dto.FieldAbsent},
		SGSTAmount:   dto.AmountField{State: dto.FieldAbsent},
		IGSTRate:     dto.AmountField{State: dto.FieldAbsent},
		IGSTAmount:   dto.AmountField{State: dto.FieldAbsent},
		Total:        dto.AmountField{State: dto.FieldAbsent},
	}

	if gstin := firstMatch(text, gstinPatterns); gstin != "" {
		fields.VendorGSTIN = strings.ToUpper(gstin)
	}
	fields.InvoiceNo = firstMatch(text, invoiceNoPatterns)
	fields.InvoiceDate = firstMatch(text, invoiceDatePatterns)
	fields.PlaceOfSupply = firstMatch(text, placeOfSupplyPatterns)
	fields.HSN = firstMatch(text, hsnPatterns)

	if raw := firstMatch(text, taxableValuePatterns); raw != "" {
		fields.TaxableValue = ParseAmountToken(raw)
	}

	if rate, amount := firstRateAmount(text, cgstPatterns); rate != "" {
		fields.CGSTRate = ParsePercentToken(rate)
		fields.CGSTAmount = ParseAmountToken(amount)
	}
	if rate, amount := firstRateAmount(text, sgstPatterns); rate != "" {
		fields.SGSTRate = ParsePercentToken(rate)
		fields.SGSTAmount = ParseAmountToken(amount)
	}
	if rate, amount := firstRateAmount(text, igstPatterns); rate != "" {
		fields.IGSTRate = ParsePercentToken(rate)
		fields.IGSTAmount = ParseAmountToken(amount)
	}

	// Invoices usually repeat "Total" per line item; the grand total is
	// the last occurrence.
	if matches := totalPattern.FindAllStringSubmatch(text, -1); len(matches) > 0 {
		fields.Total = ParseAmountToken(matches[len(matches)-1][1])
	}

	return fields
}
