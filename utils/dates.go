package utils

import (
	"fmt"
	"strings"
	"time"
)

// Accepted invoice date layouts, tried in order; first match wins.
var dateLayouts = []string{
	"02 Jan 2006",
	"2 Jan 2006",
	"02 January 2006",
	"2 January 2006",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"2006-01-02",
	"02.01.2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// ParseInvoiceDate parses a free-text invoice date against the accepted
// layouts. Day-first forms are assumed, matching Indian invoices.
func ParseInvoiceDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("missing date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format %q", raw)
}

// FinancialYear labels the Indian financial year (April 1 to March 31)
// containing d, e.g. 15 Jan 2025 falls in "2024-25" and 15 Apr 2025 in
// "2025-26".
func FinancialYear(d time.Time) string {
	year := d.Year()
	if d.Month() < time.April {
		return fmt.Sprintf("%d-%02d", year-1, year%100)
	}
	return fmt.Sprintf("%d-%02d", year, (year+1)%100)
}
