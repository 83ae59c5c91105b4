package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInvoiceDateFormats(t *testing.T) {
	want := time.Date(2025, time.June, 25, 0, 0, 0, 0, time.UTC)

	for _, raw := range []string{
		"25 Jun 2025",
		"25 June 2025",
		"25/06/2025",
		"25-06-2025",
		"2025-06-25",
		"25.06.2025",
		"Jun 25, 2025",
	} {
		got, err := ParseInvoiceDate(raw)
		require.NoError(t, err, "parsing %q", raw)
		assert.True(t, want.Equal(got), "parsing %q: got %v", raw, got)
	}
}

func TestParseInvoiceDateUnparseable(t *testing.T) {
	for _, raw := range []string{"", "someday", "32/13/2025", "2025"} {
		_, err := ParseInvoiceDate(raw)
		assert.Error(t, err, "expected %q to fail", raw)
	}
}

func TestFinancialYear(t *testing.T) {
	tests := []struct {
		date string
		fy   string
	}{
		{"15 Jan 2025", "2024-25"},
		{"15 Apr 2025", "2025-26"},
		{"31 Mar 2025", "2024-25"},
		{"1 Apr 2025", "2025-26"},
		{"25 Jun 2025", "2025-26"},
		{"31 Dec 2024", "2024-25"},
		{"29 Feb 2024", "2023-24"},
	}

	for _, tt := range tests {
		d, err := ParseInvoiceDate(tt.date)
		require.NoError(t, err)
		assert.Equal(t, tt.fy, FinancialYear(d), "FY for %s", tt.date)
	}
}
