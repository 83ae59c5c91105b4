package service

import (
	"context"
	"testing"

	"github.com/invoiceguard/gst-invoice-verification/config"
	"github.com/invoiceguard/gst-invoice-verification/db"
	"github.com/invoiceguard/gst-invoice-verification/dto"
	"github.com/invoiceguard/gst-invoice-verification/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*VerificationService, repository.InvoiceRecordRepository, *gorm.DB) {
	t.Helper()
	testDB, err := db.SetupTestDB(&repository.InvoiceRecord{})
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	repo := repository.NewInvoiceRecordRepository(testDB)
	policy := config.DefaultScoringPolicy()
	return NewVerificationService(nil, repo, &policy), repo, testDB
}

func cleanRequest() *dto.VerifyJSONRequest {
	return &dto.VerifyJSONRequest{
		VendorGSTIN:   "09AABCU6223H2ZB",
		InvoiceNo:     "GDDAIJEB25001819",
		InvoiceDate:   "25 Jun 2025",
		PlaceOfSupply: "Uttar Pradesh",
		HSN:           "8471",
		TaxableValue:  "133.29",
		CGSTRate:      "2.5",
		CGSTAmount:    "3.33",
		SGSTRate:      "2.5",
		SGSTAmount:    "3.33",
		Total:         "139.95",
	}
}

func findCheck(t *testing.T, result *dto.VerificationResult, name string) dto.Check {
	t.Helper()
	for _, c := range result.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %q not found in result", name)
	return dto.Check{}
}

func TestVerifyFieldsAllPass(t *testing.T) {
	svc, _, _ := newTestService(t)

	fields := FieldsFromRequest(cleanRequest())
	result, err := svc.VerifyFields(context.Background(), fields, true)
	require.NoError(t, err)

	assert.Equal(t, 100, result.Score)
	assert.Equal(t, dto.VerdictPass, result.Verdict)
	for _, c := range result.Checks {
		assert.Equal(t, dto.StatusPass, c.Status, "check %q", c.Name)
	}

	assert.Equal(t, dto.StatusPass, findCheck(t, result, "GSTIN Checksum").Status)
	assert.Equal(t, dto.StatusPass, findCheck(t, result, "Total Reconciliation").Status)
	assert.Equal(t, "09AABCU6223H2ZB", result.Extracted["vendor_gstin"])
}

func TestVerifyFieldsArithmeticMismatch(t *testing.T) {
	svc, _, _ := newTestService(t)

	req := cleanRequest()
	req.CGSTAmount = "30.00"
	result, err := svc.VerifyFields(context.Background(), FieldsFromRequest(req), false)
	require.NoError(t, err)

	assert.Equal(t, dto.StatusFail, findCheck(t, result, "CGST Amount").Status)
	// 30 points lost for the arithmetic category as a whole.
	assert.Equal(t, 70, result.Score)
	assert.Equal(t, dto.VerdictReview, result.Verdict)
}

func TestVerifyFieldsChecksumMismatch(t *testing.T) {
	svc, _, _ := newTestService(t)

	req := cleanRequest()
	req.VendorGSTIN = "09AABCU6223H2ZA"
	result, err := svc.VerifyFields(context.Background(), FieldsFromRequest(req), false)
	require.NoError(t, err)

	check := findCheck(t, result, "GSTIN Checksum")
	assert.Equal(t, dto.StatusFail, check.Status)
	assert.Contains(t, check.Message, `expected "B"`)

	// Structure still passes but the category earns nothing.
	assert.Equal(t, dto.StatusPass, findCheck(t, result, "GSTIN Structure").Status)
	assert.Equal(t, 75, result.Score)
	assert.Equal(t, dto.VerdictReview, result.Verdict)
}

func TestVerifyFieldsDuplicateCapsVerdict(t *testing.T) {
	svc, repo, _ := newTestService(t)

	first, err := svc.VerifyFields(context.Background(), FieldsFromRequest(cleanRequest()), true)
	require.NoError(t, err)
	require.Equal(t, dto.VerdictPass, first.Verdict)

	second, err := svc.VerifyFields(context.Background(), FieldsFromRequest(cleanRequest()), true)
	require.NoError(t, err)

	assert.Equal(t, dto.StatusFail, findCheck(t, second, "Duplicate Check").Status)
	assert.Equal(t, 90, second.Score)
	assert.Equal(t, dto.VerdictReview, second.Verdict)

	// Without capping the same score clears the pass threshold.
	uncapped := config.DefaultScoringPolicy()
	uncapped.CapOnCriticalFail = false
	third, err := NewVerificationService(nil, repo, &uncapped).
		VerifyFields(context.Background(), FieldsFromRequest(cleanRequest()), true)
	require.NoError(t, err)
	assert.Equal(t, 90, third.Score)
	assert.Equal(t, dto.VerdictPass, third.Verdict)
}

func TestVerifyFieldsLookupOnlyNeverRecords(t *testing.T) {
	svc, _, testDB := newTestService(t)

	for i := 0; i < 2; i++ {
		result, err := svc.VerifyFields(context.Background(), FieldsFromRequest(cleanRequest()), false)
		require.NoError(t, err)
		assert.Equal(t, dto.StatusPass, findCheck(t, result, "Duplicate Check").Status)
		assert.Equal(t, dto.VerdictPass, result.Verdict)
	}

	var count int64
	require.NoError(t, testDB.Model(&repository.InvoiceRecord{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestVerifyFieldsPriorRecordWarnsOnLookup(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.VerifyFields(context.Background(), FieldsFromRequest(cleanRequest()), true)
	require.NoError(t, err)

	result, err := svc.VerifyFields(context.Background(), FieldsFromRequest(cleanRequest()), false)
	require.NoError(t, err)

	check := findCheck(t, result, "Duplicate Check")
	assert.Equal(t, dto.StatusWarn, check.Status)
	// WARN is not a failure: half weight, no cap.
	assert.Equal(t, 95, result.Score)
	assert.Equal(t, dto.VerdictPass, result.Verdict)
}

func TestVerifyFieldsAllAbsent(t *testing.T) {
	svc, _, _ := newTestService(t)

	result, err := svc.VerifyFields(context.Background(), FieldsFromRequest(&dto.VerifyJSONRequest{}), true)
	require.NoError(t, err)

	for _, c := range result.Checks {
		assert.Equal(t, dto.StatusInfo, c.Status, "check %q", c.Name)
	}
	assert.Equal(t, 48, result.Score)
	assert.Equal(t, dto.VerdictFail, result.Verdict)
	assert.Empty(t, result.Extracted)
}

func TestVerifyFieldsMalformedTaxable(t *testing.T) {
	svc, _, _ := newTestService(t)

	req := cleanRequest()
	req.TaxableValue = "12.34.56"
	result, err := svc.VerifyFields(context.Background(), FieldsFromRequest(req), false)
	require.NoError(t, err)

	assert.Equal(t, dto.StatusFail, findCheck(t, result, "CGST Amount").Status)
	assert.Equal(t, dto.StatusFail, findCheck(t, result, "Total Reconciliation").Status)
	assert.Equal(t, "12.34.56", result.Extracted["taxable_value"])
}

func TestVerifyFieldsDisabledStore(t *testing.T) {
	policy := config.DefaultScoringPolicy()
	svc := NewVerificationService(nil, nil, &policy)

	result, err := svc.VerifyFields(context.Background(), FieldsFromRequest(cleanRequest()), true)
	require.NoError(t, err)

	check := findCheck(t, result, "Duplicate Check")
	assert.Equal(t, dto.StatusInfo, check.Status)
	assert.Equal(t, 95, result.Score)
	assert.Equal(t, dto.VerdictPass, result.Verdict)
}

func TestVerifyFieldsStoreUnavailable(t *testing.T) {
	svc, _, testDB := newTestService(t)

	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = svc.VerifyFields(context.Background(), FieldsFromRequest(cleanRequest()), true)
	require.ErrorIs(t, err, dto.ErrStoreUnavailable)
}

func TestVerifyText(t *testing.T) {
	svc, _, _ := newTestService(t)

	text := `
		TAX INVOICE
		GSTIN: 09AABCU6223H2ZB
		Invoice No: GDDAIJEB25001819
		Invoice Date: 25 Jun 2025
		Place of Supply: Uttar Pradesh
		HSN Code: 8471
		Taxable Value: Rs. 133.29
		CGST 2.5% 3.33
		SGST 2.5% 3.33
		Grand Total: Rs. 139.95
	`
	result, err := svc.VerifyText(context.Background(), text, false)
	require.NoError(t, err)

	assert.Equal(t, 100, result.Score)
	assert.Equal(t, dto.VerdictPass, result.Verdict)
	assert.Equal(t, "09AABCU6223H2ZB", result.Extracted["vendor_gstin"])
}

func TestVerifyFieldsPlaceOfSupplyMismatch(t *testing.T) {
	svc, _, _ := newTestService(t)

	req := cleanRequest()
	req.PlaceOfSupply = "Maharashtra"
	result, err := svc.VerifyFields(context.Background(), FieldsFromRequest(req), false)
	require.NoError(t, err)

	assert.Equal(t, dto.StatusFail, findCheck(t, result, "Place of Supply Consistency").Status)
	assert.Equal(t, 95, result.Score)
	assert.Equal(t, dto.VerdictPass, result.Verdict)
}

func TestVerifyFieldsCodedPlaceOfSupply(t *testing.T) {
	svc, _, _ := newTestService(t)

	req := cleanRequest()
	req.PlaceOfSupply = "09 - Uttar Pradesh"
	result, err := svc.VerifyFields(context.Background(), FieldsFromRequest(req), false)
	require.NoError(t, err)

	assert.Equal(t, dto.StatusPass, findCheck(t, result, "Place of Supply Consistency").Status)
}

func TestApplyOverrides(t *testing.T) {
	fields := FieldsFromRequest(&dto.VerifyJSONRequest{})
	fields.VendorGSTIN = "09AABCU6223H2ZB"
	fields.InvoiceNo = "INV-OLD"

	applyOverrides(&fields, &dto.VerifyJSONRequest{
		InvoiceNo:    "INV-NEW",
		TaxableValue: "500.00",
	})

	// Overrides replace only the fields the caller supplied.
	assert.Equal(t, "09AABCU6223H2ZB", fields.VendorGSTIN)
	assert.Equal(t, "INV-NEW", fields.InvoiceNo)
	assert.Equal(t, dto.FieldPresent, fields.TaxableValue.State)
	assert.Equal(t, "500", fields.TaxableValue.Value.String())
}
