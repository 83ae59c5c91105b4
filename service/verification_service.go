package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/invoiceguard/gst-invoice-verification/config"
	"github.com/invoiceguard/gst-invoice-verification/dto"
	"github.com/invoiceguard/gst-invoice-verification/pkg/logger"
	"github.com/invoiceguard/gst-invoice-verification/repository"
	"github.com/invoiceguard/gst-invoice-verification/utils"
	"github.com/shopspring/decimal"
)

// Check names as they appear in the response.
const (
	checkGSTINStructure = "GSTIN Structure"
	checkGSTINChecksum  = "GSTIN Checksum"
	checkInvoiceFormat  = "Invoice Number Format"
	checkInvoiceDate    = "Invoice Date"
	checkPlaceOfSupply  = "Place of Supply Consistency"
	checkHSNFormat      = "HSN Format"
	checkDuplicate      = "Duplicate Check"
	checkTextExtraction = "Text Extraction"
)

// Scoring categories. Every scored check belongs to exactly one.
type category int

const (
	catGSTIN category = iota
	catInvoiceFormat
	catDate
	catPlaceOfSupply
	catHSN
	catArithmetic
	catDuplicate
)

var categoryOrder = []category{
	catGSTIN, catInvoiceFormat, catDate, catPlaceOfSupply, catHSN, catArithmetic, catDuplicate,
}

var hsnPattern = regexp.MustCompile(`^[0-9]{4,8}$`)

// checkList accumulates checks in order alongside their category, so the
// aggregator can score categories without re-parsing check names.
type checkList struct {
	checks   []dto.Check
	statuses map[category][]dto.CheckStatus
}

func newCheckList() *checkList {
	return &checkList{statuses: make(map[category][]dto.CheckStatus)}
}

func (cl *checkList) add(cat category, check dto.Check) {
	cl.checks = append(cl.checks, check)
	cl.statuses[cat] = append(cl.statuses[cat], check.Status)
}

// addUnscored appends an informational check that no category counts.
func (cl *checkList) addUnscored(check dto.Check) {
	cl.checks = append(cl.checks, check)
}

func (cl *checkList) hasFail(name string) bool {
	for _, c := range cl.checks {
		if c.Name == name && c.Status == dto.StatusFail {
			return true
		}
	}
	return false
}

// VerificationService runs the invoice checks and aggregates them into a
// scored verdict. It holds no per-call state; concurrent verifications
// need no coordination.
type VerificationService struct {
	pdfProcessor PDFProcessor
	records      repository.InvoiceRecordRepository // nil disables the duplicate store
	scoring      *config.ScoringPolicy
}

func NewVerificationService(
	pdfProcessor PDFProcessor,
	records repository.InvoiceRecordRepository,
	scoring *config.ScoringPolicy,
) *VerificationService {
	return &VerificationService{
		pdfProcessor: pdfProcessor,
		records:      records,
		scoring:      scoring,
	}
}

// VerifyDocument extracts text (and e-invoice QR data) from a PDF, merges
// any caller-supplied field overrides and verifies the result. Extraction
// failure is not fatal: verification proceeds on an empty blob.
func (s *VerificationService) VerifyDocument(ctx context.Context, pdfData []byte, password string, overrides *dto.VerifyJSONRequest, record bool) (*dto.VerificationResult, error) {
	cl := newCheckList()

	text, err := s.pdfProcessor.ExtractText(pdfData, password)
	if err != nil {
		logger.Warn("PDF text extraction failed, verifying without text", map[string]interface{}{
			"error": err.Error(),
		})
		cl.addUnscored(dto.Check{
			Name:    checkTextExtraction,
			Status:  dto.StatusWarn,
			Message: "no text available from document; verification ran on supplied fields only",
		})
		text = ""
	}

	fields := utils.ExtractInvoiceFields(text)

	// E-invoices embed a signed QR whose payload repeats the key fields;
	// it fills whatever the text extractor missed.
	if images, imgErr := s.pdfProcessor.ExtractImages(pdfData, password); imgErr == nil && len(images) > 0 {
		if qr, qrErr := DecodeEInvoiceQR(images); qrErr == nil {
			mergeQRData(&fields, qr)
		}
	}

	if overrides != nil {
		applyOverrides(&fields, overrides)
	}

	return s.verify(ctx, fields, record, cl)
}

// VerifyText runs verification over a raw text blob.
func (s *VerificationService) VerifyText(ctx context.Context, text string, record bool) (*dto.VerificationResult, error) {
	return s.verify(ctx, utils.ExtractInvoiceFields(text), record, newCheckList())
}

// VerifyFields runs verification over structured fields.
func (s *VerificationService) VerifyFields(ctx context.Context, fields dto.InvoiceFields, record bool) (*dto.VerificationResult, error) {
	return s.verify(ctx, fields, record, newCheckList())
}

// FieldsFromRequest converts the JSON request shape into InvoiceFields,
// parsing amount and rate tokens.
func FieldsFromRequest(req *dto.VerifyJSONRequest) dto.InvoiceFields {
	return dto.InvoiceFields{
		VendorGSTIN:   strings.TrimSpace(req.VendorGSTIN),
		InvoiceNo:     strings.TrimSpace(req.InvoiceNo),
		InvoiceDate:   strings.TrimSpace(req.InvoiceDate),
		PlaceOfSupply: strings.TrimSpace(req.PlaceOfSupply),
		HSN:           strings.TrimSpace(req.HSN),
		TaxableValue:  utils.ParseAmountToken(req.TaxableValue),
		CGSTRate:      utils.ParsePercentToken(req.CGSTRate),
		CGSTAmount:    utils.ParseAmountToken(req.CGSTAmount),
		SGSTRate:      utils.ParsePercentToken(req.SGSTRate),
		SGSTAmount:    utils.ParseAmountToken(req.SGSTAmount),
		IGSTRate:      utils.ParsePercentToken(req.IGSTRate),
		IGSTAmount:    utils.ParseAmountToken(req.IGSTAmount),
		Total:         utils.ParseAmountToken(req.Total),
	}
}

func applyOverrides(fields *dto.InvoiceFields, req *dto.VerifyJSONRequest) {
	override := FieldsFromRequest(req)

	if override.VendorGSTIN != "" {
		fields.VendorGSTIN = override.VendorGSTIN
	}
	if override.InvoiceNo != "" {
		fields.InvoiceNo = override.InvoiceNo
	}
	if override.InvoiceDate != "" {
		fields.InvoiceDate = override.InvoiceDate
	}
	if override.PlaceOfSupply != "" {
		fields.PlaceOfSupply = override.PlaceOfSupply
	}
	if override.HSN != "" {
		fields.HSN = override.HSN
	}
	amounts := []struct {
		dst *dto.AmountField
		src dto.AmountField
	}{
		{&fields.TaxableValue, override.TaxableValue},
		{&fields.CGSTRate, override.CGSTRate},
		{&fields.CGSTAmount, override.CGSTAmount},
		{&fields.SGSTRate, override.SGSTRate},
		{&fields.SGSTAmount, override.SGSTAmount},
		{&fields.IGSTRate, override.IGSTRate},
		{&fields.IGSTAmount, override.IGSTAmount},
		{&fields.Total, override.Total},
	}
	for _, a := range amounts {
		if a.src.State != dto.FieldAbsent {
			*a.dst = a.src
		}
	}
}

// verify runs every check category, then scores the result. No check's
// failure prevents any other check from running; only a duplicate-store
// error aborts the call.
func (s *VerificationService) verify(ctx context.Context, fields dto.InvoiceFields, record bool, cl *checkList) (*dto.VerificationResult, error) {
	gstin := s.checkGSTIN(cl, fields.VendorGSTIN)
	invNo := s.checkInvoiceNumber(cl, fields.InvoiceNo)
	fy := s.checkDate(cl, fields.InvoiceDate)
	s.checkPlaceOfSupply(cl, fields.PlaceOfSupply, gstin)
	s.checkHSN(cl, fields.HSN)
	s.checkArithmetic(cl, &fields)

	if err := s.checkDuplicate(ctx, cl, gstin.Normalized, invNo.Normalized, fy, record); err != nil {
		return nil, err
	}

	score, verdict := s.scoreAndVerdict(cl)

	return &dto.VerificationResult{
		Verdict:   verdict,
		Score:     score,
		Checks:    cl.checks,
		Extracted: fields.ToMap(),
	}, nil
}

func (s *VerificationService) checkGSTIN(cl *checkList, raw string) utils.GSTINValidation {
	v := utils.ValidateGSTIN(raw)

	if v.Normalized == "" {
		cl.add(catGSTIN, dto.Check{Name: checkGSTINStructure, Status: dto.StatusInfo, Message: "GSTIN not found; structure check skipped"})
		cl.add(catGSTIN, dto.Check{Name: checkGSTINChecksum, Status: dto.StatusInfo, Message: "GSTIN not found; checksum check skipped"})
		return v
	}

	if !v.StructureOK {
		msg := strings.Join(v.Errors, "; ")
		cl.add(catGSTIN, dto.Check{Name: checkGSTINStructure, Status: dto.StatusFail, Message: msg})
		cl.add(catGSTIN, dto.Check{Name: checkGSTINChecksum, Status: dto.StatusFail, Message: "checksum not verifiable on a structurally invalid GSTIN"})
		return v
	}

	structData := map[string]interface{}{
		"state_code": v.StateCode,
		"pan":        v.PAN,
	}
	if v.StateKnown {
		structData["state"] = v.StateName
		cl.add(catGSTIN, dto.Check{
			Name:    checkGSTINStructure,
			Status:  dto.StatusPass,
			Message: fmt.Sprintf("GSTIN structure valid (state: %s)", v.StateName),
			Data:    structData,
		})
	} else {
		// New state codes may be issued, so unknown is a warning.
		cl.add(catGSTIN, dto.Check{
			Name:    checkGSTINStructure,
			Status:  dto.StatusWarn,
			Message: fmt.Sprintf("GSTIN structure valid but state code %q is not recognized", v.StateCode),
			Data:    structData,
		})
	}

	if v.ChecksumOK {
		cl.add(catGSTIN, dto.Check{Name: checkGSTINChecksum, Status: dto.StatusPass, Message: "GSTIN checksum valid"})
	} else {
		cl.add(catGSTIN, dto.Check{
			Name:    checkGSTINChecksum,
			Status:  dto.StatusFail,
			Message: fmt.Sprintf("GSTIN checksum mismatch: expected %q, got %q", v.ExpectedCheck, v.ActualCheck),
			Data: map[string]interface{}{
				"expected": v.ExpectedCheck,
				"actual":   v.ActualCheck,
			},
		})
	}

	return v
}

func (s *VerificationService) checkInvoiceNumber(cl *checkList, raw string) utils.InvoiceNumberValidation {
	v := utils.ValidateInvoiceNumber(raw)

	if strings.TrimSpace(raw) == "" {
		cl.add(catInvoiceFormat, dto.Check{Name: checkInvoiceFormat, Status: dto.StatusInfo, Message: "invoice number not found; format check skipped"})
		return v
	}

	if v.Valid {
		cl.add(catInvoiceFormat, dto.Check{
			Name:    checkInvoiceFormat,
			Status:  dto.StatusPass,
			Message: "complies with Rule 46 character and length constraints",
		})
	} else {
		cl.add(catInvoiceFormat, dto.Check{
			Name:    checkInvoiceFormat,
			Status:  dto.StatusFail,
			Message: strings.Join(v.Errors, "; "),
		})
	}
	return v
}

// checkDate parses the invoice date and returns the financial year label,
// "" when no date could be parsed.
func (s *VerificationService) checkDate(cl *checkList, raw string) string {
	if strings.TrimSpace(raw) == "" {
		cl.add(catDate, dto.Check{Name: checkInvoiceDate, Status: dto.StatusInfo, Message: "invoice date not found; date check skipped"})
		return ""
	}

	d, err := utils.ParseInvoiceDate(raw)
	if err != nil {
		cl.add(catDate, dto.Check{Name: checkInvoiceDate, Status: dto.StatusFail, Message: fmt.Sprintf("could not parse invoice date: %v", err)})
		return ""
	}

	fy := utils.FinancialYear(d)
	cl.add(catDate, dto.Check{
		Name:    checkInvoiceDate,
		Status:  dto.StatusPass,
		Message: fmt.Sprintf("parsed date %s (FY %s)", d.Format("2006-01-02"), fy),
		Data:    map[string]interface{}{"date": d.Format("2006-01-02"), "financial_year": fy},
	})
	return fy
}

func (s *VerificationService) checkPlaceOfSupply(cl *checkList, place string, gstin utils.GSTINValidation) {
	if strings.TrimSpace(place) == "" || !gstin.StateKnown {
		cl.add(catPlaceOfSupply, dto.Check{Name: checkPlaceOfSupply, Status: dto.StatusInfo, Message: "insufficient data to compare place of supply with GSTIN state"})
		return
	}

	if placeMatchesState(place, gstin.StateCode, gstin.StateName) {
		cl.add(catPlaceOfSupply, dto.Check{
			Name:    checkPlaceOfSupply,
			Status:  dto.StatusPass,
			Message: fmt.Sprintf("place of supply aligns with GSTIN state %s", gstin.StateName),
		})
	} else {
		cl.add(catPlaceOfSupply, dto.Check{
			Name:    checkPlaceOfSupply,
			Status:  dto.StatusFail,
			Message: fmt.Sprintf("place of supply %q does not match GSTIN state %s (%s)", strings.TrimSpace(place), gstin.StateCode, gstin.StateName),
		})
	}
}

// placeMatchesState accepts either a literal state name or the common
// "NN - Name" form with a leading state code.
func placeMatchesState(place, stateCode, stateName string) bool {
	trimmed := strings.TrimSpace(place)
	if len(trimmed) >= 2 {
		if code := trimmed[:2]; code == stateCode {
			return true
		}
	}

	name := strings.ToLower(stateName)
	prefix := name
	if len(prefix) > 5 {
		prefix = prefix[:5]
	}
	return strings.Contains(strings.ToLower(trimmed), prefix)
}

func (s *VerificationService) checkHSN(cl *checkList, hsn string) {
	if strings.TrimSpace(hsn) == "" {
		cl.add(catHSN, dto.Check{Name: checkHSNFormat, Status: dto.StatusInfo, Message: "HSN not found"})
		return
	}

	if hsnPattern.MatchString(strings.TrimSpace(hsn)) {
		cl.add(catHSN, dto.Check{Name: checkHSNFormat, Status: dto.StatusPass, Message: "HSN format valid (4-8 digits)"})
	} else {
		cl.add(catHSN, dto.Check{Name: checkHSNFormat, Status: dto.StatusFail, Message: "HSN must be 4-8 digits"})
	}
}

var oneHundred = decimal.NewFromInt(100)

// checkArithmetic reconciles each tax component against taxable * rate,
// then the grand total against taxable plus the declared tax amounts.
// Missing operands downgrade a check to INFO; a malformed token is a FAIL
// on this category, never silently treated as zero.
func (s *VerificationService) checkArithmetic(cl *checkList, f *dto.InvoiceFields) {
	components := []struct {
		name   string
		rate   dto.AmountField
		amount dto.AmountField
	}{
		{"CGST", f.CGSTRate, f.CGSTAmount},
		{"SGST", f.SGSTRate, f.SGSTAmount},
		{"IGST", f.IGSTRate, f.IGSTAmount},
	}

	taxSum := decimal.Zero
	taxSumComplete := f.TaxableValue.State == dto.FieldPresent

	for _, comp := range components {
		checkName := comp.name + " Amount"

		if comp.rate.State == dto.FieldAbsent && comp.amount.State == dto.FieldAbsent {
			continue // component not on this invoice
		}

		if comp.rate.State == dto.FieldMalformed || comp.amount.State == dto.FieldMalformed || f.TaxableValue.State == dto.FieldMalformed {
			cl.add(catArithmetic, dto.Check{
				Name:    checkName,
				Status:  dto.StatusFail,
				Message: fmt.Sprintf("%s has a non-numeric rate or amount token", comp.name),
			})
			continue
		}

		if comp.rate.State == dto.FieldAbsent || comp.amount.State == dto.FieldAbsent || f.TaxableValue.State == dto.FieldAbsent {
			cl.add(catArithmetic, dto.Check{
				Name:    checkName,
				Status:  dto.StatusInfo,
				Message: fmt.Sprintf("insufficient data for %s check", comp.name),
			})
			if comp.amount.State != dto.FieldPresent {
				taxSumComplete = false
			} else {
				taxSum = taxSum.Add(comp.amount.Value)
			}
			continue
		}

		taxSum = taxSum.Add(comp.amount.Value)

		expected := f.TaxableValue.Value.Mul(comp.rate.Value).Div(oneHundred).Round(2)
		if utils.WithinTolerance(expected, comp.amount.Value) {
			cl.add(catArithmetic, dto.Check{
				Name:    checkName,
				Status:  dto.StatusPass,
				Message: fmt.Sprintf("%s amount %s consistent with %s%% of taxable value", comp.name, comp.amount.Value, comp.rate.Value),
			})
		} else {
			cl.add(catArithmetic, dto.Check{
				Name:    checkName,
				Status:  dto.StatusFail,
				Message: fmt.Sprintf("%s mismatch: declared %s, expected ~%s", comp.name, comp.amount.Value, expected),
				Data: map[string]interface{}{
					"declared": comp.amount.Value.String(),
					"expected": expected.String(),
				},
			})
		}
	}

	// Grand total reconciliation. Always emitted, so the arithmetic
	// category is never empty.
	switch {
	case f.Total.State == dto.FieldMalformed || f.TaxableValue.State == dto.FieldMalformed:
		cl.add(catArithmetic, dto.Check{
			Name:    "Total Reconciliation",
			Status:  dto.StatusFail,
			Message: "total or taxable value has a non-numeric token",
		})
	case f.Total.State != dto.FieldPresent || !taxSumComplete:
		cl.add(catArithmetic, dto.Check{
			Name:    "Total Reconciliation",
			Status:  dto.StatusInfo,
			Message: "insufficient data for total check",
		})
	default:
		expectedTotal := f.TaxableValue.Value.Add(taxSum).Round(2)
		if utils.WithinTolerance(expectedTotal, f.Total.Value) {
			cl.add(catArithmetic, dto.Check{
				Name:    "Total Reconciliation",
				Status:  dto.StatusPass,
				Message: "taxes and total consistent within tolerance",
				Data: map[string]interface{}{
					"taxable": f.TaxableValue.Value.String(),
					"tax_sum": taxSum.String(),
					"total":   f.Total.Value.String(),
				},
			})
		} else {
			cl.add(catArithmetic, dto.Check{
				Name:    "Total Reconciliation",
				Status:  dto.StatusFail,
				Message: fmt.Sprintf("total mismatch: declared %s, expected ~%s", f.Total.Value, expectedTotal),
				Data: map[string]interface{}{
					"declared": f.Total.Value.String(),
					"expected": expectedTotal.String(),
				},
			})
		}
	}
}

// checkDuplicate consults the record store. A read-only verification only
// looks up; it never records as a side effect. A store failure aborts the
// whole call as "verification unavailable" rather than scoring.
func (s *VerificationService) checkDuplicate(ctx context.Context, cl *checkList, gstin, invoiceNo, financialYear string, record bool) error {
	if s.records == nil {
		cl.add(catDuplicate, dto.Check{Name: checkDuplicate, Status: dto.StatusInfo, Message: "duplicate store disabled"})
		return nil
	}
	if gstin == "" || invoiceNo == "" || financialYear == "" {
		cl.add(catDuplicate, dto.Check{Name: checkDuplicate, Status: dto.StatusInfo, Message: "insufficient data for duplicate check"})
		return nil
	}

	key := repository.BuildDuplicateKey(gstin, invoiceNo, financialYear)

	if record {
		outcome, err := s.records.TryInsert(ctx, &repository.InvoiceRecord{
			GSTIN:         gstin,
			InvoiceNo:     invoiceNo,
			FinancialYear: financialYear,
			DuplicateKey:  key,
		})
		if err != nil {
			return fmt.Errorf("%w: %v", dto.ErrStoreUnavailable, err)
		}
		if outcome == repository.AlreadyExists {
			cl.add(catDuplicate, dto.Check{
				Name:    checkDuplicate,
				Status:  dto.StatusFail,
				Message: "invoice already recorded for this GSTIN and financial year",
				Data:    map[string]interface{}{"financial_year": financialYear},
			})
		} else {
			cl.add(catDuplicate, dto.Check{Name: checkDuplicate, Status: dto.StatusPass, Message: "invoice recorded; no prior submission found"})
		}
		return nil
	}

	found, err := s.records.Lookup(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: %v", dto.ErrStoreUnavailable, err)
	}
	if found {
		cl.add(catDuplicate, dto.Check{
			Name:    checkDuplicate,
			Status:  dto.StatusWarn,
			Message: "an invoice with this number was already recorded for this GSTIN and financial year",
		})
	} else {
		cl.add(catDuplicate, dto.Check{Name: checkDuplicate, Status: dto.StatusPass, Message: "no prior submission found"})
	}
	return nil
}

func (s *VerificationService) weightFor(cat category) int {
	switch cat {
	case catGSTIN:
		return s.scoring.GSTINWeight
	case catInvoiceFormat:
		return s.scoring.InvoiceFormatWeight
	case catDate:
		return s.scoring.DateWeight
	case catPlaceOfSupply:
		return s.scoring.PlaceOfSupplyWeight
	case catHSN:
		return s.scoring.HSNWeight
	case catArithmetic:
		return s.scoring.ArithmeticWeight
	case catDuplicate:
		return s.scoring.DuplicateWeight
	}
	return 0
}

// scoreAndVerdict earns each category's full weight when every check in
// it passed, nothing when any failed, and half otherwise (WARN/INFO
// outcomes with no FAIL).
func (s *VerificationService) scoreAndVerdict(cl *checkList) (int, dto.Verdict) {
	score := 0
	for _, cat := range categoryOrder {
		statuses := cl.statuses[cat]
		if len(statuses) == 0 {
			continue
		}

		weight := s.weightFor(cat)
		allPass := true
		anyFail := false
		for _, st := range statuses {
			if st == dto.StatusFail {
				anyFail = true
			}
			if st != dto.StatusPass {
				allPass = false
			}
		}

		switch {
		case anyFail:
			// earns nothing
		case allPass:
			score += weight
		default:
			score += weight / 2
		}
	}

	var verdict dto.Verdict
	switch {
	case score >= s.scoring.PassThreshold:
		verdict = dto.VerdictPass
	case score >= s.scoring.ReviewThreshold:
		verdict = dto.VerdictReview
	default:
		verdict = dto.VerdictFail
	}

	// A forged or mistyped GSTIN and a duplicate submission are the two
	// findings a reviewer must always see, even when the rest of the
	// invoice is clean.
	if s.scoring.CapOnCriticalFail && verdict == dto.VerdictPass {
		if cl.hasFail(checkGSTINChecksum) || cl.hasFail(checkDuplicate) {
			verdict = dto.VerdictReview
		}
	}

	return score, verdict
}
