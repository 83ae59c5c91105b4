package dto

import "github.com/shopspring/decimal"

// CheckStatus is the outcome of a single verification check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
	StatusInfo CheckStatus = "INFO"
)

// Verdict is the aggregate outcome of a verification run.
type Verdict string

const (
	VerdictPass   Verdict = "PASS"
	VerdictReview Verdict = "REVIEW"
	VerdictFail   Verdict = "FAIL"
)

// Check is one named verification outcome. Appended to the result once,
// never mutated afterwards.
type Check struct {
	Name    string                 `json:"name"`
	Status  CheckStatus            `json:"status"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// FieldState distinguishes a field that was never found from one whose
// token was found but could not be parsed. Downstream checks report
// absent operands as INFO and malformed ones as FAIL.
type FieldState int

const (
	FieldAbsent FieldState = iota
	FieldPresent
	FieldMalformed
)

// AmountField is a money or percentage field extracted from an invoice.
type AmountField struct {
	Raw   string
	Value decimal.Decimal
	State FieldState
}

// Amount builds a present AmountField from a decimal value.
func Amount(v decimal.Decimal) AmountField {
	return AmountField{Raw: v.String(), Value: v, State: FieldPresent}
}

// InvoiceFields is the partial set of fields known about an invoice.
// String fields use "" for absent; amount fields carry an explicit state.
type InvoiceFields struct {
	VendorGSTIN   string
	InvoiceNo     string
	InvoiceDate   string
	PlaceOfSupply string
	HSN           string
	TaxableValue  AmountField
	CGSTRate      AmountField
	CGSTAmount    AmountField
	SGSTRate      AmountField
	SGSTAmount    AmountField
	IGSTRate      AmountField
	IGSTAmount    AmountField
	Total         AmountField
}

// ToMap renders the extracted fields for the response body. Absent fields
// are omitted; malformed fields surface their raw token.
func (f *InvoiceFields) ToMap() map[string]interface{} {
	out := make(map[string]interface{})

	strs := map[string]string{
		"vendor_gstin":    f.VendorGSTIN,
		"invoice_no":      f.InvoiceNo,
		"invoice_date":    f.InvoiceDate,
		"place_of_supply": f.PlaceOfSupply,
		"hsn":             f.HSN,
	}
	for k, v := range strs {
		if v != "" {
			out[k] = v
		}
	}

	amounts := map[string]AmountField{
		"taxable_value": f.TaxableValue,
		"cgst_rate":     f.CGSTRate,
		"cgst_amount":   f.CGSTAmount,
		"sgst_rate":     f.SGSTRate,
		"sgst_amount":   f.SGSTAmount,
		"igst_rate":     f.IGSTRate,
		"igst_amount":   f.IGSTAmount,
		"total":         f.Total,
	}
	for k, a := range amounts {
		switch a.State {
		case FieldPresent:
			out[k] = a.Value.String()
		case FieldMalformed:
			out[k] = a.Raw
		}
	}

	return out
}

// EInvoiceQRData is the payload of the NIC signed QR code embedded in GST
// e-invoices. Only the fields the verifier consumes are mapped.
type EInvoiceQRData struct {
	SellerGSTIN string `json:"SellerGstin"`
	BuyerGSTIN  string `json:"BuyerGstin"`
	DocNo       string `json:"DocNo"`
	DocType     string `json:"DocTyp"`
	DocDate     string `json:"DocDt"` // dd/MM/yyyy
	TotalValue  string `json:"TotInvVal"`
	ItemCount   int    `json:"ItemCnt"`
	MainHSN     string `json:"MainHsnCode"`
	IRN         string `json:"Irn"`
}
