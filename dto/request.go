package dto

// VerifyJSONRequest is the structured-fields entry point. All fields are
// optional; amounts and rates arrive as strings so that currency symbols
// and thousands separators survive the transport.
type VerifyJSONRequest struct {
	VendorGSTIN   string `json:"vendor_gstin"`
	InvoiceNo     string `json:"invoice_no"`
	InvoiceDate   string `json:"invoice_date"`
	PlaceOfSupply string `json:"place_of_supply"`
	HSN           string `json:"hsn"`
	TaxableValue  string `json:"taxable_value"`
	CGSTRate      string `json:"cgst_rate"`
	CGSTAmount    string `json:"cgst_amount"`
	SGSTRate      string `json:"sgst_rate"`
	SGSTAmount    string `json:"sgst_amount"`
	IGSTRate      string `json:"igst_rate"`
	IGSTAmount    string `json:"igst_amount"`
	Total         string `json:"total"`
}
