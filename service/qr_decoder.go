package service

import (
	"encoding/json"
	"fmt"
	"image"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/invoiceguard/gst-invoice-verification/dto"
	"github.com/invoiceguard/gst-invoice-verification/pkg/logger"
	"github.com/invoiceguard/gst-invoice-verification/utils"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// DecodeEInvoiceQR scans the given page images for a GST e-invoice QR
// code and returns its payload. Best-effort: the first decodable QR wins,
// and any failure simply means no QR data.
func DecodeEInvoiceQR(images []image.Image) (*dto.EInvoiceQRData, error) {
	qrReader := qrcode.NewQRCodeReader()

	var lastErr error
	for _, img := range images {
		bmp, err := gozxing.NewBinaryBitmapFromImage(img)
		if err != nil {
			lastErr = fmt.Errorf("failed to create binary bitmap: %w", err)
			continue
		}

		result, err := qrReader.Decode(bmp, nil)
		if err != nil {
			lastErr = fmt.Errorf("failed to decode QR code: %w", err)
			continue
		}

		data, err := parseQRPayload(result.GetText())
		if err != nil {
			lastErr = err
			continue
		}
		logger.Debug("E-invoice QR decoded", map[string]interface{}{
			"doc_no": data.DocNo,
			"irn":    data.IRN,
		})
		return data, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no QR code found")
	}
	return nil, lastErr
}

// parseQRPayload handles both payload forms seen in the wild: the NIC
// signed QR (a JWT whose "data" claim is a JSON document) and a bare JSON
// document. The NIC signature is not verified; authenticity checks
// against the registry are out of scope.
func parseQRPayload(payload string) (*dto.EInvoiceQRData, error) {
	payload = strings.TrimSpace(payload)

	if strings.Count(payload, ".") == 2 && !strings.HasPrefix(payload, "{") {
		claims := jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(payload, claims); err != nil {
			return nil, fmt.Errorf("failed to parse QR JWT: %w", err)
		}
		inner, ok := claims["data"].(string)
		if !ok {
			return nil, fmt.Errorf("QR JWT has no data claim")
		}
		payload = inner
	}

	var data dto.EInvoiceQRData
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return nil, fmt.Errorf("failed to parse QR payload JSON: %w", err)
	}
	if data.SellerGSTIN == "" && data.DocNo == "" {
		return nil, fmt.Errorf("QR payload carries no invoice fields")
	}
	return &data, nil
}

// mergeQRData fills fields the text extractor left absent with values
// from the e-invoice QR payload. Extracted text always wins.
func mergeQRData(fields *dto.InvoiceFields, qr *dto.EInvoiceQRData) {
	if qr == nil {
		return
	}
	if fields.VendorGSTIN == "" {
		fields.VendorGSTIN = strings.ToUpper(qr.SellerGSTIN)
	}
	if fields.InvoiceNo == "" {
		fields.InvoiceNo = qr.DocNo
	}
	if fields.InvoiceDate == "" {
		fields.InvoiceDate = qr.DocDate
	}
	if fields.HSN == "" {
		fields.HSN = qr.MainHSN
	}
	if fields.Total.State == dto.FieldAbsent && qr.TotalValue != "" {
		fields.Total = utils.ParseAmountToken(qr.TotalValue)
	}
}
