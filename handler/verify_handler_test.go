package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/invoiceguard/gst-invoice-verification/config"
	"github.com/invoiceguard/gst-invoice-verification/db"
	"github.com/invoiceguard/gst-invoice-verification/dto"
	"github.com/invoiceguard/gst-invoice-verification/repository"
	"github.com/invoiceguard/gst-invoice-verification/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	testDB, err := db.SetupTestDB(&repository.InvoiceRecord{})
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	policy := config.DefaultScoringPolicy()
	svc := service.NewVerificationService(
		service.NewPDFProcessor(),
		repository.NewInvoiceRecordRepository(testDB),
		&policy,
	)
	h := NewVerifyHandler(svc)

	router := gin.New()
	api := router.Group("/api/v1/invoice")
	api.POST("/verify", h.VerifyInvoice)
	api.POST("/verify-json", h.VerifyInvoiceJSON)
	return router
}

func cleanBody() dto.VerifyJSONRequest {
	return dto.VerifyJSONRequest{
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

func postJSON(t *testing.T, router *gin.Engine, url string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestVerifyInvoiceJSON(t *testing.T) {
	router := setupRouter(t)

	w := postJSON(t, router, "/api/v1/invoice/verify-json", cleanBody())
	require.Equal(t, http.StatusOK, w.Code)

	var result dto.VerificationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, dto.VerdictPass, result.Verdict)
	assert.Equal(t, 100, result.Score)
	assert.NotEmpty(t, result.Checks)
}

func TestVerifyInvoiceJSONRecordQuery(t *testing.T) {
	router := setupRouter(t)

	w := postJSON(t, router, "/api/v1/invoice/verify-json?record=true", cleanBody())
	require.Equal(t, http.StatusOK, w.Code)

	// Same invoice again: recorded once, flagged the second time.
	w = postJSON(t, router, "/api/v1/invoice/verify-json?record=true", cleanBody())
	require.Equal(t, http.StatusOK, w.Code)

	var result dto.VerificationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, dto.VerdictReview, result.Verdict)

	found := false
	for _, c := range result.Checks {
		if c.Name == "Duplicate Check" {
			found = true
			assert.Equal(t, dto.StatusFail, c.Status)
		}
	}
	assert.True(t, found)
}

func TestVerifyInvoiceJSONInvalidBody(t *testing.T) {
	router := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoice/verify-json", bytes.NewReader([]byte("not json")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var errResp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "VERIFICATION_FAILED", errResp.Error)
}

func TestVerifyInvoiceNoInput(t *testing.T) {
	router := setupRouter(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoice/verify", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyInvoiceFieldsOnly(t *testing.T) {
	router := setupRouter(t)

	fields, err := json.Marshal(cleanBody())
	require.NoError(t, err)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("fields", string(fields)))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoice/verify", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var result dto.VerificationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, dto.VerdictPass, result.Verdict)
}

func TestVerifyInvoiceBadFieldsJSON(t *testing.T) {
	router := setupRouter(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("fields", "{broken"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoice/verify", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
