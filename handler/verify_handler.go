package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/invoiceguard/gst-invoice-verification/dto"
	"github.com/invoiceguard/gst-invoice-verification/pkg/logger"
	"github.com/invoiceguard/gst-invoice-verification/service"
)

type VerifyHandler struct {
	verificationService *service.VerificationService
}

func NewVerifyHandler(verificationService *service.VerificationService) *VerifyHandler {
	return &VerifyHandler{
		verificationService: verificationService,
	}
}

// VerifyInvoice handles POST /invoice/verify: a multipart PDF upload with
// optional field overrides, or overrides alone.
func (h *VerifyHandler) VerifyInvoice(c *gin.Context) {
	logger.Info("Received invoice verification request")

	record := parseBool(c.PostForm("record"))

	var overrides *dto.VerifyJSONRequest
	if raw := c.PostForm("fields"); raw != "" {
		overrides = &dto.VerifyJSONRequest{}
		if err := json.Unmarshal([]byte(raw), overrides); err != nil {
			h.sendError(c, http.StatusBadRequest, "fields must be a JSON object", err)
			return
		}
	}

	fileHeader, err := c.FormFile("file")
	if err != nil && overrides == nil {
		h.sendError(c, http.StatusBadRequest, dto.ErrNoInput.Error(), nil)
		return
	}

	if fileHeader == nil {
		// Structured fields only, no document.
		result, err := h.verificationService.VerifyFields(c.Request.Context(), service.FieldsFromRequest(overrides), record)
		if err != nil {
			h.sendVerificationError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.sendError(c, http.StatusInternalServerError, "Failed to open uploaded file", err)
		return
	}
	defer file.Close()

	pdfData, err := io.ReadAll(file)
	if err != nil {
		h.sendError(c, http.StatusInternalServerError, "Failed to read uploaded file", err)
		return
	}

	password := c.PostForm("password")

	result, err := h.verificationService.VerifyDocument(c.Request.Context(), pdfData, password, overrides, record)
	if err != nil {
		h.sendVerificationError(c, err)
		return
	}

	logger.Info("Invoice verification completed", map[string]interface{}{
		"verdict": result.Verdict,
		"score":   result.Score,
	})
	c.JSON(http.StatusOK, result)
}

// VerifyInvoiceJSON handles POST /invoice/verify-json with structured fields.
func (h *VerifyHandler) VerifyInvoiceJSON(c *gin.Context) {
	var req dto.VerifyJSONRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendError(c, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	record := parseBool(c.Query("record"))

	result, err := h.verificationService.VerifyFields(c.Request.Context(), service.FieldsFromRequest(&req), record)
	if err != nil {
		h.sendVerificationError(c, err)
		return
	}

	logger.Info("Invoice verification completed", map[string]interface{}{
		"verdict": result.Verdict,
		"score":   result.Score,
	})
	c.JSON(http.StatusOK, result)
}

// sendVerificationError distinguishes a collaborator outage from a bad request.
func (h *VerifyHandler) sendVerificationError(c *gin.Context, err error) {
	if errors.Is(err, dto.ErrStoreUnavailable) {
		h.sendError(c, http.StatusServiceUnavailable, "Verification unavailable", err)
		return
	}
	h.sendError(c, http.StatusInternalServerError, "Failed to verify invoice", err)
}

// sendError sends a structured error response
func (h *VerifyHandler) sendError(c *gin.Context, statusCode int, message string, err error) {
	errorMsg := message
	if err != nil {
		errorMsg = err.Error()
		logger.Error(message, err)
	}

	c.JSON(statusCode, dto.ErrorResponse{
		Error:   "VERIFICATION_FAILED",
		Message: errorMsg,
		Code:    statusCode,
	})
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return b
}
