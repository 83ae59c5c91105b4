package dto

import "errors"

// Custom errors
var (
	// ErrStoreUnavailable marks a duplicate-store failure. It is the only
	// error class that aborts a verification instead of becoming a check.
	ErrStoreUnavailable = errors.New("duplicate store unavailable")

	ErrNoInput = errors.New("provide a PDF file or invoice fields")
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// VerificationResult is the final response structure. It is built once
// per verification call and never mutated after construction.
type VerificationResult struct {
	Verdict   Verdict                `json:"verdict"`
	Score     int                    `json:"score"`
	Checks    []Check                `json:"checks"`
	Extracted map[string]interface{} `json:"extracted"`
}
