package response

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/roomquest/idverify/internal/domain"
)

// ErrorResponse represents a structured JSON error response
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// WriteError writes a structured JSON error response
func WriteError(w http.ResponseWriter, statusCode int, message string, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errResp := ErrorResponse{
		Success: false,
		Error:   message,
		Code:    code,
	}

	if err := json.NewEncoder(w).Encode(errResp); err != nil {
		log.Printf("failed to encode error response: %v", err)
	}
}

// Common error codes
const (
	CodeInvalidInput    = "INVALID_INPUT"
	CodeNotFound        = "NOT_FOUND"
	CodeInvalidImage    = "INVALID_IMAGE"
	CodeDocumentMissing = "DOCUMENT_MISSING"
	CodeProviderError   = "PROVIDER_ERROR"
	CodeUnconfigured    = "UNCONFIGURED"
	CodeRateLimit       = "RATE_LIMIT_EXCEEDED"
	CodeInternalError   = "INTERNAL_ERROR"
)

// Convenience functions for common errors
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message, CodeInvalidInput)
}

func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message, CodeNotFound)
}

func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message, CodeInternalError)
}

func BadGateway(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, message, CodeProviderError)
}

func RateLimit(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, message, CodeRateLimit)
}

// WriteDomainError maps the verification core's sentinel errors onto HTTP
// status codes. Unknown errors become a generic 500 so internals never leak.
func WriteDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		WriteError(w, http.StatusNotFound, "Session not found", CodeNotFound)
	case errors.Is(err, domain.ErrReservationNotFound):
		WriteError(w, http.StatusNotFound, "Reservation not found", CodeNotFound)
	case errors.Is(err, domain.ErrInvalidImage):
		WriteError(w, http.StatusBadRequest, err.Error(), CodeInvalidImage)
	case errors.Is(err, domain.ErrDocumentMissing):
		WriteError(w, http.StatusBadRequest, err.Error(), CodeDocumentMissing)
	case errors.Is(err, domain.ErrInvalidInput):
		WriteError(w, http.StatusBadRequest, err.Error(), CodeInvalidInput)
	case errors.Is(err, domain.ErrNoCredential):
		WriteError(w, http.StatusInternalServerError, "Cloudbeds is not connected", CodeUnconfigured)
	case errors.Is(err, domain.ErrRefreshFailed):
		WriteError(w, http.StatusBadGateway, "Cloudbeds token refresh failed", CodeProviderError)
	case errors.Is(err, domain.ErrProvider):
		WriteError(w, http.StatusBadGateway, "Upstream provider error", CodeProviderError)
	default:
		InternalError(w, "Server error")
	}
}
