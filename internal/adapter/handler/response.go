package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rl1809/gift-market/internal/core/domain"
)

// Response is the envelope of every JSON reply.
type Response struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// APIError is the structured error body.
type APIError struct {
	Status    int                 `json:"-"`
	Code      string              `json:"code"`
	Message   string              `json:"message"`
	Retryable bool                `json:"retryable"`
	Details   []domain.FieldError `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

func newAPIError(status int, code, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}

// errorFor maps a domain error to its HTTP representation. Messages of store
// failures are not leaked to the client.
func errorFor(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var validation *domain.ValidationError
	switch {
	case errors.As(err, &validation):
		e := newAPIError(http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
		e.Details = validation.Fields
		return e
	case errors.Is(err, domain.ErrInvalidArgument):
		return newAPIError(http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
	case errors.Is(err, domain.ErrItemNotFound):
		return newAPIError(http.StatusNotFound, "ITEM_NOT_FOUND", "item not found")
	case errors.Is(err, domain.ErrOutOfStock):
		return newAPIError(http.StatusConflict, "OUT_OF_STOCK", "sold out")
	case errors.Is(err, domain.ErrInsufficientBalance):
		return newAPIError(http.StatusConflict, "INSUFFICIENT_BALANCE", "insufficient balance")
	case errors.Is(err, domain.ErrDuplicateRequest):
		return newAPIError(http.StatusConflict, "DUPLICATE_REQUEST", "duplicate request")
	case errors.Is(err, domain.ErrStoreUnavailable):
		e := newAPIError(http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "service temporarily unavailable")
		e.Retryable = true
		return e
	default:
		return newAPIError(http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeOK(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, err error) {
	apiErr := errorFor(err)
	writeJSON(w, apiErr.Status, Response{Success: false, Error: apiErr})
}
