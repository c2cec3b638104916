package billing

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error types returned by the billing API.
const (
	ErrorTypeNotFound   = "not_found"
	ErrorTypeValidation = "validation"
)

var (
	ErrClientNotConfigured = errors.New("billing: client credentials not configured")
	ErrServiceUnavailable  = errors.New("billing: service temporarily unavailable")
	ErrInvalidResponse     = errors.New("billing: invalid response")
)

// ErrorParam is a field-level validation message.
type ErrorParam struct {
	Param   string `json:"param"`
	Message string `json:"message"`
}

// APIError is a structured error reported by the billing API.
type APIError struct {
	StatusCode int          `json:"-"`
	Type       string       `json:"type"`
	Message    string       `json:"message"`
	Params     []ErrorParam `json:"params,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("billing: HTTP %d %s", e.StatusCode, e.Type)
	}
	return e.Message
}

// IsNotFound reports whether err is an APIError for a missing resource.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Type == ErrorTypeNotFound || apiErr.StatusCode == http.StatusNotFound
}

// IsValidation reports whether err is an APIError for a rejected payload.
func IsValidation(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Type == ErrorTypeValidation || apiErr.StatusCode == http.StatusUnprocessableEntity
}

// IsDuplicateAccountCode reports whether err is a validation error rejecting
// an account code that is already taken.
func IsDuplicateAccountCode(err error) bool {
	if !IsValidation(err) {
		return false
	}
	var apiErr *APIError
	errors.As(err, &apiErr)
	for _, p := range apiErr.Params {
		if p.Param == "code" && strings.Contains(strings.ToLower(p.Message), "taken") {
			return true
		}
	}
	return false
}

// IsClientError reports whether err is an APIError with a 4xx status.
func IsClientError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500
}
