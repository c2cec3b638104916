package dto

import (
	"net/http"

	"github.com/erp/commerce-recurly/internal/domain/shared"
)

// API error codes. Every code starts with ERR_ and has an HTTP status in
// ErrorCodeHTTPStatus.
const (
	ErrCodeInternal    = "ERR_INTERNAL"
	ErrCodeUnavailable = "ERR_UNAVAILABLE"

	// ErrCodeValidation covers both bind failures (sent as 400) and
	// configuration form errors (422).
	ErrCodeValidation = "ERR_VALIDATION"

	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"

	ErrCodeNotFound         = "ERR_NOT_FOUND"
	ErrCodeConflict         = "ERR_CONFLICT"
	ErrCodeAlreadyProcessed = "ERR_ALREADY_PROCESSED"

	// ErrCodePaymentFailed means the return workflow stopped before the
	// order was paid. The customer is sent back to checkout.
	ErrCodePaymentFailed = "ERR_PAYMENT_FAILED"

	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput    = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON     = "ERR_INVALID_JSON"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
	ErrCodeRateLimited     = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:         http.StatusInternalServerError,
	ErrCodeUnavailable:      http.StatusServiceUnavailable,
	ErrCodeValidation:       http.StatusUnprocessableEntity,
	ErrCodeUnauthorized:     http.StatusUnauthorized,
	ErrCodeForbidden:        http.StatusForbidden,
	ErrCodeTokenExpired:     http.StatusUnauthorized,
	ErrCodeTokenInvalid:     http.StatusUnauthorized,
	ErrCodeNotFound:         http.StatusNotFound,
	ErrCodeConflict:         http.StatusConflict,
	ErrCodeAlreadyProcessed: http.StatusConflict,
	ErrCodePaymentFailed:    http.StatusPaymentRequired,
	ErrCodeBadRequest:       http.StatusBadRequest,
	ErrCodeInvalidInput:     http.StatusBadRequest,
	ErrCodeInvalidJSON:      http.StatusBadRequest,
	ErrCodeRequestTooLarge:  http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:      http.StatusTooManyRequests,
}

// GetHTTPStatus returns the status for code, or 500 for unknown codes.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// domainCodes translates the short codes carried by domain errors.
var domainCodes = map[string]string{
	shared.CodeNotFound:         ErrCodeNotFound,
	shared.CodeInvalidInput:     ErrCodeInvalidInput,
	shared.CodeConflict:         ErrCodeConflict,
	shared.CodeAlreadyProcessed: ErrCodeAlreadyProcessed,
	shared.CodePaymentFailed:    ErrCodePaymentFailed,
	"VALIDATION_ERROR":          ErrCodeValidation,
}

// NormalizeErrorCode maps a domain error code to its API code. API codes
// and unknown codes are returned unchanged.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := domainCodes[code]; ok {
		return apiCode
	}
	return code
}
