// Package handler implements the HTTP endpoints of the Recurly gateway service.
package handler

import (
	"errors"
	"net/http"
	"sort"

	appgateway "github.com/erp/commerce-recurly/internal/application/gateway"
	"github.com/erp/commerce-recurly/internal/domain/gateway"
	"github.com/erp/commerce-recurly/internal/domain/shared"
	"github.com/erp/commerce-recurly/internal/interfaces/http/dto"
	"github.com/erp/commerce-recurly/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// Conflict sends a 409 conflict response
func (h *BaseHandler) Conflict(c *gin.Context, message string) {
	h.Error(c, http.StatusConflict, dto.ErrCodeConflict, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// ServiceUnavailable sends a 503 response
func (h *BaseHandler) ServiceUnavailable(c *gin.Context, message string) {
	h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, message)
}

// ValidationError sends a 422 validation error response with details
func (h *BaseHandler) ValidationError(c *gin.Context, message string, details []dto.ValidationDetail) {
	c.JSON(http.StatusUnprocessableEntity, dto.NewValidationErrorResponse(
		message,
		middleware.GetRequestID(c),
		details,
	))
}

// BindJSON binds the request body into obj, writing the error response on
// failure. It reports whether the handler should continue.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// HandleError converts service errors to HTTP responses
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	c.JSON(h.errorResponse(c, err))
}

func (h *BaseHandler) errorResponse(c *gin.Context, err error) (int, dto.Response) {
	requestID := middleware.GetRequestID(c)
	respond := func(status int, code, message string) (int, dto.Response) {
		return status, dto.NewErrorResponseWithRequestID(code, message, requestID)
	}

	var (
		paymentErr    *gateway.PaymentGatewayError
		storedErr     *gateway.StoredConfigurationError
		validationErr *gateway.ConfigurationValidationError
		domainErr     *shared.DomainError
	)

	switch {
	case errors.As(err, &paymentErr):
		return respond(http.StatusPaymentRequired, dto.ErrCodePaymentFailed, paymentErr.UserMessage())
	case errors.As(err, &storedErr):
		return respond(http.StatusConflict, dto.ErrCodeConflict,
			"The stored gateway configuration is invalid. Save the configuration again to repair it.")
	case errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity, dto.NewValidationErrorResponse(
			"Gateway configuration is invalid", requestID, fieldDetails(validationErr.Fields))
	case errors.Is(err, appgateway.ErrInvalidNotification):
		return respond(http.StatusBadRequest, dto.ErrCodeInvalidInput, err.Error())
	case errors.As(err, &domainErr):
		code := dto.NormalizeErrorCode(domainErr.Code)
		return respond(dto.GetHTTPStatus(code), code, domainErr.Message)
	default:
		return respond(http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
	}
}

func fieldDetails(fields map[string]string) []dto.ValidationDetail {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	details := make([]dto.ValidationDetail, 0, len(names))
	for _, name := range names {
		details = append(details, dto.ValidationDetail{Field: name, Message: fields[name]})
	}
	return details
}
