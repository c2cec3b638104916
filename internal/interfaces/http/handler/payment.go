package handler

import (
	"context"
	"net/http"

	appgateway "github.com/erp/commerce-recurly/internal/application/gateway"
	"github.com/erp/commerce-recurly/internal/domain/commerce"
	"github.com/erp/commerce-recurly/internal/infrastructure/logger"
	"github.com/erp/commerce-recurly/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// ReturnProcessor completes a payment when the customer comes back from the
// offsite payment page.
type ReturnProcessor interface {
	OnReturn(ctx context.Context, gatewayID string, order *commerce.Order, token string) (*appgateway.PurchaseResult, error)
}

// OffsiteFormBuilder builds the data for the Recurly.js checkout form.
type OffsiteFormBuilder interface {
	BuildOffsiteForm(ctx context.Context, gatewayID string, order *commerce.Order, returnURL, cancelURL string) (*appgateway.OffsiteForm, error)
}

// PaymentHandler serves the checkout endpoints called by the host.
type PaymentHandler struct {
	BaseHandler
	returns ReturnProcessor
	forms   OffsiteFormBuilder
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(returns ReturnProcessor, forms OffsiteFormBuilder) *PaymentHandler {
	return &PaymentHandler{returns: returns, forms: forms}
}

// PaymentReturnRequest is posted by the host when the customer returns.
type PaymentReturnRequest struct {
	Order commerce.Order `json:"order"`
	Token string         `json:"token"`
}

// OffsiteFormRequest asks for the checkout form data of an order.
type OffsiteFormRequest struct {
	Order     commerce.Order `json:"order"`
	ReturnURL string         `json:"return_url" binding:"required,url"`
	CancelURL string         `json:"cancel_url" binding:"required,url"`
}

// OnReturn handles POST /api/v1/payment/:gateway_id/return. Messages raised
// for the customer are returned alongside the result or the error.
func (h *PaymentHandler) OnReturn(c *gin.Context) {
	var req PaymentReturnRequest
	if !h.BindJSON(c, &req) {
		return
	}

	gatewayID := c.Param("gateway_id")
	ctx := logger.WithPayment(c.Request.Context(), gatewayID, req.Order.ID.String())
	ctx, bag := withMessages(ctx)

	result, err := h.returns.OnReturn(ctx, gatewayID, &req.Order, req.Token)
	if err != nil {
		status, resp := h.errorResponse(c, err)
		resp.Messages = bag.list()
		c.JSON(status, resp)
		return
	}

	resp := dto.NewSuccessResponse(result)
	resp.Messages = bag.list()
	c.JSON(http.StatusOK, resp)
}

// OffsiteForm handles POST /payment/:gateway_id/offsite-form.
func (h *PaymentHandler) OffsiteForm(c *gin.Context) {
	var req OffsiteFormRequest
	if !h.BindJSON(c, &req) {
		return
	}

	form, err := h.forms.BuildOffsiteForm(c.Request.Context(), c.Param("gateway_id"), &req.Order, req.ReturnURL, req.CancelURL)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, form)
}
