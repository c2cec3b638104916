package handler

import (
	"context"
	"io"
	"net/http"

	appgateway "github.com/erp/commerce-recurly/internal/application/gateway"
	"github.com/erp/commerce-recurly/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// NotificationHandler accepts Recurly webhook notifications.
type NotificationHandler interface {
	HandleNotification(ctx context.Context, payload []byte) (*appgateway.Notification, error)
}

// WebhookHandler serves POST /webhooks/recurly. Recurly retries any
// non-2xx answer, so only unparseable bodies are rejected.
type WebhookHandler struct {
	BaseHandler
	notifications NotificationHandler
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(notifications NotificationHandler) *WebhookHandler {
	return &WebhookHandler{notifications: notifications}
}

// WebhookResponse acknowledges a notification.
type WebhookResponse struct {
	Received          bool   `json:"received"`
	EventType         string `json:"event_type"`
	SuccessfulPayment bool   `json:"successful_payment"`
}

// Receive handles a single notification.
func (h *WebhookHandler) Receive(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		if middleware.IsBodyTooLarge(err) {
			middleware.AbortBodyTooLarge(c)
			return
		}
		h.BadRequest(c, "Failed to read request body")
		return
	}

	n, err := h.notifications.HandleNotification(c.Request.Context(), payload)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, WebhookResponse{
		Received:          true,
		EventType:         n.ObjectType + "." + n.EventType,
		SuccessfulPayment: n.IsSuccessfulPayment(),
	})
}
