package router

import (
	"github.com/erp/commerce-recurly/internal/interfaces/http/handler"
	"github.com/gin-gonic/gin"
)

// Handlers are the endpoint handlers served by the gateway.
type Handlers struct {
	Payment *handler.PaymentHandler
	Admin   *handler.AdminHandler
	Webhook *handler.WebhookHandler
	Health  *handler.HealthHandler
}

// RegisterGatewayRoutes adds the gateway routes to r. adminAuth guards the
// settings API.
//
//	POST /api/v1/payment/:gateway_id/return
//	POST /payment/:gateway_id/offsite-form
//	GET|PUT /admin/gateways/:gateway_id
//	GET|PUT /admin/custom-fields
//	POST /webhooks/recurly
//	GET /health
func RegisterGatewayRoutes(r *Router, h Handlers, adminAuth gin.HandlerFunc) {
	paymentAPI := NewRouteGroup("/payment")
	paymentAPI.POST("/:gateway_id/return", h.Payment.OnReturn)
	r.Register(paymentAPI)

	checkout := NewRouteGroup("/payment")
	checkout.POST("/:gateway_id/offsite-form", h.Payment.OffsiteForm)
	r.RegisterRoot(checkout)

	admin := NewRouteGroup("/admin")
	if adminAuth != nil {
		admin.Use(adminAuth)
	}
	admin.Group("/gateways").
		GET("/:gateway_id", h.Admin.GetGateway).
		PUT("/:gateway_id", h.Admin.SaveGateway)
	admin.Group("/custom-fields").
		GET("", h.Admin.GetCustomFields).
		PUT("", h.Admin.SaveCustomFields)
	r.RegisterRoot(admin)

	webhooks := NewRouteGroup("/webhooks")
	webhooks.POST("/recurly", h.Webhook.Receive)
	r.RegisterRoot(webhooks)

	health := NewRouteGroup("/health")
	health.GET("", h.Health.Health)
	r.RegisterRoot(health)
}
