package handler

import (
	"context"

	appgateway "github.com/erp/commerce-recurly/internal/application/gateway"
	"github.com/erp/commerce-recurly/internal/domain/gateway"
	"github.com/gin-gonic/gin"
)

// ConfigurationManager reads and writes gateway settings.
type ConfigurationManager interface {
	GetConfiguration(ctx context.Context, gatewayID string) (*gateway.Configuration, error)
	SaveConfiguration(ctx context.Context, gatewayID string, input appgateway.SaveConfigurationInput) (*gateway.Configuration, error)
	GetCustomFields(ctx context.Context) (gateway.CustomFieldMappings, error)
	SaveCustomFields(ctx context.Context, mappings gateway.CustomFieldMappings) (gateway.CustomFieldMappings, error)
}

// AdminHandler serves the gateway settings API. Routes are JWT protected.
type AdminHandler struct {
	BaseHandler
	configs ConfigurationManager
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(configs ConfigurationManager) *AdminHandler {
	return &AdminHandler{configs: configs}
}

// GatewayConfigurationRequest is the settings form of one gateway.
// PrivateKey may be left empty to keep the stored key.
type GatewayConfigurationRequest struct {
	Label                string                    `json:"label" binding:"max=255"`
	Mode                 gateway.Mode              `json:"mode"`
	Subdomain            string                    `json:"subdomain" binding:"omitempty,max=100,subdomain"`
	PrivateKey           string                    `json:"private_key"`
	PublicKey            string                    `json:"public_key"`
	UseSharedCredentials bool                      `json:"use_shared_credentials"`
	AccountIDPatterns    gateway.AccountIDPatterns `json:"account_id_patterns"`
	PlanVariationTypes   []string                  `json:"plan_product_variations"`
}

// GatewayConfigurationResponse is a gateway configuration without its private key.
type GatewayConfigurationResponse struct {
	*gateway.Configuration
	HasPrivateKey bool `json:"has_private_key"`
}

func newGatewayConfigurationResponse(cfg *gateway.Configuration) GatewayConfigurationResponse {
	return GatewayConfigurationResponse{Configuration: cfg, HasPrivateKey: cfg.PrivateKey != ""}
}

// GetGateway handles GET /admin/gateways/:gateway_id.
func (h *AdminHandler) GetGateway(c *gin.Context) {
	cfg, err := h.configs.GetConfiguration(c.Request.Context(), c.Param("gateway_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, newGatewayConfigurationResponse(cfg))
}

// SaveGateway handles PUT /admin/gateways/:gateway_id.
func (h *AdminHandler) SaveGateway(c *gin.Context) {
	var req GatewayConfigurationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	cfg, err := h.configs.SaveConfiguration(c.Request.Context(), c.Param("gateway_id"), appgateway.SaveConfigurationInput{
		Label:                req.Label,
		Mode:                 req.Mode,
		Subdomain:            req.Subdomain,
		PrivateKey:           req.PrivateKey,
		PublicKey:            req.PublicKey,
		UseSharedCredentials: req.UseSharedCredentials,
		AccountIDPatterns:    req.AccountIDPatterns,
		PlanVariationTypes:   req.PlanVariationTypes,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, newGatewayConfigurationResponse(cfg))
}

// GetCustomFields handles GET /admin/custom-fields.
func (h *AdminHandler) GetCustomFields(c *gin.Context) {
	mappings, err := h.configs.GetCustomFields(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, mappings)
}

// SaveCustomFields handles PUT /admin/custom-fields.
func (h *AdminHandler) SaveCustomFields(c *gin.Context) {
	var req gateway.CustomFieldMappings
	if !h.BindJSON(c, &req) {
		return
	}

	mappings, err := h.configs.SaveCustomFields(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, mappings)
}
