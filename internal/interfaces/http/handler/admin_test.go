package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appgateway "github.com/erp/commerce-recurly/internal/application/gateway"
	"github.com/erp/commerce-recurly/internal/domain/gateway"
	"github.com/erp/commerce-recurly/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupAdminRouter(configs ConfigurationManager) *gin.Engine {
	h := NewAdminHandler(configs)
	router := gin.New()
	router.GET("/admin/gateways/:gateway_id", h.GetGateway)
	router.PUT("/admin/gateways/:gateway_id", h.SaveGateway)
	router.GET("/admin/custom-fields", h.GetCustomFields)
	router.PUT("/admin/custom-fields", h.SaveCustomFields)
	return router
}

func sendJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func testConfiguration() *gateway.Configuration {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &gateway.Configuration{
		ID:                 uuid.New(),
		GatewayID:          "recurly",
		Label:              "Recurly",
		Mode:               gateway.ModeTest,
		Subdomain:          "shop",
		PrivateKey:         "private-secret",
		PublicKey:          "ewr1-public",
		AccountIDPatterns:  gateway.AccountIDPatterns{Default: gateway.DefaultAccountIDPattern},
		PlanVariationTypes: []string{gateway.PlanVariationType},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func TestAdminHandler_GetGateway_HidesPrivateKey(t *testing.T) {
	configs := new(MockConfigurationManager)
	configs.On("GetConfiguration", mock.Anything, "recurly").Return(testConfiguration(), nil)

	w := sendJSON(setupAdminRouter(configs), http.MethodGet, "/admin/gateways/recurly", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "private-secret")

	data := decodeResponse(t, w).Data.(map[string]any)
	assert.Equal(t, "shop", data["subdomain"])
	assert.Equal(t, true, data["has_private_key"])
	assert.Equal(t, "recurly", data["gateway_id"])
}

func TestAdminHandler_GetGateway_NotFound(t *testing.T) {
	configs := new(MockConfigurationManager)
	configs.On("GetConfiguration", mock.Anything, "missing").Return(nil, gateway.ErrConfigurationNotFound)

	w := sendJSON(setupAdminRouter(configs), http.MethodGet, "/admin/gateways/missing", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.ErrCodeNotFound, decodeResponse(t, w).Error.Code)
}

func TestAdminHandler_SaveGateway(t *testing.T) {
	configs := new(MockConfigurationManager)
	configs.On("SaveConfiguration", mock.Anything, "recurly", appgateway.SaveConfigurationInput{
		Label:             "Recurly",
		Mode:              gateway.ModeLive,
		Subdomain:         "shop",
		PublicKey:         "ewr1-public",
		AccountIDPatterns: gateway.AccountIDPatterns{Default: "user-[commerce_order:uid:target_id]"},
	}).Return(testConfiguration(), nil)

	body := `{
		"label": "Recurly",
		"mode": "live",
		"subdomain": "shop",
		"public_key": "ewr1-public",
		"account_id_patterns": {"default": "user-[commerce_order:uid:target_id]"}
	}`
	w := sendJSON(setupAdminRouter(configs), http.MethodPut, "/admin/gateways/recurly", body)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeResponse(t, w).Success)
	configs.AssertExpectations(t)
}

func TestAdminHandler_SaveGateway_ValidationError(t *testing.T) {
	configs := new(MockConfigurationManager)
	configs.On("SaveConfiguration", mock.Anything, "recurly", mock.Anything).
		Return(nil, &gateway.ConfigurationValidationError{Fields: map[string]string{
			"account_id_patterns.default": "The default account ID pattern is required.",
		}})

	w := sendJSON(setupAdminRouter(configs), http.MethodPut, "/admin/gateways/recurly", `{"mode": "test"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, "account_id_patterns.default", resp.Error.Details[0].Field)
}

func TestAdminHandler_SaveGateway_LabelTooLong(t *testing.T) {
	configs := new(MockConfigurationManager)

	body := `{"label": "` + string(bytes.Repeat([]byte("x"), 256)) + `"}`
	w := sendJSON(setupAdminRouter(configs), http.MethodPut, "/admin/gateways/recurly", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	configs.AssertNotCalled(t, "SaveConfiguration", mock.Anything, mock.Anything, mock.Anything)
}

func TestAdminHandler_CustomFields(t *testing.T) {
	mappings := gateway.CustomFieldMappings{
		Account:      map[string]string{"crm_id": "[commerce_order:uid:target_id]"},
		Subscription: map[string]string{},
		Item:         map[string]string{},
	}

	configs := new(MockConfigurationManager)
	configs.On("GetCustomFields", mock.Anything).Return(mappings, nil)
	configs.On("SaveCustomFields", mock.Anything, mappings).Return(mappings, nil)

	router := setupAdminRouter(configs)

	w := sendJSON(router, http.MethodGet, "/admin/custom-fields", "")
	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeResponse(t, w).Data.(map[string]any)
	assert.Equal(t, map[string]any{"crm_id": "[commerce_order:uid:target_id]"}, data["account_fields"])

	body := `{
		"account_fields": {"crm_id": "[commerce_order:uid:target_id]"},
		"subscription_fields": {},
		"item_fields": {}
	}`
	w = sendJSON(router, http.MethodPut, "/admin/custom-fields", body)
	assert.Equal(t, http.StatusOK, w.Code)
	configs.AssertExpectations(t)
}
