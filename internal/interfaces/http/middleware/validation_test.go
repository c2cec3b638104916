package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erp/commerce-recurly/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type siteForm struct {
	Label     string `json:"label" binding:"max=10"`
	Mode      string `json:"mode" binding:"required,oneof=test live"`
	Subdomain string `json:"subdomain" binding:"omitempty,subdomain"`
	ReturnURL string `json:"return_url" binding:"required,url"`
}

func bindRouter() *gin.Engine {
	SetupValidator()
	router := gin.New()
	router.POST("/forms", func(c *gin.Context) {
		var req siteForm
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"subdomain": req.Subdomain})
	})
	return router
}

func postForm(router *gin.Engine, body string) (*httptest.ResponseRecorder, dto.Response) {
	req := httptest.NewRequest(http.MethodPost, "/forms", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp dto.Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestSetupValidator(t *testing.T) {
	SetupValidator()
	SetupValidator()

	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)
	assert.NoError(t, v.Var("acme-shop", "subdomain"))
	assert.Error(t, v.Var("Acme_Shop", "subdomain"))
	assert.Error(t, v.Var("-shop", "subdomain"))
}

func TestHandleValidationError(t *testing.T) {
	router := bindRouter()

	t.Run("valid form", func(t *testing.T) {
		w, _ := postForm(router, `{"mode":"live","subdomain":"acme","return_url":"https://shop.example.com/done"}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("field errors use json names", func(t *testing.T) {
		w, resp := postForm(router, `{"label":"a label that is too long","mode":"prod","subdomain":"Acme!","return_url":"nope"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.Equal(t, "Request validation failed", resp.Error.Message)

		messages := map[string]string{}
		for _, d := range resp.Error.Details {
			messages[d.Field] = d.Message
		}
		assert.Equal(t, map[string]string{
			"label":      "Must be at most 10 characters",
			"mode":       "Must be one of: test live",
			"subdomain":  "Must be a Recurly site subdomain",
			"return_url": "Invalid URL format",
		}, messages)
	})

	t.Run("missing required fields", func(t *testing.T) {
		w, resp := postForm(router, `{}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.NotNil(t, resp.Error)
		require.Len(t, resp.Error.Details, 2)
		assert.Equal(t, "This field is required", resp.Error.Details[0].Message)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		w, resp := postForm(router, `{"mode":`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeInvalidJSON, resp.Error.Code)
	})
}
