package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())

	assert.NotNil(t, r)
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.api)
	assert.Empty(t, r.root)
}

func TestRouterWithAPIVersion(t *testing.T) {
	r := NewRouter(gin.New(), WithAPIVersion("v2"))

	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup_APIAndRoot(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v1"))

	api := NewRouteGroup("/payment")
	api.POST("/:gateway_id/return", func(c *gin.Context) {
		c.String(http.StatusOK, "return "+c.Param("gateway_id"))
	})

	webhooks := NewRouteGroup("/webhooks")
	webhooks.POST("/recurly", func(c *gin.Context) {
		c.String(http.StatusOK, "webhook")
	})

	r.Register(api).RegisterRoot(webhooks)
	r.Setup()

	w := serve(engine, http.MethodPost, "/api/v1/payment/recurly/return")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "return recurly", w.Body.String())

	w = serve(engine, http.MethodPost, "/webhooks/recurly")
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusNotFound, serve(engine, http.MethodPost, "/api/v1/webhooks/recurly").Code)
	assert.Equal(t, http.StatusNotFound, serve(engine, http.MethodPost, "/payment/recurly/return").Code)
}

func TestRouteGroup(t *testing.T) {
	t.Run("registers routes per method", func(t *testing.T) {
		engine := gin.New()
		g := NewRouteGroup("/test")
		g.GET("/a", func(c *gin.Context) { c.String(http.StatusOK, "a") }).
			POST("/b", func(c *gin.Context) { c.String(http.StatusCreated, "b") }).
			PUT("/c/:id", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) })

		g.RegisterRoutes(engine.Group("/api/v1"))

		assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/v1/test/a").Code)
		assert.Equal(t, http.StatusCreated, serve(engine, http.MethodPost, "/api/v1/test/b").Code)
		w := serve(engine, http.MethodPut, "/api/v1/test/c/123")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "123", w.Body.String())
	})

	t.Run("applies middleware to the group only", func(t *testing.T) {
		engine := gin.New()
		r := NewRouter(engine)

		guarded := NewRouteGroup("/admin")
		guarded.Use(func(c *gin.Context) {
			c.AbortWithStatus(http.StatusUnauthorized)
		})
		guarded.GET("/items", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

		open := NewRouteGroup("/health")
		open.GET("", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

		r.RegisterRoot(guarded).RegisterRoot(open)
		r.Setup()

		assert.Equal(t, http.StatusUnauthorized, serve(engine, http.MethodGet, "/admin/items").Code)
		assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/health").Code)
	})

	t.Run("creates subgroups", func(t *testing.T) {
		engine := gin.New()
		g := NewRouteGroup("/admin")

		g.Group("/gateways").GET("/:gateway_id", func(c *gin.Context) {
			c.String(http.StatusOK, "gateway "+c.Param("gateway_id"))
		})
		g.Group("/custom-fields").GET("", func(c *gin.Context) {
			c.String(http.StatusOK, "custom fields")
		})

		g.RegisterRoutes(engine.Group(""))

		w := serve(engine, http.MethodGet, "/admin/gateways/recurly")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "gateway recurly", w.Body.String())

		w = serve(engine, http.MethodGet, "/admin/custom-fields")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "custom fields", w.Body.String())
	})
}
