package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erp/commerce-recurly/internal/infrastructure/auth"
	"github.com/erp/commerce-recurly/internal/infrastructure/config"
	"github.com/erp/commerce-recurly/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret: "test-secret-key-at-least-32-chars",
		Issuer: "test-issuer",
	})
}

func newTestToken(t *testing.T, svc *auth.JWTService, ttl time.Duration, scopes ...string) string {
	t.Helper()
	token, _, err := svc.GenerateToken(auth.GenerateTokenInput{
		Subject:  "operator-1",
		Username: "ops",
		Scopes:   scopes,
		TTL:      ttl,
	})
	require.NoError(t, err)
	return token
}

func newJWTRouter(svc *auth.JWTService) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), JWTAuthMiddleware(svc))
	router.GET("/admin", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"subject": GetJWTSubject(c)})
	})
	return router
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *dto.ErrorInfo {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp.Error
}

func TestJWTAuthMiddleware_ValidToken(t *testing.T) {
	svc := newTestJWTService()
	token := newTestToken(t, svc, time.Minute, auth.ScopeGatewayAdmin)

	router := gin.New()
	router.Use(JWTAuthMiddleware(svc))
	router.GET("/admin", func(c *gin.Context) {
		claims := GetJWTClaims(c)
		require.NotNil(t, claims)
		assert.Equal(t, "operator-1", claims.Subject)
		assert.Equal(t, "operator-1", GetJWTSubject(c))
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJWTAuthMiddleware_MissingHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	newJWTRouter(newTestJWTService()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	errInfo := decodeError(t, rec)
	assert.Equal(t, dto.ErrCodeTokenInvalid, errInfo.Code)
	assert.NotEmpty(t, errInfo.RequestID)
}

func TestJWTAuthMiddleware_InvalidFormat(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Basic abc123")
	rec := httptest.NewRecorder()
	newJWTRouter(newTestJWTService()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthMiddleware_ExpiredToken(t *testing.T) {
	svc := newTestJWTService()
	token := newTestToken(t, svc, -time.Minute, auth.ScopeGatewayAdmin)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	newJWTRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, dto.ErrCodeTokenExpired, decodeError(t, rec).Code)
}

func TestJWTAuthMiddleware_MissingScope(t *testing.T) {
	svc := newTestJWTService()
	token := newTestToken(t, svc, time.Minute, "reports:read")

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	newJWTRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, dto.ErrCodeForbidden, decodeError(t, rec).Code)
}

func TestJWTAuthMiddleware_CustomErrorHandler(t *testing.T) {
	var got error
	router := gin.New()
	router.Use(JWTAuthMiddlewareWithConfig(JWTMiddlewareConfig{
		JWTService: newTestJWTService(),
		OnError: func(c *gin.Context, err error) {
			got = err
			c.AbortWithStatus(http.StatusTeapot)
		},
	}))
	router.GET("/admin", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.ErrorIs(t, got, auth.ErrInvalidToken)
}

func TestGetJWTClaims_NotSet(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, GetJWTClaims(c))
	assert.Empty(t, GetJWTSubject(c))
}

func TestBearerToken(t *testing.T) {
	token, err := bearerToken("Bearer abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	for _, header := range []string{"", "Bearer ", "Bearer   ", "bearer abc", "Basic abc"} {
		_, err := bearerToken(header)
		assert.ErrorIs(t, err, auth.ErrInvalidToken, header)
	}
}

func TestAuthFailure(t *testing.T) {
	status, code, _ := authFailure(auth.ErrTokenNotYetValid)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, dto.ErrCodeTokenInvalid, code)

	status, code, _ = authFailure(errors.New("unexpected"))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, dto.ErrCodeUnauthorized, code)
}
