package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/erp/commerce-recurly/internal/infrastructure/auth"
	"github.com/erp/commerce-recurly/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Context keys set by the JWT middleware.
const (
	JWTClaimsKey  = "jwt_claims"
	JWTSubjectKey = "jwt_subject"
)

const bearerPrefix = "Bearer "

var (
	errMissingAuthHeader = errors.New("missing authorization header")
	errNotBearer         = errors.New("authorization header is not a bearer token")
)

// JWTMiddlewareConfig configures the admin authentication middleware.
type JWTMiddlewareConfig struct {
	JWTService *auth.JWTService
	// RequiredScope answers 403 for valid tokens without it. Empty accepts
	// any valid token.
	RequiredScope string
	// OnError replaces the default 401/403 response.
	OnError func(c *gin.Context, err error)
	Logger  *zap.Logger
}

// JWTAuthMiddleware guards the gateway admin API. Tokens must carry the
// gateway admin scope.
func JWTAuthMiddleware(jwtService *auth.JWTService) gin.HandlerFunc {
	return JWTAuthMiddlewareWithConfig(JWTMiddlewareConfig{
		JWTService:    jwtService,
		RequiredScope: auth.ScopeGatewayAdmin,
	})
}

// JWTAuthMiddlewareWithConfig validates the bearer token and stores its
// claims on the context.
func JWTAuthMiddlewareWithConfig(cfg JWTMiddlewareConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	fail := cfg.OnError
	if fail == nil {
		fail = func(c *gin.Context, err error) {
			log.Warn("Admin authentication failed",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
			)
			status, code, message := authFailure(err)
			c.AbortWithStatusJSON(status, dto.NewErrorResponseWithRequestID(code, message, GetRequestID(c)))
		}
	}

	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			fail(c, err)
			return
		}

		claims, err := cfg.JWTService.ValidateToken(token)
		if err != nil {
			fail(c, err)
			return
		}
		if cfg.RequiredScope != "" && !claims.HasScope(cfg.RequiredScope) {
			fail(c, auth.ErrMissingScope)
			return
		}

		c.Set(JWTClaimsKey, claims)
		c.Set(JWTSubjectKey, claims.Subject)
		c.Next()
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.Join(auth.ErrInvalidToken, errMissingAuthHeader)
	}
	token, ok := strings.CutPrefix(header, bearerPrefix)
	if !ok || strings.TrimSpace(token) == "" {
		return "", errors.Join(auth.ErrInvalidToken, errNotBearer)
	}
	return token, nil
}

func authFailure(err error) (status int, code, message string) {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, auth.ErrMissingScope):
		return http.StatusForbidden, dto.ErrCodeForbidden, "Token does not grant access to gateway administration"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrInvalidClaims),
		errors.Is(err, auth.ErrMissingSubject), errors.Is(err, auth.ErrTokenNotYetValid):
		return http.StatusUnauthorized, dto.ErrCodeTokenInvalid, "Invalid token"
	default:
		return http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Authentication required"
	}
}

// GetJWTClaims returns the claims of the authenticated admin, or nil.
func GetJWTClaims(c *gin.Context) *auth.Claims {
	claims, _ := c.Get(JWTClaimsKey)
	jwtClaims, _ := claims.(*auth.Claims)
	return jwtClaims
}

// GetJWTSubject returns the authenticated admin's subject.
func GetJWTSubject(c *gin.Context) string {
	return c.GetString(JWTSubjectKey)
}
