package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/erp/printdispatch/internal/infrastructure/auth"
	"github.com/erp/printdispatch/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// JWT context keys
const (
	JWTClaimsKey  = "jwt_claims"
	JWTSubjectKey = "jwt_subject"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// TokenValidator validates bearer tokens
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.Claims, error)
}

// JWTAuth rejects requests without a valid bearer token. The token subject is
// stored on the gin context and added to the request logger.
func JWTAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthHeaderKey)
		if authHeader == "" {
			abortUnauthorized(c, auth.ErrInvalidToken, "missing authorization header")
			return
		}
		if !strings.HasPrefix(authHeader, BearerPrefix) {
			abortUnauthorized(c, auth.ErrInvalidToken, "invalid authorization header format")
			return
		}
		tokenString := strings.TrimPrefix(authHeader, BearerPrefix)
		if tokenString == "" {
			abortUnauthorized(c, auth.ErrInvalidToken, "missing token")
			return
		}

		claims, err := validator.ValidateToken(tokenString)
		if err != nil {
			abortUnauthorized(c, err, "token validation failed")
			return
		}

		c.Set(JWTClaimsKey, claims)
		c.Set(JWTSubjectKey, claims.Subject)

		ctx := c.Request.Context()
		log := logger.FromContext(ctx).With(zap.String("subject", claims.Subject))
		c.Request = c.Request.WithContext(logger.WithContext(ctx, log))
		c.Set("logger", log)

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, err error, message string) {
	logger.FromContext(c.Request.Context()).Warn("JWT authentication failed",
		zap.Error(err),
		zap.String("message", message),
	)

	errorCode := "ERR_UNAUTHORIZED"
	errorMessage := "authentication required"
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		errorCode = "ERR_TOKEN_EXPIRED"
		errorMessage = "token has expired"
	case errors.Is(err, auth.ErrTokenNotYetValid):
		errorCode = "ERR_TOKEN_NOT_VALID"
		errorMessage = "token is not yet valid"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingSubject):
		errorCode = "ERR_INVALID_TOKEN"
		errorMessage = "invalid token"
	}

	c.Header("WWW-Authenticate", `Bearer realm="printd"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    errorCode,
			"message": errorMessage,
		},
	})
}

// GetJWTSubject returns the authenticated subject, or "" on unauthenticated routes
func GetJWTSubject(c *gin.Context) string {
	return c.GetString(JWTSubjectKey)
}
