package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/academy-api/pkg/errors"
	"github.com/noah-isme/academy-api/pkg/response"
	"github.com/noah-isme/academy-api/pkg/session"
	"github.com/noah-isme/academy-api/pkg/token"
)

// ContextUserKey is the gin context key storing token claims.
const ContextUserKey = "currentUser"

type authenticator interface {
	Authenticate(ctx context.Context, raw string) (*token.Claims, error)
}

// JWT protects routes by requiring a valid access token from the
// Authorization header or, failing that, the access_token cookie.
func JWT(auth authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := BearerToken(c)
		if raw == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, err := auth.Authenticate(c.Request.Context(), raw)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

// ClaimsFromContext returns the claims stored by JWT, if any.
func ClaimsFromContext(c *gin.Context) *token.Claims {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*token.Claims)
	return claims
}

// BearerToken returns the Authorization bearer token, falling back to the access_token cookie.
func BearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if raw := strings.TrimSpace(parts[1]); raw != "" {
				return raw
			}
		}
	}
	return session.AccessToken(c)
}
