// Package middleware holds the gin middleware shared by the HTTP routes: Bearer auth,
// request logging and tracing.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"otp-auth-service/internal/security"
)

const bearerPrefix = "bearer "

// AccessTokenVerifier verifies access tokens. Implemented by *security.TokenProvider.
type AccessTokenVerifier interface {
	VerifyAccessToken(token string) (*security.TokenClaims, error)
}

// RequireAuth returns middleware that validates the Bearer access token in the Authorization
// header and stores the caller's identity in the request context. Missing, malformed, invalid
// or expired tokens get 401.
func RequireAuth(tokens AccessTokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c.GetHeader("Authorization"))
		if token == "" {
			unauthorized(c)
			return
		}
		claims, err := tokens.VerifyAccessToken(token)
		if err != nil {
			unauthorized(c)
			return
		}
		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), claims.UserID, claims.PhoneNumber))
		c.Next()
	}
}

func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
}

// extractBearer returns the token from an Authorization header value, or "" if missing or malformed.
func extractBearer(header string) string {
	v := strings.TrimSpace(header)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
