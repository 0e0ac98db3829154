// README: Firebase bearer-token auth and the admin-role gate.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tripbench/internal/infra"
)

const (
	ctxUID   = "auth.uid"
	ctxRole  = "auth.role"
	ctxToken = "auth.token"
)

// Auth verifies the Authorization bearer token and stores the caller in the context.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			return
		}
		token, err := verifier.VerifyIDToken(c.Request.Context(), strings.TrimSpace(raw))
		if err != nil || token == nil {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
			return
		}
		role, _ := token.Claims["role"].(string)
		c.Set(ctxUID, token.UID)
		c.Set(ctxRole, role)
		c.Set(ctxToken, token)
		c.Next()
	}
}

// RequireAdmin must run after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, _ := c.Get(ctxToken)
		token, _ := v.(*infra.FirebaseToken)
		if !token.IsAdmin() {
			abort(c, http.StatusForbidden, "FORBIDDEN", "admin role required")
			return
		}
		c.Next()
	}
}

func CallerUID(c *gin.Context) string {
	return c.GetString(ctxUID)
}

func CallerRole(c *gin.Context) string {
	return c.GetString(ctxRole)
}

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": code})
}
