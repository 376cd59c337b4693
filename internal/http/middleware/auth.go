// README: Firebase bearer-token auth and role gating.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"radar/internal/infra"
)

// Context keys set by Auth for downstream handlers.
const (
	CtxUserID = "auth_user_id"
	CtxRole   = "auth_role"
)

// Roles recognised in token claims.
const (
	RoleAdmin    = "admin"
	RoleHospital = "hospital"
	RoleDriver   = "driver"
)

// Auth verifies the Firebase ID token on the Authorization header and stores
// the caller identity on the request context. A nil verifier disables
// verification for local development; identity then comes from the
// X-User-ID and X-User-Role headers.
func Auth(verifier infra.TokenVerifier, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			c.Set(CtxUserID, c.GetHeader("X-User-ID"))
			c.Set(CtxRole, c.GetHeader("X-User-Role"))
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		decoded, err := verifier.VerifyIDToken(c.Request.Context(), token)
		if err != nil {
			log.WithError(err).Debug("token verification failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		role, _ := decoded.Claims["role"].(string)
		c.Set(CtxUserID, decoded.UID)
		c.Set(CtxRole, role)
		c.Next()
	}
}

// RequireRole rejects callers whose role claim matches none of the given
// roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(CtxRole)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
	}
}
