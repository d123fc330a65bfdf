package auth

import (
	"crypto/subtle"
	"net/http"

	"cityquest/pkg/logger"

	"github.com/gin-gonic/gin"
)

const adminTokenHeader = "X-Admin-Token"

// AdminAuth guards the admin-only surface (quest catalog writes, cleanup)
// with a static shared secret.
type AdminAuth struct {
	token string
}

func NewAdminAuth(token string) *AdminAuth {
	return &AdminAuth{token: token}
}

func (a *AdminAuth) AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.Logger()

		provided := c.GetHeader(adminTokenHeader)
		if provided == "" {
			log.Info("missing admin token header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(a.token)) != 1 {
			log.Info("rejected admin request with invalid token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Next()
	}
}
