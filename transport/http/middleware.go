package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/credano/bifrost/core"
	"github.com/credano/bifrost/service"
)

// SessionRequired rejects requests while the bridge holds no
// authenticated session.
func SessionRequired(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, _ := auth.Status()
		if status != core.StatusAuthenticated {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}

		session := auth.CurrentSession()
		if session == nil || session.Expired(time.Now()) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		c.Set("userID", session.UserID)

		c.Next()
	}
}
