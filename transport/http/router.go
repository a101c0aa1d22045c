package http

import (
	"github.com/gin-gonic/gin"

	"github.com/credano/bifrost/service"
)

// SetupRouter sets up the Gin router exposing the bridge to the dashboard.
func SetupRouter(auth *service.AuthService, watcher *service.TxWatcher) *gin.Engine {
	router := gin.Default()

	handlers := NewBridgeHandlers(auth, watcher)

	session := router.Group("/session")
	{
		session.GET("", handlers.Session)
		session.POST("/authenticate", handlers.Authenticate)
		session.POST("/restore", handlers.Restore)
		session.POST("/logout", handlers.Logout)
	}

	// Transaction tracking requires an authenticated session.
	tx := router.Group("/transactions")
	tx.Use(SessionRequired(auth))
	{
		tx.POST("", handlers.Track)
		tx.GET("/pending", handlers.PendingCount)
		tx.GET("/:hash", handlers.Transaction)
		tx.DELETE("/:hash", handlers.Acknowledge)
	}

	return router
}
