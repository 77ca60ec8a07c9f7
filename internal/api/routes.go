package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRoutes sets up the API routes
func SetupRoutes(handler *Handler, logger *zap.Logger) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(Recovery())
	router.Use(CORS())
	router.Use(Logger(logger))

	// Health check
	router.GET("/health", handler.HealthCheck)

	// API v1
	v1 := router.Group("/api/v1")
	{
		logbooks := v1.Group("/logbooks")
		{
			logbooks.GET("", handler.GetLogBooks)
			logbooks.GET("/:council", handler.GetLogBook)
		}

		v1.GET("/failing", handler.GetFailing)
		v1.GET("/aggregations", handler.GetAggregations)
	}

	return router
}
