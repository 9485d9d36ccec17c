package transport

import (
	"time"

	"github.com/ds124wfegd/facesvg/internal/transport/middleware"
	"github.com/gin-gonic/gin"
)

const serviceName = "face-segmentation-service"

func InitRoutes(jobHandler *JobHandler, requestTimeout time.Duration) *gin.Engine {
	router := gin.New()

	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.Timeout(requestTimeout))

	api := router.Group("/api/v1")
	{
		api.POST("/submit", jobHandler.Submit)
		api.GET("/status/:job_id", jobHandler.Status)
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": serviceName,
		})
	})
	return router
}
