package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter wires the portal's HTTP surface
func SetupRouter(hooks *HookHandler, multipart *MultipartHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	upload := router.Group("/api")
	{
		upload.POST("/upload-hooks", hooks.HandleEvent)
		upload.GET("/uploads/:id/progress", hooks.GetProgress)

		mp := upload.Group("/multipart")
		{
			mp.POST("", multipart.Create)
			mp.GET("/part", multipart.SignPart)
			mp.POST("/complete", multipart.Complete)
			mp.POST("/abort", multipart.Abort)
		}
	}

	return router
}
