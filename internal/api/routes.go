package api

import (
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	api := router.Group("/api")
	{
		api.POST("/collect", handler.StartCollection)
		api.GET("/limits", handler.GetLimits)
		api.PUT("/limits/:type", handler.UpdateLimit)
		api.GET("/listings/recent", handler.GetRecentListings)
		api.GET("/health", handler.GetHealth)
	}
}
