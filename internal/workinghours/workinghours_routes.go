package workinghours

import (
	"go-timetrack/internal/middleware"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func RegisterRoutes(r *gin.RouterGroup, h *Handler) {
	hours := r.Group("/working-hours")
	hours.Use(middleware.AuthMiddleware())
	hours.Use(middleware.RateLimitByUser(rate.Limit(10), 20))
	{
		hours.GET("", h.QueryShifts)
		hours.GET("/export", h.ExportView)
	}
}
