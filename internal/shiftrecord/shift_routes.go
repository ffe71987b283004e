package shiftrecord

import (
	"go-timetrack/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

func RegisterRoutes(r *gin.RouterGroup, h *Handler, rdb *redis.Client) {
	shifts := r.Group("/shifts")
	shifts.Use(middleware.AuthMiddleware())
	shifts.Use(middleware.RateLimitByUser(rate.Limit(5), 10))
	{
		shifts.POST("/clock-in", middleware.Idempotency(rdb), h.ClockIn)
		shifts.POST("/clock-out", middleware.Idempotency(rdb), h.ClockOut)
		shifts.PATCH("", h.Edit)
	}
}
