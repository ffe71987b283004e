package app

import (
	"database/sql"

	"go-timetrack/internal/identity"
	"go-timetrack/internal/messaging/kafka"
	"go-timetrack/internal/middleware"
	"go-timetrack/internal/shiftrecord"
	"go-timetrack/internal/workinghours"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

func registerModules(
	router *gin.Engine,
	db *sql.DB,
	gormDB *gorm.DB,
	rdb *redis.Client,
	tzOffset int,
) error {
	logger := zap.L()

	router.Use(middleware.RequestID())
	router.Use(middleware.ContextLogger(logger))
	// Coarse pre-auth limit; the per-user limits on each route group are
	// the ones that actually shape authenticated traffic.
	router.Use(middleware.RateLimitByIP(rate.Limit(50), 100))

	// --- Repositories ---
	identityRepo := identity.NewRepository(gormDB)
	shiftRepo := shiftrecord.NewRepository(gormDB)
	outboxRepo := kafka.NewOutboxRepository(db)

	// --- Services ---
	resolver := identity.NewResolver(identityRepo)
	shiftService := shiftrecord.NewServiceWithOutbox(db, shiftRepo, resolver, outboxRepo, rdb, tzOffset, logger)
	workingHoursService := workinghours.NewService(shiftRepo, rdb, tzOffset, logger)

	// --- Handlers ---
	shiftHandler := shiftrecord.NewHandlerWithRedis(shiftService, rdb)
	workingHoursHandler := workinghours.NewHandler(workingHoursService)

	// --- Routes Registration ---
	api := router.Group("/api/v1")
	{
		shiftrecord.RegisterRoutes(api, shiftHandler, rdb)
		workinghours.RegisterRoutes(api, workingHoursHandler)
	}

	return nil
}
