package app

import (
	"os"
	"strconv"

	"go-timetrack/internal/shared/connection"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultTZOffsetHours = 7

// tzOffsetFromEnv reads the display offset used for shift-date derivation
// and human-readable rendering. Persisted instants stay UTC regardless.
func tzOffsetFromEnv() int {
	raw := os.Getenv("TZ_OFFSET_HOURS")
	if raw == "" {
		return defaultTZOffsetHours
	}
	offset, err := strconv.Atoi(raw)
	if err != nil {
		zap.L().Warn("invalid TZ_OFFSET_HOURS, using default",
			zap.String("value", raw),
			zap.Int("default", defaultTZOffsetHours),
		)
		return defaultTZOffsetHours
	}
	return offset
}

func BuildApp(router *gin.Engine) error {
	gormDB, err := connection.ConnectGORMWithRetry(
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_SSLMODE"),
		5,
	)
	if err != nil {
		return err
	}
	zap.L().Info("database connection established")

	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}

	redisClient, err := connection.ConnectRedisWithRetry(os.Getenv("REDIS_ADDR"), 5)
	if err != nil {
		return err
	}
	zap.L().Info("redis connection established")

	return registerModules(router, sqlDB, gormDB, redisClient, tzOffsetFromEnv())
}
