package consumer

import (
	"context"
	"encoding/json"
	"time"

	"go-timetrack/internal/events"
	"go-timetrack/internal/shared/cachekey"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Presence entries outlive the longest plausible shift so a crashed
// clock-out does not pin a user online forever.
const presenceTTL = 24 * time.Hour

// ConsumeShiftLifecycle keeps the per-user presence flag in redis in sync
// with shift lifecycle events: a clock-in marks the user online, a
// clock-out offline. Edits do not touch presence.
func ConsumeShiftLifecycle(
	ctx context.Context,
	reader *kafkago.Reader,
	rdb *redis.Client,
	logger *zap.Logger,
) {
	log := logger.Named("kafka.consumer.shift_lifecycle")
	log.Info("shift lifecycle consumer started")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("shift lifecycle consumer stopped")
				return
			}
			log.Error("fetch shift lifecycle message failed", zap.Error(err))
			continue
		}

		var event events.ShiftLifecycleEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Error("decode shift lifecycle event failed", zap.Error(err))
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		var status string
		switch event.EventType {
		case events.ShiftClockedIn:
			status = "online"
		case events.ShiftClockedOut:
			status = "offline"
		default:
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		if err := rdb.Set(ctx, cachekey.Presence(event.UserID), status, presenceTTL).Err(); err != nil {
			log.Error("update presence failed",
				zap.String("user_id", event.UserID),
				zap.String("status", status),
				zap.Error(err),
			)
			continue
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit shift lifecycle message failed", zap.Error(err))
			continue
		}

		log.Info("presence updated from shift lifecycle event",
			zap.String("user_id", event.UserID),
			zap.String("status", status),
			zap.String("doc_id", event.DocID),
		)
	}
}
