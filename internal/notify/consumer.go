package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/redmonkez12/taskhive/internal/logging"
)

// Handler processes one dequeued notification.
type Handler func(ctx context.Context, msg Message) error

// Consumer drains the notification queue and hands messages to a Handler.
// Delivery is best-effort: a message that fails to decode or send is logged
// and dropped, never retried.
type Consumer struct {
	client  *redis.Client
	key     string
	handler Handler
	logger  *logging.Logger
}

func NewConsumer(client *redis.Client, key string, handler Handler, logger *logging.Logger) *Consumer {
	return &Consumer{
		client:  client,
		key:     key,
		handler: handler,
		logger:  logger,
	}
}

// Run blocks on the queue until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info("notification worker started", "queue", c.key)

	for {
		values, err := c.client.BRPop(ctx, 5*time.Second, c.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				c.logger.Info("notification worker stopped")
				return
			}
			if errors.Is(err, redis.Nil) {
				continue // timeout, queue empty
			}
			c.logger.Error("failed to pop notification", "error", err.Error())
			continue
		}

		// BRPop returns [key, value]
		if len(values) != 2 {
			continue
		}

		var msg Message
		if err := json.Unmarshal([]byte(values[1]), &msg); err != nil {
			c.logger.Error("failed to decode notification", "error", err.Error())
			continue
		}

		if err := c.handler(ctx, msg); err != nil {
			c.logger.Error("failed to handle notification",
				"kind", msg.Kind,
				"error", err.Error(),
			)
		}
	}
}
