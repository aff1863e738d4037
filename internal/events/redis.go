package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const DefaultChannel = "planets:events"

// RedisPublisher forwards bus events to a Redis pub/sub channel so other
// instances and external consumers can follow them.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

func NewRedisPublisher(client *redis.Client, channel string, logger *slog.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{
		client:  client,
		channel: channel,
		logger:  logger.With("component", "redis_event_publisher", "channel", channel),
	}
}

// Run drains sub until ctx is done or the subscription is closed.
func (p *RedisPublisher) Run(ctx context.Context, sub *Subscription) {
	defer sub.Close()
	p.logger.Info("Forwarding events to Redis")

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.C:
			if !ok {
				return
			}
			if err := p.publish(ctx, e); err != nil {
				p.logger.Error("Failed to publish event", "event_type", e.Type, "error", err)
			}
		}
	}
}

func (p *RedisPublisher) publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, payload).Err()
}
