package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const LeaderKey = "scheduler:leader"

// Leader decides whether this instance may tick.
type Leader interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LocalLeader is used when there is no shared lock; the instance always ticks.
type LocalLeader struct{}

func (LocalLeader) Acquire(context.Context) (bool, error) { return true, nil }
func (LocalLeader) Release(context.Context) error         { return nil }

var (
	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// RedisLeader holds a lease on a Redis key. The holder extends the lease on
// every Acquire; anyone else can take it once it expires.
type RedisLeader struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisLeader(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisLeader {
	return &RedisLeader{
		client: client,
		key:    LeaderKey,
		token:  uuid.NewString(),
		ttl:    ttl,
		logger: logger.With("component", "scheduler_leader", "key", LeaderKey),
	}
}

func (l *RedisLeader) Acquire(ctx context.Context) (bool, error) {
	refreshed, err := refreshScript.Run(ctx, l.client, []string{l.key}, l.token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to refresh leader lease: %w", err)
	}
	if refreshed == 1 {
		return true, nil
	}

	acquired, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire leader lease: %w", err)
	}
	if acquired {
		l.logger.Info("Scheduler leadership acquired")
	}
	return acquired, nil
}

func (l *RedisLeader) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("failed to release leader lease: %w", err)
	}
	l.logger.Info("Scheduler leadership released")
	return nil
}
