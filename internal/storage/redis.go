package storage

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/mselser95/bangr-engine/pkg/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// publisher is the subset of the redis client the sink needs.
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// RedisStorage implements Sink by publishing every event as JSON on
// "<prefix>:<event type>".
type RedisStorage struct {
	client publisher
	prefix string
	logger *zap.Logger
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	ChannelPrefix string
	Logger        *zap.Logger
}

// NewRedisStorage connects to Redis and verifies the connection.
func NewRedisStorage(ctx context.Context, cfg *RedisConfig) (*RedisStorage, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	cfg.Logger.Info("redis-storage-connected",
		zap.String("addr", cfg.Addr),
		zap.String("channel-prefix", cfg.ChannelPrefix))

	return newRedisStorage(rdb, cfg.ChannelPrefix, cfg.Logger), nil
}

func newRedisStorage(client publisher, prefix string, logger *zap.Logger) *RedisStorage {
	if prefix == "" {
		prefix = "bangr"
	}
	return &RedisStorage{client: client, prefix: prefix, logger: logger}
}

// Channel returns the pub/sub channel an event type is published on.
func (r *RedisStorage) Channel(eventType types.EventType) string {
	return r.prefix + ":" + string(eventType)
}

// Store publishes the full event envelope.
func (r *RedisStorage) Store(ctx context.Context, ev *types.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	channel := r.Channel(ev.Type)
	receivers, err := r.client.Publish(ctx, channel, body).Result()
	if err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}

	r.logger.Debug("event-published",
		zap.String("channel", channel),
		zap.Uint64("sequence", ev.Sequence),
		zap.Int64("receivers", receivers))
	return nil
}

// Close closes the redis client.
func (r *RedisStorage) Close() error {
	r.logger.Info("closing-redis-storage")
	return r.client.Close()
}
