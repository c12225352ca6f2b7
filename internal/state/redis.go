package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/amishk599/shiftalert/internal/model"
)

// Ensure RedisStore implements model.StateStore.
var _ model.StateStore = (*RedisStore)(nil)

// RedisStore keeps the notification state under a single redis key, for
// deployments without a persistent disk.
type RedisStore struct {
	client *redis.Client
	key    string
	logger *slog.Logger
}

// NewRedisStore connects to redis and verifies the connection.
func NewRedisStore(ctx context.Context, opts *redis.Options, prefix string, logger *slog.Logger) (*RedisStore, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", opts.Addr, err)
	}
	if prefix == "" {
		prefix = "shiftalert"
	}
	logger.Info("connected to redis", "addr", opts.Addr, "db", opts.DB)
	return &RedisStore{
		client: client,
		key:    prefix + ":last_message",
		logger: logger,
	}, nil
}

// Load reads the stored state. A missing key yields empty state.
func (s *RedisStore) Load(ctx context.Context) (model.NotificationState, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.NotificationState{}, nil
	}
	if err != nil {
		return model.NotificationState{}, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	return decode(data)
}

// Save overwrites the stored state. The key never expires.
func (s *RedisStore) Save(ctx context.Context, st model.NotificationState) error {
	data, err := encode(st)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

// Close closes the redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
