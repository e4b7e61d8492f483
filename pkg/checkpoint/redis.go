package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultRedisKeyPrefix namespaces checkpoint keys.
const DefaultRedisKeyPrefix = "mqttnorth:checkpoint:"

// RedisConfig holds the configuration for the Redis client.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// RedisStore keeps checkpoints in Redis, one string key per stream.
type RedisStore struct {
	redisClient *redis.Client
	keyPrefix   string
	logger      zerolog.Logger
}

// NewRedisStore creates and connects a RedisStore.
// It pings the Redis server to ensure connectivity before returning.
func NewRedisStore(ctx context.Context, cfg *RedisConfig, logger zerolog.Logger) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info().Str("redis_address", cfg.Addr).Msg("Successfully connected to Redis.")

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisStore{
		redisClient: rdb,
		keyPrefix:   prefix,
		logger:      logger.With().Str("component", "RedisCheckpointStore").Logger(),
	}, nil
}

func (s *RedisStore) key(streamID int) string {
	return s.keyPrefix + strconv.Itoa(streamID)
}

// Load returns the checkpoint for the stream. A missing key is a zero checkpoint.
func (s *RedisStore) Load(ctx context.Context, streamID int) (int64, error) {
	key := s.key(streamID)
	lastID, err := s.redisClient.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		s.logger.Debug().Str("key", key).Msg("No checkpoint stored, starting from zero.")
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load checkpoint %s: %w", key, err)
	}
	return lastID, nil
}

// Save stores the checkpoint for the stream without expiry.
func (s *RedisStore) Save(ctx context.Context, streamID int, lastID int64) error {
	key := s.key(streamID)
	if err := s.redisClient.Set(ctx, key, lastID, 0).Err(); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to save checkpoint.")
		return fmt.Errorf("failed to save checkpoint %s: %w", key, err)
	}
	s.logger.Debug().Str("key", key).Int64("last_id", lastID).Msg("Checkpoint saved.")
	return nil
}

// Close closes the Redis client connection.
func (s *RedisStore) Close() error {
	if s.redisClient != nil {
		s.logger.Info().Msg("Closing Redis client connection...")
		return s.redisClient.Close()
	}
	return nil
}
