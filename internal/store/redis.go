package store

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisKV backs token stores with Redis so sessions survive restarts and are
// shared across replicas.
type RedisKV struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisKV connects to Redis and verifies the connection.
func NewRedisKV(redisURL string, logger *zap.Logger) (*RedisKV, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	// Test the connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisKV{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (r *RedisKV) Close() error {
	return r.client.Close()
}

// Get retrieves a value; found is false when the key does not exist.
func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		r.logger.Error("Failed to get key from redis", zap.String("key", key), zap.Error(err))
		return "", false, err
	}
	return value, true, nil
}

// Set stores a value without expiry; token lifetime is governed by the
// backend, not the cache.
func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		r.logger.Error("Failed to set key in redis", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// Delete removes keys; deleting a missing key is not an error.
func (r *RedisKV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.logger.Error("Failed to delete keys from redis", zap.Strings("keys", keys), zap.Error(err))
		return err
	}
	return nil
}
