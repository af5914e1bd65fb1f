package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores JSON values under a namespaced key prefix.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

func NewRedisBackend(client *redis.Client, namespace string) *RedisBackend {
	return &RedisBackend{client: client, prefix: "mediashare:" + namespace + ":"}
}

// NewRedisClient parses a redis:// URL. An empty URL yields a nil client.
func NewRedisClient(rawURL string) (*redis.Client, error) {
	if rawURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

// GetJSON decodes the stored value into dst and reports whether it existed.
func (r *RedisBackend) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if r == nil || r.client == nil {
		return false, nil
	}
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (r *RedisBackend) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if r == nil || r.client == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.prefix+key, data, ttl).Err()
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Del(ctx, r.prefix+key).Err()
}

func (r *RedisBackend) Ping(ctx context.Context) error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Ping(ctx).Err()
}
