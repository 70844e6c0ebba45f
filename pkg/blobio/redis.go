package blobio

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Redis is a Redis-backed BlobIO. No redis: scheme is registered by
// NewRegistry; construct it with NewRedis. Redis string values
// are whole-value atomic already, so AtomicWrite needs no extra
// compare-and-swap dance: a SET either lands or doesn't, never torn.
type Redis struct {
	client *redis.Client
}

// NewRedis constructs a Redis blob store from connection options.
func NewRedis(opts *redis.Options) *Redis {
	return &Redis{client: redis.NewClient(opts)}
}

func (r *Redis) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	return data, nil
}

func (r *Redis) Write(ctx context.Context, key string, data []byte) error {
	return r.client.Set(ctx, key, data, 0).Err()
}

func (r *Redis) Append(ctx context.Context, key string, data []byte) error {
	return r.client.Append(ctx, key, string(data)).Err()
}

func (r *Redis) AtomicWrite(ctx context.Context, key string, data []byte) error {
	return r.client.Set(ctx, key, data, 0).Err()
}

func (r *Redis) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *Redis) Close() error { return r.client.Close() }
