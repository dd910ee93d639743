package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Backend stores values as plain Redis strings.
type Backend struct {
	client redis.Cmdable
	ttl    time.Duration
}

// New creates a Redis backend. A zero ttl keeps keys until removed.
func New(client redis.Cmdable, ttl time.Duration) *Backend {
	return &Backend{client: client, ttl: ttl}
}

func (b *Backend) Get(ctx context.Context, key string) (v string, err error) {
	ctx, end := database.TraceQuery(ctx, "redis", "kv.get", "GET")
	defer func() { end(err) }()

	v, err = b.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperrors.NotFound("key", key)
		}
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

func (b *Backend) Set(ctx context.Context, key, value string) (err error) {
	ctx, end := database.TraceQuery(ctx, "redis", "kv.set", "SET")
	defer func() { end(err) }()

	if err = b.client.Set(ctx, key, value, b.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, key string) (err error) {
	ctx, end := database.TraceQuery(ctx, "redis", "kv.delete", "DEL")
	defer func() { end(err) }()

	if err = b.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (b *Backend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}
