package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// connectTimeout bounds the initial Ping so a misconfigured or unreachable
// Redis doesn't hang process startup indefinitely.
const connectTimeout = 5 * time.Second

// minPoolSize is applied when the URL doesn't specify one: the adjudicator
// and scoring worker each hold a blocking XReadGroup connection plus
// whatever the ReclaimLoop and Publish calls need concurrently, so a
// single-connection pool would serialize them.
const minPoolSize = 10

// NewRedisClient creates a Redis client from the given URL and verifies
// connectivity before returning.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	if opts.PoolSize < minPoolSize {
		opts.PoolSize = minPoolSize
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return client, nil
}
