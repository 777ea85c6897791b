// Package cache opens the Redis client shared by the analytics cache, the
// realtime bridge and the upload log.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// PingAttempts bounds how often New retries the initial ping.
const PingAttempts = 3

// New creates a Redis client and pings it. An empty addr returns nil, nil so
// callers fall back to their in-memory paths.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		MaxRetries:   1,
	})

	var err error
	backoff := 100 * time.Millisecond
	for attempt := 1; attempt <= PingAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err = client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			return client, nil
		}
		if attempt == PingAttempts {
			break
		}
		select {
		case <-ctx.Done():
			_ = client.Close()
			return nil, fmt.Errorf("platform/cache: ping %s: %w", addr, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	_ = client.Close()
	return nil, fmt.Errorf("platform/cache: ping %s after %d attempts: %w", addr, PingAttempts, err)
}
