package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	cacheVersionKey = "opsdash:analytics:version"
	keyPrefix       = "opsdash:analytics"
	// BumpChannel carries the new version after each invalidation.
	BumpChannel = "analytics.bump"
)

// Cache wraps Redis based caching with versioning controls. A nil Cache, or
// one without a client, calls loaders directly.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		// SetNX so two instances starting together agree on the first version.
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, cacheVersionKey).Int64()
	}
	if err != nil {
		return 0, err
	}
	if ver <= 0 {
		ver = 1
		if err := c.client.Set(ctx, cacheVersionKey, ver, 0).Err(); err != nil {
			return 0, err
		}
	}
	return ver, nil
}

// BuildKey composes the cache key with the current version.
func (c *Cache) BuildKey(ctx context.Context, parts ...string) (string, error) {
	joined := keyPrefix + ":" + strings.Join(parts, ":")
	if !c.enabled() {
		return joined, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d", joined, ver), nil
}

// Fetch loads a cached value or populates it using the loader. Concurrent
// misses on one key share a single loader call. Redis failures degrade to
// calling the loader; loader errors are never cached.
func Fetch[T any](ctx context.Context, c *Cache, loader func(context.Context) (T, error), parts ...string) (T, error) {
	if !c.enabled() {
		return loader(ctx)
	}
	key, err := c.BuildKey(ctx, parts...)
	if err != nil {
		c.logger.Warn("analytics cache version unavailable", slog.Any("error", err))
		return loader(ctx)
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		payload, err := c.client.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var cached T
			if jerr := json.Unmarshal(payload, &cached); jerr == nil {
				return cached, nil
			}
		case !errors.Is(err, redis.Nil):
			c.logger.Warn("analytics cache read failed", slog.String("key", key), slog.Any("error", err))
		}

		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return value, nil
		}
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.logger.Warn("analytics cache write failed", slog.String("key", key), slog.Any("error", err))
		}
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Bump invalidates the cache by incrementing the global version and publishing an event.
func (c *Cache) Bump(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, BumpChannel, strconv.FormatInt(ver, 10)).Err()
}

// Invalidate is Bump with the failure logged. It matches the change hook of
// the order and invoice services.
func (c *Cache) Invalidate(ctx context.Context, table string) {
	if err := c.Bump(ctx); err != nil {
		c.logger.Warn("analytics cache bump failed", slog.String("table", table), slog.Any("error", err))
	}
}

// ListenForInvalidation subscribes to version bumps and calls fn with each
// new version until ctx is done.
func (c *Cache) ListenForInvalidation(ctx context.Context, fn func(version int64)) error {
	if !c.enabled() || fn == nil {
		return nil
	}
	pubsub := c.client.Subscribe(ctx, BumpChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				ver, err := strconv.ParseInt(msg.Payload, 10, 64)
				if err != nil {
					continue
				}
				fn(ver)
			}
		}
	}()
	return nil
}
