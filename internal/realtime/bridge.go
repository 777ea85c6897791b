package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// BridgeChannel is the redis channel events travel on between processes.
const BridgeChannel = "opsdash.realtime"

const publishTimeout = 2 * time.Second

// RedisBridge carries events between processes over redis pub/sub. The
// process that owns the database listener publishes through the bridge;
// every API instance runs the bridge to feed its local hub. Each bridge
// stamps its own origin and ignores frames carrying it.
type RedisBridge struct {
	client *redis.Client
	local  Publisher
	origin string
	logger *slog.Logger
}

// NewRedisBridge builds a bridge delivering remote events to local, which
// may be nil for a publish-only process.
func NewRedisBridge(client *redis.Client, local Publisher, logger *slog.Logger) *RedisBridge {
	if logger == nil {
		logger = slog.Default()
	}
	origin := uuid.NewString()
	return &RedisBridge{
		client: client,
		local:  local,
		origin: origin,
		logger: logger.With(slog.String("component", "redis_bridge"), slog.String("origin", origin)),
	}
}

// Origin identifies this process on the bridge.
func (b *RedisBridge) Origin() string { return b.origin }

// Publish delivers ev locally and relays it to the other processes.
func (b *RedisBridge) Publish(ev Event) {
	if b.local != nil {
		b.local.Publish(ev)
	}
	ev.Origin = b.origin
	payload, err := json.Marshal(ev)
	if err != nil {
		b.logger.Warn("encode event", slog.Any("error", err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := b.client.Publish(ctx, BridgeChannel, payload).Err(); err != nil {
		b.logger.Warn("relay event", slog.String("table", ev.Table), slog.Any("error", err))
	}
}

// Run relays events published by other processes into the local hub until
// ctx is done.
func (b *RedisBridge) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, BridgeChannel)
	defer func() { _ = pubsub.Close() }()
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.logger.Warn("dropping malformed event", slog.Any("error", err))
				continue
			}
			if ev.Origin == b.origin || b.local == nil {
				continue
			}
			b.local.Publish(ev)
		}
	}
}
