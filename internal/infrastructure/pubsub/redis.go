package pubsub

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"ForumMirror/internal/ports"
)

// Dial connects to Redis and checks the connection.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// RedisBroadcaster publishes messages on one Redis channel. Delivery is fire-and-forget.
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

var _ ports.Broadcaster = (*RedisBroadcaster)(nil)

// NewRedisBroadcaster binds a client to a channel.
func NewRedisBroadcaster(client *redis.Client, channel string, logger *slog.Logger) *RedisBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBroadcaster{client: client, channel: channel, logger: logger}
}

// Broadcast publishes payload. Having no subscribers is not an error.
func (b *RedisBroadcaster) Broadcast(ctx context.Context, payload []byte) error {
	receivers, err := b.client.Publish(ctx, b.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", b.channel, err)
	}
	b.logger.Debug("message published", "channel", b.channel, "bytes", len(payload), "receivers", receivers)
	return nil
}

// Listen subscribes to the channel and calls handle for every message until ctx is done.
func (b *RedisBroadcaster) Listen(ctx context.Context, handle func(payload []byte)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", b.channel, err)
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			handle([]byte(msg.Payload))
		}
	}
}
