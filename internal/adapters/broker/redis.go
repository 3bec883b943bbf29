package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/vitalsense/analysis-jobs/internal/core"
)

// RedisOptions configures a RedisBroker.
type RedisOptions struct {
	Client redis.UniversalClient
	Logger *slog.Logger
}

// RedisBroker publishes over Redis pub/sub. The client is owned by the caller.
type RedisBroker struct {
	client redis.UniversalClient
	logger *slog.Logger
	life   lifecycle
}

// NewRedisBroker creates a broker on top of client.
func NewRedisBroker(opts RedisOptions) (*RedisBroker, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	return &RedisBroker{
		client: opts.Client,
		logger: loggerOrDefault(opts.Logger, "redis"),
		life:   newLifecycle(),
	}, nil
}

// Publish sends payload on the topic channel.
func (b *RedisBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	if topic == "" {
		return ErrTopicRequired
	}
	if b.life.isClosed() {
		return ErrClosed
	}
	if err := b.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe waits for the SUBSCRIBE confirmation and then streams messages until ctx is canceled.
func (b *RedisBroker) Subscribe(ctx context.Context, topic string) (<-chan core.Message, error) {
	if topic == "" {
		return nil, ErrTopicRequired
	}
	if b.life.isClosed() {
		return nil, ErrClosed
	}

	ps := b.client.Subscribe(ctx, topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", topic, err)
	}

	out := make(chan core.Message, defaultBuffer)
	go func() {
		defer close(out)
		defer func() {
			if cerr := ps.Close(); cerr != nil {
				_ = cerr
			}
		}()

		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.life.done:
				return
			case m, ok := <-in:
				if !ok {
					b.logger.Warn("redis subscription ended", "topic", topic)
					return
				}
				if !b.life.forward(ctx, out, core.Message{Topic: m.Channel, Payload: []byte(m.Payload)}) {
					return
				}
			}
		}
	}()
	return out, nil
}

// Ping checks the Redis connection.
func (b *RedisBroker) Ping(ctx context.Context) error {
	if b.life.isClosed() {
		return ErrClosed
	}
	return b.client.Ping(ctx).Err()
}

// Close ends all subscriptions. The Redis client stays open.
func (b *RedisBroker) Close() error {
	b.life.close()
	return nil
}
