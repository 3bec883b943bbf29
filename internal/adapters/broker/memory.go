package broker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vitalsense/analysis-jobs/internal/core"
)

// MemoryOptions configures a MemoryBroker.
type MemoryOptions struct {
	// Buffer is the per-subscriber channel capacity. Deliveries to a full subscriber are dropped.
	Buffer int
	Logger *slog.Logger
}

// MemoryBroker fans messages out to in-process subscribers.
type MemoryBroker struct {
	mu     sync.Mutex
	subs   map[string]map[*memorySub]struct{}
	buffer int
	closed bool
	done   chan struct{}
	logger *slog.Logger
}

type memorySub struct {
	ch   chan core.Message
	once sync.Once
}

func (s *memorySub) close() { s.once.Do(func() { close(s.ch) }) }

// NewMemoryBroker creates an in-process broker.
func NewMemoryBroker(opts MemoryOptions) *MemoryBroker {
	buf := opts.Buffer
	if buf <= 0 {
		buf = defaultBuffer
	}
	return &MemoryBroker{
		subs:   make(map[string]map[*memorySub]struct{}),
		buffer: buf,
		done:   make(chan struct{}),
		logger: loggerOrDefault(opts.Logger, "memory"),
	}
}

// Publish delivers payload to every current subscriber of topic.
func (b *MemoryBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	if topic == "" {
		return ErrTopicRequired
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	for sub := range b.subs[topic] {
		msg := core.Message{Topic: topic, Payload: append([]byte(nil), payload...)}
		select {
		case sub.ch <- msg:
		default:
			b.logger.Warn("dropping message for slow subscriber", "topic", topic)
		}
	}
	return nil
}

// Subscribe registers a subscriber for topic that lives until ctx is canceled or the broker closes.
func (b *MemoryBroker) Subscribe(ctx context.Context, topic string) (<-chan core.Message, error) {
	if topic == "" {
		return nil, ErrTopicRequired
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	sub := &memorySub{ch: make(chan core.Message, b.buffer)}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*memorySub]struct{})
	}
	b.subs[topic][sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		if set, ok := b.subs[topic]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(b.subs, topic)
			}
		}
		sub.close()
	}()

	return sub.ch, nil
}

// Subscribers returns the number of live subscribers for topic.
func (b *MemoryBroker) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}

// Ping reports ErrClosed after Close.
func (b *MemoryBroker) Ping(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Close closes every subscriber channel.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.done)
	for topic, set := range b.subs {
		for sub := range set {
			sub.close()
		}
		delete(b.subs, topic)
	}
	return nil
}
