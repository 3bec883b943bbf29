// Package broker provides the publish/subscribe channels used to hand dispatch messages to analysis
// workers and completion events back to status long-polls.
//
// All implementations are fire-and-forget: a message published while nobody is subscribed is lost.
package broker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/vitalsense/analysis-jobs/internal/core"
)

const defaultBuffer = 64

var (
	// ErrClosed is returned by Publish and Subscribe after Close.
	ErrClosed = errors.New("broker closed")
	// ErrTopicRequired is returned when a topic is empty.
	ErrTopicRequired = errors.New("broker topic is required")
)

// lifecycle tracks Close for the network-backed brokers.
type lifecycle struct {
	once sync.Once
	done chan struct{}
}

func newLifecycle() lifecycle { return lifecycle{done: make(chan struct{})} }

func (l *lifecycle) close() { l.once.Do(func() { close(l.done) }) }

func (l *lifecycle) isClosed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// forward copies messages to out until ctx or the broker is done.
// It reports false when delivery stopped because of shutdown.
func (l *lifecycle) forward(ctx context.Context, out chan<- core.Message, msg core.Message) bool {
	select {
	case out <- msg:
		return true
	case <-ctx.Done():
		return false
	case <-l.done:
		return false
	}
}

func loggerOrDefault(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With("component", "broker", "backend", name)
}

var (
	_ core.Broker = (*MemoryBroker)(nil)
	_ core.Broker = (*RedisBroker)(nil)
	_ core.Broker = (*PostgresBroker)(nil)
)
