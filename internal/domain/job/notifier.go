// Package job contains the completion notifier used by long-polling status reads.
package job

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vitalsense/analysis-jobs/internal/core"
	"github.com/vitalsense/analysis-jobs/internal/domain/model"
)

// ErrSubscriberRequired indicates a notifier cannot be constructed without a broker subscriber.
var ErrSubscriberRequired = errors.New("notifier subscriber is required")

// Notifier manages per-job subscriptions for completion notifications.
type Notifier interface {
	Subscribe(jobID string) (func(), <-chan struct{})
	StopAll()
}

// NotifierOptions configure the behaviour of the default notifier implementation.
type NotifierOptions struct {
	Subscriber core.Subscriber
	Topic      string
	Backoff    time.Duration
	// ReadyTimeout bounds how long Subscribe waits for the broker subscription to be confirmed.
	ReadyTimeout time.Duration
	Logger       *slog.Logger
}

// DefaultNotifier listens on the completion topic while at least one reader is subscribed
// and wakes every subscriber of the completed job id.
type DefaultNotifier struct {
	subscriber   core.Subscriber
	topic        string
	backoff      time.Duration
	readyTimeout time.Duration
	logger       *slog.Logger

	mu       sync.Mutex
	subs     map[string]map[chan struct{}]struct{}
	listener context.CancelFunc
	ready    chan struct{}
}

// NewNotifier constructs the default notifier implementation.
func NewNotifier(opts NotifierOptions) (*DefaultNotifier, error) {
	if opts.Subscriber == nil {
		return nil, ErrSubscriberRequired
	}

	topic := opts.Topic
	if topic == "" {
		topic = core.DefaultCompletionTopic
	}

	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}

	readyTimeout := opts.ReadyTimeout
	if readyTimeout <= 0 {
		readyTimeout = 2 * time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &DefaultNotifier{
		subscriber:   opts.Subscriber,
		topic:        topic,
		backoff:      backoff,
		readyTimeout: readyTimeout,
		logger:       logger.With("component", "completion_notifier"),
		subs:         make(map[string]map[chan struct{}]struct{}),
	}, nil
}

// Subscribe registers interest in jobID. The returned channel receives a value when the job's
// result is ingested and is closed by the returned unsubscribe func or StopAll.
// It returns once the broker subscription is confirmed, the first attempt failed, or
// ReadyTimeout elapsed.
func (n *DefaultNotifier) Subscribe(jobID string) (func(), <-chan struct{}) {
	n.mu.Lock()
	if n.listener == nil {
		ctx, cancel := context.WithCancel(context.Background())
		n.listener = cancel
		n.ready = make(chan struct{})
		go n.listenLoop(ctx, n.ready)
	}
	ready := n.ready

	ch := make(chan struct{}, 1)
	if n.subs[jobID] == nil {
		n.subs[jobID] = make(map[chan struct{}]struct{})
	}
	n.subs[jobID][ch] = struct{}{}
	n.mu.Unlock()

	n.awaitReady(ready)

	unsub := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		subscribers := n.subs[jobID]
		if _, ok := subscribers[ch]; !ok {
			return
		}
		delete(subscribers, ch)
		drainAndClose(ch)
		if len(subscribers) == 0 {
			delete(n.subs, jobID)
		}
		if len(n.subs) == 0 {
			n.stopListener()
		}
	}

	return unsub, ch
}

func (n *DefaultNotifier) awaitReady(ready <-chan struct{}) {
	timer := time.NewTimer(n.readyTimeout)
	defer timer.Stop()
	select {
	case <-ready:
	case <-timer.C:
		n.logger.Warn("completion subscription not confirmed in time", "topic", n.topic, "timeout", n.readyTimeout)
	}
}

// Notify wakes local subscribers of jobID without a broker round trip.
func (n *DefaultNotifier) Notify(jobID string) {
	n.broadcast(jobID)
}

// StopAll stops the listener and closes every subscriber channel.
func (n *DefaultNotifier) StopAll() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.stopListener()
	for jobID, subscribers := range n.subs {
		for ch := range subscribers {
			drainAndClose(ch)
		}
		delete(n.subs, jobID)
	}
}

func (n *DefaultNotifier) stopListener() {
	if n.listener == nil {
		return
	}
	n.listener()
	n.listener = nil
	n.ready = nil
}

// listenLoop closes ready after the first subscribe attempt returns.
func (n *DefaultNotifier) listenLoop(ctx context.Context, ready chan struct{}) {
	signalReady := sync.OnceFunc(func() { close(ready) })
	defer signalReady()

	for ctx.Err() == nil {
		msgs, err := n.subscriber.Subscribe(ctx, n.topic)
		signalReady()
		if err == nil {
			for msg := range msgs {
				n.handle(msg)
			}
		} else if ctx.Err() == nil {
			n.logger.Warn("subscribe to completion topic failed", "topic", n.topic, "error", err)
		}

		if ctx.Err() != nil {
			return
		}
		timer := time.NewTimer(n.backoff)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}
	}
}

func (n *DefaultNotifier) handle(msg core.Message) {
	var evt model.CompletionEvent
	if err := json.Unmarshal(msg.Payload, &evt); err != nil || evt.JobID == "" {
		n.logger.Debug("ignoring malformed completion event", "error", err)
		return
	}
	n.broadcast(evt.JobID)
}

func (n *DefaultNotifier) broadcast(jobID string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for ch := range n.subs[jobID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// drainAndClose removes any buffered notifications before closing the channel so
// receivers observe a closed channel immediately.
func drainAndClose(ch chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			close(ch)
			return
		}
	}
}

var _ Notifier = (*DefaultNotifier)(nil)
