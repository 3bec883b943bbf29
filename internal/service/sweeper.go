package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vitalsense/analysis-jobs/internal/core"
	"github.com/vitalsense/analysis-jobs/internal/domain/model"
	"github.com/vitalsense/analysis-jobs/internal/observability/metrics"
)

// SweeperConfig controls the stale pending job sweep.
type SweeperConfig struct {
	Schedule      string        // cron spec, seconds field first; defaults to "@every 1m"
	PendingMaxAge time.Duration // pending jobs older than this are failed
	BatchSize     int           // rows per store call
	StopTimeout   time.Duration // wait for an in-flight sweep on shutdown
}

// SweeperServiceOptions groups dependencies for SweeperService.
type SweeperServiceOptions struct {
	Store   core.StaleJobStore // Required: store supporting FailStalePending
	Config  SweeperConfig      // Required: PendingMaxAge must be positive
	Events  core.Publisher     // Optional: completion events so waiters see the failure
	Topic   string             // Optional: completion topic
	Clock   core.Clock         // Optional: defaults to wall clock
	Logger  *slog.Logger       // Optional: structured logger
	Metrics *metrics.Recorder  // Optional: counts swept jobs
}

// SweeperService moves pending jobs that outlived their max age to failed.
type SweeperService struct {
	store   core.StaleJobStore
	cfg     SweeperConfig
	events  core.Publisher
	topic   string
	clock   core.Clock
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// NewSweeperService constructs a new SweeperService.
func NewSweeperService(opts SweeperServiceOptions) (*SweeperService, error) {
	if opts.Store == nil {
		return nil, errors.New("StaleJobStore is required")
	}
	cfg := opts.Config
	if cfg.PendingMaxAge <= 0 {
		return nil, errors.New("PendingMaxAge must be positive")
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 1m"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 10 * time.Second
	}
	topic := opts.Topic
	if topic == "" {
		topic = core.DefaultCompletionTopic
	}

	logger := componentLogger(opts.Logger, "sweeper_service")
	logger.Debug("SweeperService initialized",
		"schedule", cfg.Schedule,
		"pending_max_age", cfg.PendingMaxAge,
		"batch_size", cfg.BatchSize,
	)

	return &SweeperService{
		store:   opts.Store,
		cfg:     cfg,
		events:  opts.Events,
		topic:   topic,
		clock:   clockOrDefault(opts.Clock),
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// Run schedules SweepOnce on the configured cron spec until ctx is canceled.
// Overlapping runs are skipped. Returns nil on graceful shutdown.
func (s *SweeperService) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(s.cfg.Schedule, func() {
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.ErrorContext(ctx, "stale job sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule sweeper %q: %w", s.cfg.Schedule, err)
	}

	s.logger.InfoContext(ctx, "starting sweeper", "schedule", s.cfg.Schedule)
	c.Start()
	<-ctx.Done()

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
		s.logger.Info("sweeper stopped")
	case <-time.After(s.cfg.StopTimeout):
		s.logger.Warn("sweeper stop timeout")
	}
	return nil
}

// SweepOnce fails every pending job created before now-PendingMaxAge, batch by batch,
// and returns how many were failed.
func (s *SweeperService) SweepOnce(ctx context.Context) (int, error) {
	start := s.clock.Now()
	cutoff := start.Add(-s.cfg.PendingMaxAge)
	total := 0

	for {
		now := s.clock.Now()
		ids, err := s.store.FailStalePending(ctx, core.FailStaleParams{
			OlderThan: cutoff,
			Now:       now,
			Limit:     s.cfg.BatchSize,
		})
		if err != nil {
			s.metrics.JobsSwept(total)
			return total, fmt.Errorf("fail stale pending jobs: %w", err)
		}
		total += len(ids)
		s.announce(ctx, ids, now)

		if len(ids) < s.cfg.BatchSize {
			break
		}
		if ctx.Err() != nil {
			s.metrics.JobsSwept(total)
			return total, ctx.Err()
		}
	}

	s.metrics.JobsSwept(total)
	if total > 0 {
		s.logger.InfoContext(ctx, "failed stale pending jobs", "count", total, "cutoff", cutoff)
	}
	return total, nil
}

func (s *SweeperService) announce(ctx context.Context, ids []string, at time.Time) {
	if s.events == nil {
		return
	}
	for _, id := range ids {
		payload, err := json.Marshal(model.CompletionEvent{JobID: id, CompletedAt: at})
		if err != nil {
			continue
		}
		if err = s.events.Publish(ctx, s.topic, payload); err != nil {
			s.logger.WarnContext(ctx, "publish sweep event failed", "job_id", id, "error", err)
			return
		}
	}
}
