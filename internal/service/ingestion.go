package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vitalsense/analysis-jobs/internal/core"
	"github.com/vitalsense/analysis-jobs/internal/domain/model"
	apperrors "github.com/vitalsense/analysis-jobs/internal/errors"
	"github.com/vitalsense/analysis-jobs/internal/observability/metrics"
)

// LocalNotifier wakes in-process status waiters for a job.
type LocalNotifier interface {
	Notify(jobID string)
}

// IngestionServiceOptions groups dependencies for IngestionService.
type IngestionServiceOptions struct {
	Store    core.JobResultStore // Required: job result store
	Events   core.Publisher      // Optional: completion events for waiters in other processes
	Topic    string              // Optional: completion topic, defaults to core.DefaultCompletionTopic
	Notifier LocalNotifier       // Optional: wakes waiters in this process
	Clock    core.Clock          // Optional: defaults to wall clock
	Logger   *slog.Logger        // Optional: structured logger
	Metrics  *metrics.Recorder   // Optional: prometheus recorder
}

// IngestionService stores worker results and completes the matching job requests.
type IngestionService struct {
	store    core.JobResultStore
	events   core.Publisher
	topic    string
	notifier LocalNotifier
	clock    core.Clock
	logger   *slog.Logger
	metrics  *metrics.Recorder
}

// NewIngestionService constructs a new IngestionService.
func NewIngestionService(opts IngestionServiceOptions) (*IngestionService, error) {
	if opts.Store == nil {
		return nil, errors.New("JobResultStore is required")
	}
	topic := opts.Topic
	if topic == "" {
		topic = core.DefaultCompletionTopic
	}
	return &IngestionService{
		store:    opts.Store,
		events:   opts.Events,
		topic:    topic,
		notifier: opts.Notifier,
		clock:    clockOrDefault(opts.Clock),
		logger:   componentLogger(opts.Logger, "ingestion_service"),
		metrics:  opts.Metrics,
	}, nil
}

// MustNewIngestionService constructs a new IngestionService and panics on error.
func MustNewIngestionService(opts IngestionServiceOptions) *IngestionService {
	svc, err := NewIngestionService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create IngestionService: %v", err))
	}
	return svc
}

// Ingest stores the result for req.JobID. Results for unknown jobs are kept as orphans and
// still acknowledged. Re-ingesting an identical payload leaves the stored state unchanged.
func (s *IngestionService) Ingest(ctx context.Context, req model.IngestResultRequest) (*model.IngestAck, error) {
	req.JobID = strings.TrimSpace(req.JobID)
	if err := req.Validate(); err != nil {
		return nil, err
	}

	result := &model.JobResult{
		JobID:       req.JobID,
		Payload:     req.Payload,
		CompletedAt: s.clock.Now(),
	}
	out, err := s.store.SaveResult(ctx, result)
	if err != nil {
		return nil, apperrors.Unavailable(err, "store job result")
	}

	s.metrics.ResultIngested(!out.RequestFound)
	s.logger.InfoContext(ctx, "result ingested",
		"job_id", req.JobID,
		"orphan", !out.RequestFound,
		"changed", out.Changed,
	)

	if out.RequestFound && out.Changed {
		s.announce(ctx, result)
	}

	return &model.IngestAck{Ack: true, JobID: req.JobID}, nil
}

// announce wakes status waiters. Failures are logged and never fail the ingest.
func (s *IngestionService) announce(ctx context.Context, result *model.JobResult) {
	if s.notifier != nil {
		s.notifier.Notify(result.JobID)
	}
	if s.events == nil {
		return
	}

	payload, err := json.Marshal(model.CompletionEvent{JobID: result.JobID, CompletedAt: result.CompletedAt})
	if err != nil {
		s.logger.WarnContext(ctx, "encode completion event", "job_id", result.JobID, "error", err)
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultPublishTimeout)
	defer cancel()
	if err = s.events.Publish(pubCtx, s.topic, payload); err != nil {
		s.logger.WarnContext(ctx, "publish completion event failed",
			"job_id", result.JobID,
			"topic", s.topic,
			"error", err,
		)
	}
}
