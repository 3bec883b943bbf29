package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vitalsense/analysis-jobs/internal/core"
	"github.com/vitalsense/analysis-jobs/internal/domain/model"
	apperrors "github.com/vitalsense/analysis-jobs/internal/errors"
	"github.com/vitalsense/analysis-jobs/internal/observability/metrics"
)

const defaultPublishTimeout = 5 * time.Second

// DefaultEstimates are the advertised processing times per data type.
func DefaultEstimates() map[model.DataType]time.Duration {
	return map[model.DataType]time.Duration{
		model.DataTypeRPPG:   30 * time.Second,
		model.DataTypeVoice:  20 * time.Second,
		model.DataTypeFusion: 45 * time.Second,
	}
}

// SubmissionConfig tunes the dispatch side of submissions.
type SubmissionConfig struct {
	Topic          string                           // Optional: dispatch topic, defaults to core.DefaultDispatchTopic
	Estimates      map[model.DataType]time.Duration // Optional: defaults to DefaultEstimates
	PublishTimeout time.Duration                    // Optional: bound on a single publish
}

// SubmissionServiceOptions groups dependencies for SubmissionService.
type SubmissionServiceOptions struct {
	Store     core.JobRequestStore   // Required: job request store
	Publisher core.Publisher         // Required: broker used for dispatch
	Config    SubmissionConfig       // Optional: topic and estimates
	Clock     core.Clock             // Optional: defaults to wall clock
	NewID     func() (string, error) // Optional: defaults to UUIDv7
	Logger    *slog.Logger           // Optional: structured logger
	Metrics   *metrics.Recorder      // Optional: prometheus recorder
}

// SubmissionService validates new jobs, stores them as pending and dispatches them to workers.
type SubmissionService struct {
	store     core.JobRequestStore
	publisher core.Publisher
	topic     string
	estimates map[model.DataType]time.Duration
	timeout   time.Duration
	clock     core.Clock
	newID     func() (string, error)
	logger    *slog.Logger
	metrics   *metrics.Recorder
}

// NewSubmissionService constructs a new SubmissionService.
func NewSubmissionService(opts SubmissionServiceOptions) (*SubmissionService, error) {
	if opts.Store == nil {
		return nil, errors.New("JobRequestStore is required")
	}
	if opts.Publisher == nil {
		return nil, errors.New("Publisher is required")
	}

	topic := opts.Config.Topic
	if topic == "" {
		topic = core.DefaultDispatchTopic
	}
	estimates := DefaultEstimates()
	for dt, d := range opts.Config.Estimates {
		if d > 0 {
			estimates[dt] = d
		}
	}
	timeout := opts.Config.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	newID := opts.NewID
	if newID == nil {
		newID = newJobID
	}

	return &SubmissionService{
		store:     opts.Store,
		publisher: opts.Publisher,
		topic:     topic,
		estimates: estimates,
		timeout:   timeout,
		clock:     clockOrDefault(opts.Clock),
		newID:     newID,
		logger:    componentLogger(opts.Logger, "submission_service"),
		metrics:   opts.Metrics,
	}, nil
}

// MustNewSubmissionService constructs a new SubmissionService and panics on error.
func MustNewSubmissionService(opts SubmissionServiceOptions) *SubmissionService {
	svc, err := NewSubmissionService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create SubmissionService: %v", err))
	}
	return svc
}

func newJobID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Submit validates req, stores a pending JobRequest and publishes its dispatch message.
// The record is stored before publishing, so a status read right after Submit returns sees it.
// A publish failure leaves the pending record in place and is reported as unavailable.
func (s *SubmissionService) Submit(ctx context.Context, req model.SubmitJobRequest) (*model.SubmitJobResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		s.metrics.SubmitFailed(err)
		return nil, err
	}

	id, err := s.newID()
	if err != nil {
		err = apperrors.Wrap(err, apperrors.ErrCodeInternal, "allocate job id")
		s.metrics.SubmitFailed(err)
		return nil, err
	}

	now := s.clock.Now()
	job := &model.JobRequest{
		ID:        id,
		UserID:    req.UserID,
		DataType:  req.DataType,
		DataRef:   req.DataRef,
		Status:    model.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = s.store.Create(ctx, job); err != nil {
		err = apperrors.Unavailable(err, "store job request")
		s.metrics.SubmitFailed(err)
		return nil, err
	}

	if err = s.dispatch(ctx, job); err != nil {
		s.logger.WarnContext(ctx, "dispatch failed; job left pending",
			"job_id", job.ID,
			"topic", s.topic,
			"error", err,
		)
		err = apperrors.Unavailable(err, "dispatch job")
		s.metrics.SubmitFailed(err)
		return nil, err
	}

	s.metrics.JobSubmitted(string(job.DataType))
	s.logger.InfoContext(ctx, "job submitted",
		"job_id", job.ID,
		"user_id", job.UserID,
		"data_type", job.DataType,
	)

	return &model.SubmitJobResponse{
		JobID:         job.ID,
		Status:        job.Status,
		EstimatedTime: int(s.estimates[job.DataType] / time.Second),
	}, nil
}

// dispatch publishes detached from the caller's cancellation so a client disconnect
// after the store write does not strand the job.
func (s *SubmissionService) dispatch(ctx context.Context, job *model.JobRequest) error {
	payload, err := json.Marshal(model.NewDispatchMessage(job))
	if err != nil {
		return fmt.Errorf("encode dispatch message: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	return s.publisher.Publish(pubCtx, s.topic, payload)
}

// EstimatedTime returns the advertised processing time for dt.
func (s *SubmissionService) EstimatedTime(dt model.DataType) time.Duration {
	return s.estimates[dt]
}
