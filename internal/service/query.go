package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vitalsense/analysis-jobs/internal/core"
	"github.com/vitalsense/analysis-jobs/internal/data"
	domainjob "github.com/vitalsense/analysis-jobs/internal/domain/job"
	"github.com/vitalsense/analysis-jobs/internal/domain/model"
	apperrors "github.com/vitalsense/analysis-jobs/internal/errors"
)

// finalReadTimeout bounds the status read made after the caller's context ended.
const finalReadTimeout = 2 * time.Second

// QueryServiceOptions groups dependencies for QueryService.
type QueryServiceOptions struct {
	Store    core.JobStore      // Required: job store
	Notifier domainjob.Notifier // Optional: enables WaitStatus long-polls
	Logger   *slog.Logger       // Optional: structured logger
}

// QueryService answers status and history reads.
type QueryService struct {
	store    core.JobStore
	notifier domainjob.Notifier
	logger   *slog.Logger
}

// NewQueryService constructs a new QueryService.
func NewQueryService(opts QueryServiceOptions) (*QueryService, error) {
	if opts.Store == nil {
		return nil, errors.New("JobStore is required")
	}
	return &QueryService{
		store:    opts.Store,
		notifier: opts.Notifier,
		logger:   componentLogger(opts.Logger, "query_service"),
	}, nil
}

// MustNewQueryService constructs a new QueryService and panics on error.
func MustNewQueryService(opts QueryServiceOptions) *QueryService {
	svc, err := NewQueryService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create QueryService: %v", err))
	}
	return svc
}

// GetStatus resolves jobID to its status and, once completed, its result.
// An unknown jobID is reported with the pending shape and Found=false; orphan results
// never make an unknown job look completed.
func (s *QueryService) GetStatus(ctx context.Context, jobID string) (*model.JobStatusView, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, apperrors.ValidationField("jobId", "jobId is required")
	}

	job, err := s.store.GetByID(ctx, jobID)
	if errors.Is(err, data.ErrJobNotFound) {
		return &model.JobStatusView{JobID: jobID, Status: model.JobStatusPending}, nil
	}
	if err != nil {
		return nil, apperrors.Unavailable(err, "load job request")
	}

	view := &model.JobStatusView{JobID: job.ID, Status: job.Status, Found: true}
	if job.Status != model.JobStatusCompleted {
		return view, nil
	}

	res, err := s.store.GetResult(ctx, jobID)
	switch {
	case errors.Is(err, data.ErrResultNotFound):
		s.logger.WarnContext(ctx, "completed job has no result", "job_id", jobID)
	case err != nil:
		return nil, apperrors.Unavailable(err, "load job result")
	default:
		completedAt := res.CompletedAt
		view.Result = res.Payload
		view.CompletedAt = &completedAt
	}
	return view, nil
}

// WaitStatus behaves like GetStatus but, while the job is pending, blocks up to wait for a
// completion notification before reading again. Without a notifier it never blocks.
func (s *QueryService) WaitStatus(ctx context.Context, jobID string, wait time.Duration) (*model.JobStatusView, error) {
	if wait <= 0 || s.notifier == nil {
		return s.GetStatus(ctx, jobID)
	}

	// Subscribe before the first read so a completion between the two is not missed.
	unsub, ch := s.notifier.Subscribe(strings.TrimSpace(jobID))
	defer unsub()

	view, err := s.GetStatus(ctx, jobID)
	if err != nil || view.Status != model.JobStatusPending {
		return view, err
	}

	// Wake-ups can be missed; every exit path re-reads the store.
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ch:
	case <-timer.C:
	case <-ctx.Done():
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalReadTimeout)
		defer cancel()
		return s.GetStatus(readCtx, jobID)
	}
	return s.GetStatus(ctx, jobID)
}

// GetHistory returns the user's most recent jobs, newest first.
// A non-positive limit selects model.DefaultHistoryLimit.
func (s *QueryService) GetHistory(ctx context.Context, userID string, limit int) (*model.JobHistoryResponse, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.ValidationField("userId", "userId is required")
	}

	opts := model.JobHistoryOptions{UserID: userID, Limit: limit}
	opts.Limit = opts.NormalizedLimit()

	jobs, err := s.store.ListByUser(ctx, opts)
	if err != nil {
		return nil, apperrors.Unavailable(err, "list job history")
	}
	if jobs == nil {
		jobs = []*model.JobRequest{}
	}
	return &model.JobHistoryResponse{History: jobs, Total: len(jobs)}, nil
}
