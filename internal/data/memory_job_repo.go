package data

import (
	"context"
	"sync"

	"github.com/vitalsense/analysis-jobs/internal/core"
	"github.com/vitalsense/analysis-jobs/internal/domain/model"
)

// MemoryJobRepo is a process-local JobStore. Every record is copied on the way in and out
// so callers never observe a partially written record.
type MemoryJobRepo struct {
	mu       sync.RWMutex
	requests map[string]*model.JobRequest
	results  map[string]*model.JobResult
	byUser   map[string]map[string]struct{}
}

// NewMemoryJobRepo creates an empty in-memory store.
func NewMemoryJobRepo() *MemoryJobRepo {
	return &MemoryJobRepo{
		requests: make(map[string]*model.JobRequest),
		results:  make(map[string]*model.JobResult),
		byUser:   make(map[string]map[string]struct{}),
	}
}

// Create stores a new request.
func (r *MemoryJobRepo) Create(_ context.Context, job *model.JobRequest) error {
	if job == nil || job.ID == "" {
		return ErrJobIDRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.requests[job.ID]; exists {
		return ErrJobExists
	}
	r.requests[job.ID] = job.Clone()
	if r.byUser[job.UserID] == nil {
		r.byUser[job.UserID] = make(map[string]struct{})
	}
	r.byUser[job.UserID][job.ID] = struct{}{}
	return nil
}

// GetByID returns a copy of the request.
func (r *MemoryJobRepo) GetByID(_ context.Context, id string) (*model.JobRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.requests[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}

// ListByUser returns the most recent requests for a user.
func (r *MemoryJobRepo) ListByUser(_ context.Context, opts model.JobHistoryOptions) ([]*model.JobRequest, error) {
	if opts.UserID == "" {
		return nil, ErrUserIDRequired
	}

	r.mu.RLock()
	jobs := make([]*model.JobRequest, 0, len(r.byUser[opts.UserID]))
	for id := range r.byUser[opts.UserID] {
		jobs = append(jobs, r.requests[id].Clone())
	}
	r.mu.RUnlock()

	sortHistory(jobs)
	if limit := opts.NormalizedLimit(); len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// SaveResult upserts the result and completes the matching request under one lock.
func (r *MemoryJobRepo) SaveResult(_ context.Context, result *model.JobResult) (model.SaveResultOutcome, error) {
	if result == nil || result.JobID == "" {
		return model.SaveResultOutcome{}, ErrJobIDRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	changed := resultChanged(r.results[result.JobID], result)
	if changed {
		r.results[result.JobID] = result.Clone()
	}

	job, found := r.requests[result.JobID]
	if found && needsCompletion(job.Status, changed) {
		job.Status = model.JobStatusCompleted
		job.UpdatedAt = result.CompletedAt
		changed = true
	}
	return model.SaveResultOutcome{RequestFound: found, Changed: changed}, nil
}

// GetResult returns a copy of the stored result.
func (r *MemoryJobRepo) GetResult(_ context.Context, jobID string) (*model.JobResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.results[jobID]
	if !ok {
		return nil, ErrResultNotFound
	}
	return res.Clone(), nil
}

// FailStalePending marks old pending requests as failed, oldest first.
func (r *MemoryJobRepo) FailStalePending(_ context.Context, params core.FailStaleParams) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stale []*model.JobRequest
	for _, job := range r.requests {
		if job.Status == model.JobStatusPending && job.CreatedAt.Before(params.OlderThan) {
			stale = append(stale, job)
		}
	}
	sortOldestFirst(stale)
	if params.Limit > 0 && len(stale) > params.Limit {
		stale = stale[:params.Limit]
	}

	ids := make([]string, 0, len(stale))
	for _, job := range stale {
		job.Status = model.JobStatusFailed
		job.UpdatedAt = params.Now
		ids = append(ids, job.ID)
	}
	return ids, nil
}

// Ping always succeeds.
func (r *MemoryJobRepo) Ping(context.Context) error { return nil }

// Len returns the number of stored requests and results.
func (r *MemoryJobRepo) Len() (requests, results int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.requests), len(r.results)
}

var (
	_ core.JobStore      = (*MemoryJobRepo)(nil)
	_ core.StaleJobStore = (*MemoryJobRepo)(nil)
)
