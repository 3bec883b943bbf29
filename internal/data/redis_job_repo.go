package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/vitalsense/analysis-jobs/internal/core"
	"github.com/vitalsense/analysis-jobs/internal/domain/model"
)

const (
	defaultRedisKeyPrefix = "analysis:"
	redisWatchRetries     = 10
)

// RedisRepoOptions configures RedisJobRepo.
type RedisRepoOptions struct {
	Client    redis.UniversalClient
	KeyPrefix string
	Logger    *slog.Logger
}

// RedisJobRepo is a JobStore backed by Redis. Per-job keys share a hash tag so the
// request and result of one job live in the same cluster slot and can be updated in one MULTI.
//
// Layout:
//
//	<prefix>job:{<id>}:request   JSON JobRequest
//	<prefix>job:{<id>}:result    JSON JobResult
//	<prefix>user:{<user>}:jobs   ZSET id -> created_at (unix micros)
//	<prefix>pending              ZSET id -> created_at, used by the stale job sweep
type RedisJobRepo struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
}

// NewRedisJobRepo creates a RedisJobRepo.
func NewRedisJobRepo(opts RedisRepoOptions) (*RedisJobRepo, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = defaultRedisKeyPrefix
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisJobRepo{
		client: opts.Client,
		prefix: prefix,
		logger: logger.With("component", "job_repo", "backend", "redis"),
	}, nil
}

func (r *RedisJobRepo) requestKey(id string) string { return r.prefix + "job:{" + id + "}:request" }
func (r *RedisJobRepo) resultKey(id string) string  { return r.prefix + "job:{" + id + "}:result" }
func (r *RedisJobRepo) userKey(userID string) string {
	return r.prefix + "user:{" + userID + "}:jobs"
}
func (r *RedisJobRepo) pendingKey() string { return r.prefix + "pending" }

func score(job *model.JobRequest) float64 {
	return float64(job.CreatedAt.UnixMicro())
}

// Create stores the request and indexes it by user.
func (r *RedisJobRepo) Create(ctx context.Context, job *model.JobRequest) error {
	if job == nil || job.ID == "" {
		return ErrJobIDRequired
	}

	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job request: %w", err)
	}

	ok, err := r.client.SetNX(ctx, r.requestKey(job.ID), raw, 0).Result()
	if err != nil {
		return fmt.Errorf("redis set job request: %w", err)
	}
	if !ok {
		return ErrJobExists
	}

	member := redis.Z{Score: score(job), Member: job.ID}
	if _, err := r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, r.userKey(job.UserID), member)
		if job.Status == model.JobStatusPending {
			p.ZAdd(ctx, r.pendingKey(), member)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("redis index job request: %w", err)
	}
	return nil
}

// GetByID returns the request with the given id.
func (r *RedisJobRepo) GetByID(ctx context.Context, id string) (*model.JobRequest, error) {
	raw, err := r.client.Get(ctx, r.requestKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get job request: %w", err)
	}
	return decodeRequest(raw)
}

// ListByUser returns the user's most recent requests.
func (r *RedisJobRepo) ListByUser(ctx context.Context, opts model.JobHistoryOptions) ([]*model.JobRequest, error) {
	if opts.UserID == "" {
		return nil, ErrUserIDRequired
	}

	// Equal scores come back in reverse lexicographic member order, i.e. id desc.
	ids, err := r.client.ZRevRange(ctx, r.userKey(opts.UserID), 0, int64(opts.NormalizedLimit()-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list user jobs: %w", err)
	}
	jobs := make([]*model.JobRequest, 0, len(ids))
	if len(ids) == 0 {
		return jobs, nil
	}

	cmds := make([]*redis.StringCmd, len(ids))
	if _, err := r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.Get(ctx, r.requestKey(id))
		}
		return nil
	}); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis get user jobs: %w", err)
	}

	for i, cmd := range cmds {
		raw, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			r.logger.WarnContext(ctx, "user index references missing job", "job_id", ids[i])
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis get job %s: %w", ids[i], err)
		}
		job, err := decodeRequest(raw)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// SaveResult upserts the result and completes the request inside a WATCH/MULTI transaction.
func (r *RedisJobRepo) SaveResult(ctx context.Context, result *model.JobResult) (model.SaveResultOutcome, error) {
	if result == nil || result.JobID == "" {
		return model.SaveResultOutcome{}, ErrJobIDRequired
	}

	reqKey, resKey := r.requestKey(result.JobID), r.resultKey(result.JobID)
	resultRaw, err := json.Marshal(result)
	if err != nil {
		return model.SaveResultOutcome{}, fmt.Errorf("marshal job result: %w", err)
	}

	var out model.SaveResultOutcome
	txf := func(tx *redis.Tx) error {
		prev, err := r.loadResult(ctx, tx, resKey)
		if err != nil {
			return err
		}
		job, err := r.loadRequest(ctx, tx, reqKey)
		if err != nil {
			return err
		}

		changed := resultChanged(prev, result)
		complete := job != nil && needsCompletion(job.Status, changed)
		var jobRaw []byte
		if complete {
			job.Status = model.JobStatusCompleted
			job.UpdatedAt = result.CompletedAt
			if jobRaw, err = json.Marshal(job); err != nil {
				return fmt.Errorf("marshal job request: %w", err)
			}
		}

		out = model.SaveResultOutcome{RequestFound: job != nil, Changed: changed || complete}
		if !out.Changed {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			if changed {
				p.Set(ctx, resKey, resultRaw, 0)
			}
			if complete {
				p.Set(ctx, reqKey, jobRaw, 0)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < redisWatchRetries; attempt++ {
		err = r.client.Watch(ctx, txf, reqKey, resKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return model.SaveResultOutcome{}, fmt.Errorf("redis save job result: %w", err)
		}
		if out.RequestFound {
			if zerr := r.client.ZRem(ctx, r.pendingKey(), result.JobID).Err(); zerr != nil {
				r.logger.WarnContext(ctx, "failed to drop job from pending index", "job_id", result.JobID, "error", zerr)
			}
		}
		return out, nil
	}
	return model.SaveResultOutcome{}, fmt.Errorf("redis save job result: %w", redis.TxFailedErr)
}

// GetResult returns the stored result for a job id.
func (r *RedisJobRepo) GetResult(ctx context.Context, jobID string) (*model.JobResult, error) {
	res, err := r.loadResult(ctx, r.client, r.resultKey(jobID))
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, ErrResultNotFound
	}
	return res, nil
}

// FailStalePending walks the pending index oldest first and fails requests older than the cutoff.
func (r *RedisJobRepo) FailStalePending(ctx context.Context, params core.FailStaleParams) ([]string, error) {
	ids, err := r.client.ZRangeByScore(ctx, r.pendingKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "(" + strconv.FormatInt(params.OlderThan.UnixMicro(), 10),
		Count: int64(sweepLimit(params.Limit)),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis scan pending jobs: %w", err)
	}

	var failed []string
	for _, id := range ids {
		ok, err := r.failIfPending(ctx, id, params)
		if err != nil {
			return failed, err
		}
		if ok {
			failed = append(failed, id)
		}
		if zerr := r.client.ZRem(ctx, r.pendingKey(), id).Err(); zerr != nil {
			return failed, fmt.Errorf("redis drop pending job: %w", zerr)
		}
	}
	return failed, nil
}

func (r *RedisJobRepo) failIfPending(ctx context.Context, id string, params core.FailStaleParams) (bool, error) {
	key := r.requestKey(id)
	var failed bool
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		job, err := r.loadRequest(ctx, tx, key)
		if err != nil || job == nil || job.Status != model.JobStatusPending {
			return err
		}
		job.Status = model.JobStatusFailed
		job.UpdatedAt = params.Now
		raw, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("marshal job request: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, raw, 0)
			return nil
		})
		failed = err == nil
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		// Raced with an ingestion; the job is no longer stale.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis fail job %s: %w", id, err)
	}
	return failed, nil
}

// Ping checks Redis connectivity.
func (r *RedisJobRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisJobRepo) loadRequest(ctx context.Context, c redis.Cmdable, key string) (*model.JobRequest, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get job request: %w", err)
	}
	return decodeRequest(raw)
}

func (r *RedisJobRepo) loadResult(ctx context.Context, c redis.Cmdable, key string) (*model.JobResult, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get job result: %w", err)
	}
	var res model.JobResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode job result: %w", err)
	}
	return &res, nil
}

func decodeRequest(raw []byte) (*model.JobRequest, error) {
	var job model.JobRequest
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("decode job request: %w", err)
	}
	return &job, nil
}

var (
	_ core.JobStore      = (*RedisJobRepo)(nil)
	_ core.StaleJobStore = (*RedisJobRepo)(nil)
)
