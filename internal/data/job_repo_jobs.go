package data

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vitalsense/analysis-jobs/internal/core"
	"github.com/vitalsense/analysis-jobs/internal/data/pgxutil"
	"github.com/vitalsense/analysis-jobs/internal/domain/model"
	apperrors "github.com/vitalsense/analysis-jobs/internal/errors"
)

// Create inserts a new pending request.
func (r *JobRepo) Create(ctx context.Context, job *model.JobRequest) error {
	if job == nil || job.ID == "" {
		return ErrJobIDRequired
	}

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO job_requests (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, job.ID, job.UserID, job.DataType, job.DataRef, job.Status, job.CreatedAt.UTC(), job.UpdatedAt.UTC())
	if err != nil {
		mapped := apperrors.MapDBError(err)
		if apperrors.IsConflict(mapped) {
			return ErrJobExists
		}
		return fmt.Errorf("insert job request: %w", mapped)
	}
	return nil
}

// GetByID returns the request with the given id.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.JobRequest, error) {
	var job *model.JobRequest
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, err := pgxConn.Query(ctx, `
			SELECT `+jobColumns+`
			FROM job_requests
			WHERE id = $1
		`, id)
		if err != nil {
			return err
		}
		job, err = pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.JobRequest])
		return err
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job request: %w", apperrors.MapDBError(err))
	}
	return job, nil
}

// ListByUser returns the user's most recent requests.
func (r *JobRepo) ListByUser(ctx context.Context, opts model.JobHistoryOptions) ([]*model.JobRequest, error) {
	if opts.UserID == "" {
		return nil, ErrUserIDRequired
	}

	var jobs []*model.JobRequest
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, err := pgxConn.Query(ctx, `
			SELECT `+jobColumns+`
			FROM job_requests
			WHERE user_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		`, opts.UserID, opts.NormalizedLimit())
		if err != nil {
			return err
		}
		jobs, err = pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.JobRequest])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list job requests for user: %w", apperrors.MapDBError(err))
	}
	if jobs == nil {
		jobs = []*model.JobRequest{}
	}
	return jobs, nil
}

// Ping checks database connectivity.
func (r *JobRepo) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}

var (
	_ core.JobStore      = (*JobRepo)(nil)
	_ core.StaleJobStore = (*JobRepo)(nil)
)
