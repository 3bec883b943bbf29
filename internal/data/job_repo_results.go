package data

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vitalsense/analysis-jobs/internal/data/pgxutil"
	"github.com/vitalsense/analysis-jobs/internal/domain/model"
	apperrors "github.com/vitalsense/analysis-jobs/internal/errors"
)

// upsertResultSQL leaves the row untouched when the stored JSONB document is equal.
const upsertResultSQL = `
	INSERT INTO job_results (job_id, payload, completed_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (job_id) DO UPDATE
	SET payload = EXCLUDED.payload,
	    completed_at = EXCLUDED.completed_at
	WHERE job_results.payload IS DISTINCT FROM EXCLUDED.payload`

// SaveResult upserts the result and completes the matching request in one transaction.
func (r *JobRepo) SaveResult(ctx context.Context, result *model.JobResult) (model.SaveResultOutcome, error) {
	if result == nil || result.JobID == "" {
		return model.SaveResultOutcome{}, ErrJobIDRequired
	}

	var out model.SaveResultOutcome
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx, upsertResultSQL, result.JobID, []byte(result.Payload), result.CompletedAt.UTC())
			if err != nil {
				return fmt.Errorf("upsert job result: %w", err)
			}
			changed := tag.RowsAffected() > 0

			var status model.JobStatus
			err = tx.QueryRow(ctx,
				`SELECT status FROM job_requests WHERE id = $1 FOR UPDATE`, result.JobID).Scan(&status)
			if errors.Is(err, pgx.ErrNoRows) {
				out = model.SaveResultOutcome{Changed: changed}
				return nil
			}
			if err != nil {
				return fmt.Errorf("lock job request: %w", err)
			}

			out.RequestFound = true
			out.Changed = changed
			if !needsCompletion(status, changed) {
				return nil
			}
			if _, err = tx.Exec(ctx, `
				UPDATE job_requests
				SET status = 'completed', updated_at = $2
				WHERE id = $1
			`, result.JobID, result.CompletedAt.UTC()); err != nil {
				return fmt.Errorf("complete job request: %w", err)
			}
			out.Changed = true
			return nil
		},
	})
	if err != nil {
		return model.SaveResultOutcome{}, apperrors.MapDBError(err)
	}
	return out, nil
}

// GetResult returns the stored result for a job id.
func (r *JobRepo) GetResult(ctx context.Context, jobID string) (*model.JobResult, error) {
	if jobID == "" {
		return nil, ErrJobIDRequired
	}

	var res *model.JobResult
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT job_id, payload, completed_at
			FROM job_results
			WHERE job_id = $1`, jobID)
		if err != nil {
			return err
		}
		res, err = pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.JobResult])
		return err
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job result: %w", apperrors.MapDBError(err))
	}
	return res, nil
}
