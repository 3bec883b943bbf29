package data

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/vitalsense/analysis-jobs/internal/core"
	"github.com/vitalsense/analysis-jobs/internal/data/pgxutil"
)

// Advisory lock keys for the stale job sweep so concurrent sweepers never overlap.
const (
	advisoryLockSweeperMajor       = 2100
	advisoryLockSweeperFailPending = 1
)

// FailStalePending marks pending requests created before params.OlderThan as failed.
// At most params.Limit rows are touched per call. Returns the failed ids, oldest first.
func (r *JobRepo) FailStalePending(ctx context.Context, params core.FailStaleParams) ([]string, error) {
	var ids []string
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)",
				advisoryLockSweeperMajor, advisoryLockSweeperFailPending).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				r.logger.DebugContext(ctx, "stale job sweep already running elsewhere")
				return nil
			}

			rows, err := tx.QueryContext(ctx, `
				UPDATE job_requests
				SET status = 'failed', updated_at = $1
				WHERE id IN (
					SELECT id FROM job_requests
					WHERE status = 'pending'
					  AND created_at < $2
					ORDER BY created_at
					LIMIT $3
					FOR UPDATE SKIP LOCKED
				)
				RETURNING id, created_at
			`, params.Now.UTC(), params.OlderThan.UTC(), sweepLimit(params.Limit))
			if err != nil {
				return fmt.Errorf("fail stale pending jobs: %w", err)
			}
			ids, err = scanSweptIDs(rows)
			return err
		},
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

type sweptRow interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// scanSweptIDs reads (id, created_at) rows and returns the ids ordered by created_at.
func scanSweptIDs(rows sweptRow) ([]string, error) {
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			_ = cerr
		}
	}()

	type swept struct {
		id        string
		createdAt sql.NullTime
	}
	var all []swept
	for rows.Next() {
		var s swept
		if err := rows.Scan(&s.id, &s.createdAt); err != nil {
			return nil, fmt.Errorf("scan swept job: %w", err)
		}
		all = append(all, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swept jobs: %w", err)
	}

	// RETURNING order is unspecified.
	sort.SliceStable(all, func(i, k int) bool {
		return all[i].createdAt.Time.Before(all[k].createdAt.Time)
	})
	ids := make([]string, 0, len(all))
	for _, s := range all {
		ids = append(ids, s.id)
	}
	return ids, nil
}

// sweepLimit applies a default batch size.
func sweepLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}
