package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Register the pure Go sqlite driver.
	_ "modernc.org/sqlite"

	"github.com/vitalsense/analysis-jobs/internal/core"
	"github.com/vitalsense/analysis-jobs/internal/domain/model"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS job_requests (
    id          TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL,
    data_type   TEXT NOT NULL,
    data_ref    TEXT NOT NULL,
    status      TEXT NOT NULL,
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS job_requests_user_created_idx ON job_requests (user_id, created_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS job_requests_status_created_idx ON job_requests (status, created_at);
CREATE TABLE IF NOT EXISTS job_results (
    job_id       TEXT PRIMARY KEY,
    payload      TEXT NOT NULL,
    completed_at INTEGER NOT NULL
);`

// SQLiteRepoOptions configures SQLiteJobRepo.
type SQLiteRepoOptions struct {
	Path   string
	Logger *slog.Logger
}

// SQLiteJobRepo is a single-node durable JobStore. Timestamps are stored as unix microseconds.
type SQLiteJobRepo struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// OpenSQLiteJobRepo opens (or creates) the database file and applies the schema.
func OpenSQLiteJobRepo(ctx context.Context, opts SQLiteRepoOptions) (*SQLiteJobRepo, error) {
	if opts.Path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if opts.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o750); err != nil {
			return nil, fmt.Errorf("ensure sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if opts.Path == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteJobRepo{
		db:     db,
		path:   opts.Path,
		logger: logger.With("component", "job_repo", "backend", "sqlite"),
	}, nil
}

// Close closes the underlying database.
func (r *SQLiteJobRepo) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Create inserts a new request.
func (r *SQLiteJobRepo) Create(ctx context.Context, job *model.JobRequest) error {
	if job == nil || job.ID == "" {
		return ErrJobIDRequired
	}
	err := retryOnBusy(ctx, func() error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO job_requests (id, user_id, data_type, data_ref, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			job.ID, job.UserID, string(job.DataType), job.DataRef, string(job.Status),
			job.CreatedAt.UnixMicro(), job.UpdatedAt.UnixMicro())
		return err
	})
	if isSQLiteConstraint(err) {
		return ErrJobExists
	}
	if err != nil {
		return fmt.Errorf("insert job request: %w", err)
	}
	return nil
}

// GetByID returns the request with the given id.
func (r *SQLiteJobRepo) GetByID(ctx context.Context, id string) (*model.JobRequest, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, data_type, data_ref, status, created_at, updated_at
		FROM job_requests WHERE id = ?`, id)
	job, err := scanSQLiteRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job request: %w", err)
	}
	return job, nil
}

// ListByUser returns the user's most recent requests.
func (r *SQLiteJobRepo) ListByUser(ctx context.Context, opts model.JobHistoryOptions) ([]*model.JobRequest, error) {
	if opts.UserID == "" {
		return nil, ErrUserIDRequired
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, data_type, data_ref, status, created_at, updated_at
		FROM job_requests
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, opts.UserID, opts.NormalizedLimit())
	if err != nil {
		return nil, fmt.Errorf("list job requests for user: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			_ = cerr
		}
	}()

	jobs := []*model.JobRequest{}
	for rows.Next() {
		job, err := scanSQLiteRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job request: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job requests: %w", err)
	}
	return jobs, nil
}

// SaveResult upserts the result and completes the request in one transaction.
func (r *SQLiteJobRepo) SaveResult(ctx context.Context, result *model.JobResult) (model.SaveResultOutcome, error) {
	if result == nil || result.JobID == "" {
		return model.SaveResultOutcome{}, ErrJobIDRequired
	}

	var out model.SaveResultOutcome
	err := retryOnBusy(ctx, func() error {
		var txErr error
		out, txErr = r.saveResultTx(ctx, result)
		return txErr
	})
	if err != nil {
		return model.SaveResultOutcome{}, fmt.Errorf("save job result: %w", err)
	}
	return out, nil
}

func (r *SQLiteJobRepo) saveResultTx(ctx context.Context, result *model.JobResult) (out model.SaveResultOutcome, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return out, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rerr))
		}
	}()

	var prev *model.JobResult
	var prevPayload string
	switch scanErr := tx.QueryRowContext(ctx,
		`SELECT payload FROM job_results WHERE job_id = ?`, result.JobID).Scan(&prevPayload); {
	case errors.Is(scanErr, sql.ErrNoRows):
	case scanErr != nil:
		return out, fmt.Errorf("read job result: %w", scanErr)
	default:
		prev = &model.JobResult{JobID: result.JobID, Payload: []byte(prevPayload)}
	}

	changed := resultChanged(prev, result)
	if changed {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO job_results (job_id, payload, completed_at) VALUES (?, ?, ?)
			ON CONFLICT (job_id) DO UPDATE SET payload = excluded.payload, completed_at = excluded.completed_at`,
			result.JobID, string(result.Payload), result.CompletedAt.UnixMicro()); err != nil {
			return out, fmt.Errorf("upsert job result: %w", err)
		}
	}

	var status string
	switch scanErr := tx.QueryRowContext(ctx,
		`SELECT status FROM job_requests WHERE id = ?`, result.JobID).Scan(&status); {
	case errors.Is(scanErr, sql.ErrNoRows):
		out = model.SaveResultOutcome{Changed: changed}
	case scanErr != nil:
		return out, fmt.Errorf("read job request: %w", scanErr)
	default:
		out = model.SaveResultOutcome{RequestFound: true, Changed: changed}
		if needsCompletion(model.JobStatus(status), changed) {
			if _, err = tx.ExecContext(ctx,
				`UPDATE job_requests SET status = ?, updated_at = ? WHERE id = ?`,
				string(model.JobStatusCompleted), result.CompletedAt.UnixMicro(), result.JobID); err != nil {
				return out, fmt.Errorf("complete job request: %w", err)
			}
			out.Changed = true
		}
	}

	if err = tx.Commit(); err != nil {
		return out, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

// GetResult returns the stored result for a job id.
func (r *SQLiteJobRepo) GetResult(ctx context.Context, jobID string) (*model.JobResult, error) {
	var (
		payload     string
		completedAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT payload, completed_at FROM job_results WHERE job_id = ?`, jobID).Scan(&payload, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job result: %w", err)
	}
	return &model.JobResult{
		JobID:       jobID,
		Payload:     []byte(payload),
		CompletedAt: time.UnixMicro(completedAt).UTC(),
	}, nil
}

// FailStalePending marks old pending requests as failed, oldest first.
func (r *SQLiteJobRepo) FailStalePending(ctx context.Context, params core.FailStaleParams) ([]string, error) {
	var ids []string
	err := retryOnBusy(ctx, func() error {
		ids = nil
		rows, err := r.db.QueryContext(ctx, `
			UPDATE job_requests
			SET status = ?, updated_at = ?
			WHERE id IN (
				SELECT id FROM job_requests
				WHERE status = ? AND created_at < ?
				ORDER BY created_at, id
				LIMIT ?
			)
			RETURNING id, created_at`,
			string(model.JobStatusFailed), params.Now.UnixMicro(),
			string(model.JobStatusPending), params.OlderThan.UnixMicro(), sweepLimit(params.Limit))
		if err != nil {
			return err
		}
		ids, err = scanSweptIDs(&unixMicroRows{rows})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fail stale pending jobs: %w", err)
	}
	return ids, nil
}

// Ping checks the database handle.
func (r *SQLiteJobRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRequest(s rowScanner) (*model.JobRequest, error) {
	var (
		job                  model.JobRequest
		dataType, status     string
		createdAt, updatedAt int64
	)
	if err := s.Scan(&job.ID, &job.UserID, &dataType, &job.DataRef, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	job.DataType = model.DataType(dataType)
	job.Status = model.JobStatus(status)
	job.CreatedAt = time.UnixMicro(createdAt).UTC()
	job.UpdatedAt = time.UnixMicro(updatedAt).UTC()
	return &job, nil
}

// unixMicroRows adapts integer created_at columns to the sql.NullTime scan used by scanSweptIDs.
type unixMicroRows struct {
	*sql.Rows
}

func (u *unixMicroRows) Scan(dest ...any) error {
	var micros int64
	if err := u.Rows.Scan(dest[0], &micros); err != nil {
		return err
	}
	if nt, ok := dest[1].(*sql.NullTime); ok {
		*nt = sql.NullTime{Time: time.UnixMicro(micros).UTC(), Valid: true}
	}
	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isSQLiteConstraint(err error) bool {
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

var (
	_ core.JobStore      = (*SQLiteJobRepo)(nil)
	_ core.StaleJobStore = (*SQLiteJobRepo)(nil)
)
