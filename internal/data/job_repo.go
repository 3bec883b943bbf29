package data

import (
	"database/sql"
	"log/slog"
)

// RepoConfig holds configuration options for the Postgres job repository.
type RepoConfig struct {
	Logger *slog.Logger
}

// JobRepo is the Postgres-backed JobStore.
type JobRepo struct {
	DB     *sql.DB
	logger *slog.Logger
}

// NewJobRepo creates a new JobRepo instance with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &JobRepo{
		DB:     db,
		logger: logger.With("component", "job_repo", "backend", "postgres"),
	}
}

const jobColumns = `
  id,
  user_id,
  data_type,
  data_ref,
  status,
  created_at,
  updated_at
`
