package data

import (
	"context"
	"database/sql"

	"github.com/vitalsense/analysis-jobs/internal/migrate"
)

// RunMigrations applies pending schema migrations and returns the versions applied in this call.
func RunMigrations(ctx context.Context, db *sql.DB) ([]string, error) {
	return migrate.Run(ctx, db)
}
