package errors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapDBError_NilError(t *testing.T) {
	if err := MapDBError(nil); err != nil {
		t.Errorf("MapDBError(nil) = %v, want nil", err)
	}
}

func TestMapDBError_ContextErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode ErrorCode
	}{
		{name: "deadline exceeded", err: context.DeadlineExceeded, wantCode: ErrCodeTimeout},
		{name: "canceled", err: context.Canceled, wantCode: ErrCodeCanceled},
		{name: "wrapped deadline", err: fmt.Errorf("query: %w", context.DeadlineExceeded), wantCode: ErrCodeTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(MapDBError(tt.err)); got != tt.wantCode {
				t.Errorf("MapDBError() code = %v, want %v", got, tt.wantCode)
			}
		})
	}
}

func TestMapDBError_NoRows(t *testing.T) {
	for _, err := range []error{pgx.ErrNoRows, sql.ErrNoRows} {
		if !IsNotFound(MapDBError(err)) {
			t.Errorf("MapDBError(%v) should be NotFound", err)
		}
	}
}

func TestMapDBError_PgErrors(t *testing.T) {
	tests := []struct {
		name      string
		pgErr     *pgconn.PgError
		wantCode  ErrorCode
		wantField string
	}{
		{
			name: "unique violation with detail",
			pgErr: &pgconn.PgError{
				Code:   pgerrcode.UniqueViolation,
				Detail: "Key (id)=(0190c6f8) already exists.",
			},
			wantCode:  ErrCodeConflict,
			wantField: "id",
		},
		{
			name: "unique violation inferred from constraint",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "job_results_job_id_key",
			},
			wantCode:  ErrCodeConflict,
			wantField: "job_id",
		},
		{
			name: "check violation",
			pgErr: &pgconn.PgError{
				Code:       pgerrcode.CheckViolation,
				ColumnName: "status",
			},
			wantCode:  ErrCodeValidation,
			wantField: "status",
		},
		{
			name:     "not null violation",
			pgErr:    &pgconn.PgError{Code: pgerrcode.NotNullViolation},
			wantCode: ErrCodeValidation,
		},
		{
			name:     "connection failure",
			pgErr:    &pgconn.PgError{Code: pgerrcode.ConnectionFailure},
			wantCode: ErrCodeUnavailable,
		},
		{
			name:     "admin shutdown",
			pgErr:    &pgconn.PgError{Code: pgerrcode.AdminShutdown},
			wantCode: ErrCodeUnavailable,
		},
		{
			name:     "unhandled code",
			pgErr:    &pgconn.PgError{Code: pgerrcode.DivisionByZero},
			wantCode: ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.pgErr)
			if got := GetCode(err); got != tt.wantCode {
				t.Errorf("MapDBError() code = %v, want %v", got, tt.wantCode)
			}
			if got := GetField(err); got != tt.wantField {
				t.Errorf("MapDBError() field = %q, want %q", got, tt.wantField)
			}
			var pgErr *pgconn.PgError
			if !errors.As(err, &pgErr) {
				t.Errorf("MapDBError() should preserve the PgError cause")
			}
		})
	}
}

func TestMapDBError_Passthrough(t *testing.T) {
	orig := errors.New("something else")
	if got := MapDBError(orig); !errors.Is(got, orig) || GetCode(got) != "" {
		t.Errorf("MapDBError() = %v, want original error", got)
	}
}
