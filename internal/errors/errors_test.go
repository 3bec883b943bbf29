package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err:  &AppError{Code: ErrCodeNotFound, Message: "job not found"},
			want: "job not found",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeUnavailable,
				Message: "publish dispatch",
				Cause:   errors.New("connection refused"),
			},
			want: "publish dispatch: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(cause, ErrCodeInternal, "wrapped error")

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(Wrap(cause), cause) = false, want true")
	}
}

func TestWrap_NilError(t *testing.T) {
	if err := Wrap(nil, ErrCodeInternal, "nothing"); err != nil {
		t.Errorf("Wrap(nil) = %v, want nil", err)
	}
	if err := Unavailable(nil, "nothing"); err != nil {
		t.Errorf("Unavailable(nil) = %v, want nil", err)
	}
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"not found formatted", NotFoundf("job %s", "j1"), IsNotFound},
		{"conflict", &AppError{Code: ErrCodeConflict}, IsConflict},
		{"validation field", ValidationField("userId", "required"), IsValidation},
		{"unavailable", Unavailable(errors.New("down"), "broker"), IsUnavailable},
		{"internal", Wrap(errors.New("boom"), ErrCodeInternal, "allocate id"), IsInternal},
		{"timeout", &AppError{Code: ErrCodeTimeout}, IsTimeout},
		{"canceled", &AppError{Code: ErrCodeCanceled}, IsCanceled},
		{"wrapped by fmt", fmt.Errorf("submit: %w", ValidationField("dataRef", "bad")), IsValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(tt.err) {
				t.Errorf("predicate returned false for %v (code %q)", tt.err, GetCode(tt.err))
			}
		})
	}
}

func TestPredicates_PlainError(t *testing.T) {
	plain := errors.New("plain")
	if IsNotFound(plain) || IsValidation(plain) || IsUnavailable(plain) {
		t.Errorf("plain error should not match any AppError predicate")
	}
	if got := GetCode(plain); got != "" {
		t.Errorf("GetCode(plain) = %q, want empty", got)
	}
}

func TestGetField(t *testing.T) {
	err := fmt.Errorf("validate: %w", ValidationField("dataRef", "dataRef is required"))
	if got := GetField(err); got != "dataRef" {
		t.Errorf("GetField() = %q, want %q", got, "dataRef")
	}
	if got := GetField(NotFoundf("job %s", "j1")); got != "" {
		t.Errorf("GetField() = %q, want empty", got)
	}
}

func TestNotFoundf(t *testing.T) {
	err := NotFoundf("job %s not found", "j1")
	if err.Message != "job j1 not found" {
		t.Errorf("NotFoundf().Message = %q, want %q", err.Message, "job j1 not found")
	}
}
