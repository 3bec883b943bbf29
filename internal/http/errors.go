package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/vitalsense/analysis-jobs/internal/errors"
)

// DetermineErrorStatus maps a service error to an HTTP status and error code.
// Infrastructure failures (store or broker unreachable) surface as 500.
func DetermineErrorStatus(err error) (int, string) {
	switch {
	case apperrors.IsValidation(err):
		return http.StatusBadRequest, string(apperrors.ErrCodeValidation)
	case apperrors.IsNotFound(err):
		return http.StatusNotFound, string(apperrors.ErrCodeNotFound)
	case apperrors.IsConflict(err):
		return http.StatusConflict, string(apperrors.ErrCodeConflict)
	case apperrors.IsTimeout(err):
		return http.StatusGatewayTimeout, string(apperrors.ErrCodeTimeout)
	case apperrors.IsUnavailable(err), apperrors.IsCanceled(err), apperrors.IsInternal(err):
		return http.StatusInternalServerError, string(apperrors.GetCode(err))
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, string(apperrors.ErrCodeTimeout)
	}
	return http.StatusInternalServerError, string(apperrors.ErrCodeInternal)
}

// writeServiceError renders err. Client errors keep their message; server errors are
// logged and replaced with a generic one so infrastructure details never leak.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, code := DetermineErrorStatus(err)
	if status < http.StatusInternalServerError {
		WriteError(w, ErrorParams{Code: status, ErrCode: code, Err: err, Field: apperrors.GetField(err)})
		return
	}

	if logger != nil {
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"code", code,
			"error", err,
		)
	}
	WriteError(w, ErrorParams{Code: status, ErrCode: code, Err: errors.New(genericMessage(code))})
}

func genericMessage(code string) string {
	switch code {
	case string(apperrors.ErrCodeUnavailable):
		return "a backing service is unavailable; retry later"
	case string(apperrors.ErrCodeTimeout):
		return "the request timed out"
	default:
		return "internal server error"
	}
}
