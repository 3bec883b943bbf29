// Package httpx provides HTTP handlers and utilities for the analysis job API.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/vitalsense/analysis-jobs/internal/domain/model"
	apperrors "github.com/vitalsense/analysis-jobs/internal/errors"
	"github.com/vitalsense/analysis-jobs/internal/service"
)

// DefaultMaxWait caps ?wait= on status reads.
const DefaultMaxWait = 30 * time.Second

// JobHandlers provides HTTP handlers for job submission, status and history.
type JobHandlers struct {
	Submission *service.SubmissionService
	Query      *service.QueryService
	// StrictNotFound makes status reads for unknown job ids answer 404 instead of pending.
	StrictNotFound bool
	MaxWait        time.Duration
	Logger         *slog.Logger
}

// SubmitJob handles POST /api/jobs.
func (h *JobHandlers) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitJobRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if uid := strings.TrimSpace(req.UserID); uid != "" && !canActFor(r.Context(), uid) {
		writeForbidden(w, "cannot submit jobs for another user")
		return
	}

	resp, err := h.Submission.Submit(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}

	w.Header().Set("Location", "/api/jobs/"+resp.JobID)
	WriteJSON(w, http.StatusAccepted, resp)
}

// GetJob handles GET /api/jobs/{id}. Unknown ids answer with the pending shape unless
// StrictNotFound is set. ?wait= long-polls while pending; ?query= projects the result.
func (h *JobHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimSpace(r.PathValue("id"))
	if jobID == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job id is required")})
		return
	}

	maxWait := h.MaxWait
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	wait, err := parseWait(r, maxWait)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_wait", Err: err, Field: "wait"})
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query != "" {
		if _, cerr := jmespath.Compile(query); cerr != nil {
			WriteError(w, ErrorParams{
				Code:    http.StatusBadRequest,
				ErrCode: "invalid_query",
				Err:     fmt.Errorf("invalid query expression: %w", cerr),
				Field:   "query",
			})
			return
		}
	}

	view, err := h.Query.WaitStatus(r.Context(), jobID, wait)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	if h.StrictNotFound && !view.Found {
		writeServiceError(w, r, h.Logger, apperrors.NotFoundf("job %s not found", jobID))
		return
	}

	if query != "" && view.Result != nil {
		projected, perr := projectResult(query, view.Result)
		if perr != nil {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_query", Err: perr, Field: "query"})
			return
		}
		view.Result = projected
	}

	WriteJSON(w, http.StatusOK, view)
}

// ListJobs handles GET /api/jobs?userId=&limit=.
func (h *JobHandlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID != "" && !canActFor(r.Context(), userID) {
		writeForbidden(w, "cannot read another user's history")
		return
	}
	limit := parseIntQuery(r, "limit", model.DefaultHistoryLimit)

	resp, err := h.Query.GetHistory(r.Context(), userID, limit)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}

// projectResult evaluates a JMESPath expression against a stored result payload.
func projectResult(expr string, raw json.RawMessage) (json.RawMessage, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	out, err := jmespath.Search(expr, doc)
	if err != nil {
		return nil, fmt.Errorf("evaluate query: %w", err)
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode projection: %w", err)
	}
	return b, nil
}

func writeForbidden(w http.ResponseWriter, msg string) {
	WriteError(w, ErrorParams{Code: http.StatusForbidden, ErrCode: "forbidden", Err: errors.New(msg)})
}
