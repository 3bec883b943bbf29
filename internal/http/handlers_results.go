package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vitalsense/analysis-jobs/internal/domain/model"
	"github.com/vitalsense/analysis-jobs/internal/service"
)

// ResultHandlers provides HTTP handlers for worker result callbacks.
type ResultHandlers struct {
	Ingestion *service.IngestionService
	Logger    *slog.Logger
}

// IngestResult handles POST /api/results with {jobId, payload}.
func (h *ResultHandlers) IngestResult(w http.ResponseWriter, r *http.Request) {
	var req model.IngestResultRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	h.ingest(w, r, req)
}

// IngestJobResult handles POST /api/jobs/{id}/result. The body may omit jobId;
// when present it must match the path.
func (h *ResultHandlers) IngestJobResult(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimSpace(r.PathValue("id"))
	var req model.IngestResultRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if body := strings.TrimSpace(req.JobID); body != "" && body != jobID {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "validation",
			Err:     errors.New("jobId in body does not match path"),
			Field:   "jobId",
		})
		return
	}
	req.JobID = jobID
	h.ingest(w, r, req)
}

func (h *ResultHandlers) ingest(w http.ResponseWriter, r *http.Request, req model.IngestResultRequest) {
	ack, err := h.Ingestion.Ingest(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, ack)
}
