package model

import (
	"encoding/json"
	"strings"
	"time"

	apperrors "github.com/vitalsense/analysis-jobs/internal/errors"
)

// JobResult is the worker-provided outcome of a job. At most one exists per job id.
// The job id may not match any JobRequest; such orphans are kept.
type JobResult struct {
	JobID       string          `json:"jobId"       db:"job_id"`
	Payload     json.RawMessage `json:"payload"     db:"payload"`
	CompletedAt time.Time       `json:"completedAt" db:"completed_at"`
}

// Clone returns a deep copy, including the payload bytes.
func (r *JobResult) Clone() *JobResult {
	if r == nil {
		return nil
	}
	c := *r
	if r.Payload != nil {
		c.Payload = append(json.RawMessage(nil), r.Payload...)
	}
	return &c
}

// IngestResultRequest is the worker callback body.
type IngestResultRequest struct {
	JobID   string          `json:"jobId"`
	Payload json.RawMessage `json:"payload"`
}

// Validate checks the job id and payload are present.
func (r *IngestResultRequest) Validate() error {
	if strings.TrimSpace(r.JobID) == "" {
		return apperrors.ValidationField("jobId", "jobId is required")
	}
	if IsNullJSON(r.Payload) {
		return apperrors.ValidationField("payload", "payload is required")
	}
	if !json.Valid(r.Payload) {
		return apperrors.ValidationField("payload", "payload must be valid JSON")
	}
	return nil
}

// IngestAck acknowledges a stored result.
type IngestAck struct {
	Ack   bool   `json:"ack"`
	JobID string `json:"jobId"`
}

// SaveResultOutcome reports what a store did with an ingested result.
type SaveResultOutcome struct {
	// RequestFound is true when a JobRequest with the same id exists.
	RequestFound bool
	// Changed is false when the identical payload was already stored and the request was already completed.
	Changed bool
}

// CompletionEvent is broadcast after a result is stored so long-polling readers can wake up.
type CompletionEvent struct {
	JobID       string    `json:"jobId"`
	CompletedAt time.Time `json:"completedAt"`
}
