// Package testutil provides testing utilities and helpers for the analysis job service.
package testutil

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/vitalsense/analysis-jobs/internal/domain/model"
)

var builderSeq atomic.Int64

// JobRequestBuilder provides a fluent interface for building JobRequest records for testing.
type JobRequestBuilder struct {
	job *model.JobRequest
}

// NewJobRequest creates a pending rppg job with a unique id.
func NewJobRequest() *JobRequestBuilder {
	n := builderSeq.Add(1)
	at := TestTime()
	return &JobRequestBuilder{
		job: &model.JobRequest{
			ID:        fmt.Sprintf("job-%04d", n),
			UserID:    "user-1",
			DataType:  model.DataTypeRPPG,
			DataRef:   fmt.Sprintf("s3://captures/%04d.mp4", n),
			Status:    model.JobStatusPending,
			CreatedAt: at,
			UpdatedAt: at,
		},
	}
}

// WithID sets the job id.
func (b *JobRequestBuilder) WithID(id string) *JobRequestBuilder {
	b.job.ID = id
	return b
}

// WithUser sets the owning user.
func (b *JobRequestBuilder) WithUser(userID string) *JobRequestBuilder {
	b.job.UserID = userID
	return b
}

// WithDataType sets the modality.
func (b *JobRequestBuilder) WithDataType(dt model.DataType) *JobRequestBuilder {
	b.job.DataType = dt
	return b
}

// WithStatus sets the status.
func (b *JobRequestBuilder) WithStatus(status model.JobStatus) *JobRequestBuilder {
	b.job.Status = status
	return b
}

// CreatedAt sets both timestamps.
func (b *JobRequestBuilder) CreatedAt(at time.Time) *JobRequestBuilder {
	b.job.CreatedAt = at
	b.job.UpdatedAt = at
	return b
}

// Build returns the record.
func (b *JobRequestBuilder) Build() *model.JobRequest {
	return b.job.Clone()
}

// NewJobResult builds a result for jobID with the given JSON payload.
func NewJobResult(jobID, payload string, completedAt time.Time) *model.JobResult {
	return &model.JobResult{
		JobID:       jobID,
		Payload:     json.RawMessage(payload),
		CompletedAt: completedAt,
	}
}
