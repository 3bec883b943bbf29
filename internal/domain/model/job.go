// Package model defines the core data types shared by the analysis job services.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/vitalsense/analysis-jobs/internal/errors"
)

// DataType identifies the kind of analysis a job requests.
// It decodes from JSON as a plain string; SubmitJobRequest.Validate rejects unknown values.
type DataType string

// JobStatus represents the current status of a job request.
type JobStatus string

const (
	// DataTypeRPPG requests remote photoplethysmography analysis of a video recording.
	DataTypeRPPG DataType = "rppg"
	// DataTypeVoice requests analysis of an audio recording.
	DataTypeVoice DataType = "voice"
	// DataTypeFusion requests a combined analysis of a video/audio pair.
	DataTypeFusion DataType = "fusion"

	// JobStatusPending indicates the job has been dispatched and no result has been ingested yet.
	JobStatusPending JobStatus = "pending"
	// JobStatusCompleted indicates a result has been ingested for the job.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed is only assigned by the stale job sweeper when a pending job outlives its max age.
	JobStatusFailed JobStatus = "failed"
)

// DataTypes lists every supported analysis kind.
func DataTypes() []DataType {
	return []DataType{DataTypeRPPG, DataTypeVoice, DataTypeFusion}
}

// Valid returns true if the DataType is a known analysis kind.
func (t DataType) Valid() bool {
	return t == DataTypeRPPG || t == DataTypeVoice || t == DataTypeFusion
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusCompleted || s == JobStatusFailed
}

// JobRequest is the record created for every accepted submission.
type JobRequest struct {
	ID        string    `json:"jobId"     db:"id"`
	UserID    string    `json:"userId"    db:"user_id"`
	DataType  DataType  `json:"dataType"  db:"data_type"`
	DataRef   string    `json:"dataRef"   db:"data_ref"`
	Status    JobStatus `json:"status"    db:"status"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Clone returns a deep copy so stores never hand out shared pointers.
func (j *JobRequest) Clone() *JobRequest {
	if j == nil {
		return nil
	}
	c := *j
	return &c
}

// MaxDataRefLength bounds dataRef in bytes so a dispatch message always fits a single
// broker notification (Postgres NOTIFY payloads are limited to 8000 bytes).
const MaxDataRefLength = 2048

// SubmitJobRequest is the client input for a new analysis job.
type SubmitJobRequest struct {
	UserID   string   `json:"userId"`
	DataType DataType `json:"dataType"`
	DataRef  string   `json:"dataRef"`
}

// Normalize trims whitespace and lowercases the data type in place.
func (r *SubmitJobRequest) Normalize() {
	r.UserID = strings.TrimSpace(r.UserID)
	r.DataRef = strings.TrimSpace(r.DataRef)
	r.DataType = DataType(strings.ToLower(strings.TrimSpace(string(r.DataType))))
}

// Validate checks the required fields. Call Normalize first.
func (r *SubmitJobRequest) Validate() error {
	if r.UserID == "" {
		return apperrors.ValidationField("userId", "userId is required")
	}
	if r.DataType == "" {
		return apperrors.ValidationField("dataType", "dataType is required")
	}
	if !r.DataType.Valid() {
		return apperrors.ValidationField("dataType",
			fmt.Sprintf("dataType %q is not supported", string(r.DataType)))
	}
	if r.DataRef == "" {
		return apperrors.ValidationField("dataRef", "dataRef is required")
	}
	if len(r.DataRef) > MaxDataRefLength {
		return apperrors.ValidationField("dataRef",
			fmt.Sprintf("dataRef must be at most %d bytes", MaxDataRefLength))
	}
	return nil
}

// SubmitJobResponse is returned once a job has been stored and dispatched.
type SubmitJobResponse struct {
	JobID         string    `json:"jobId"`
	Status        JobStatus `json:"status"`
	EstimatedTime int       `json:"estimatedTime"`
}

// JobStatusView is the answer to a status query.
// Found is false when the job id is unknown; the wire shape is then identical to a pending job.
type JobStatusView struct {
	JobID       string          `json:"jobId"`
	Status      JobStatus       `json:"status"`
	Result      json.RawMessage `json:"result,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	Found       bool            `json:"-"`
}

// DispatchMessage is published on the broker channel for every accepted submission.
type DispatchMessage struct {
	JobID     string    `json:"jobId"`
	UserID    string    `json:"userId"`
	DataType  DataType  `json:"dataType"`
	DataRef   string    `json:"dataRef"`
	Timestamp time.Time `json:"timestamp"`
}

// NewDispatchMessage builds the dispatch message for a stored job request.
func NewDispatchMessage(j *JobRequest) DispatchMessage {
	return DispatchMessage{
		JobID:     j.ID,
		UserID:    j.UserID,
		DataType:  j.DataType,
		DataRef:   j.DataRef,
		Timestamp: j.CreatedAt,
	}
}

// IsNullJSON reports whether raw is empty or the JSON literal null.
func IsNullJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
