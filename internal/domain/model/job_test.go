package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/vitalsense/analysis-jobs/internal/errors"
)

func TestDataType_Valid(t *testing.T) {
	for _, dt := range DataTypes() {
		assert.True(t, dt.Valid(), dt)
	}
	assert.False(t, DataType("").Valid())
	assert.False(t, DataType("ecg").Valid())
}

func TestSubmitJobRequest_DecodeKeepsUnknownDataType(t *testing.T) {
	for _, body := range []string{
		`{"userId":"u1","dataType":"","dataRef":"x"}`,
		`{"userId":"u1","dataType":"ecg","dataRef":"x"}`,
		`{"userId":"","dataType":"","dataRef":"x"}`,
	} {
		var req SubmitJobRequest
		require.NoError(t, json.Unmarshal([]byte(body), &req), body)
	}

	var req SubmitJobRequest
	require.NoError(t, json.Unmarshal([]byte(`{"userId":"","dataType":"","dataRef":"x"}`), &req))
	req.Normalize()
	err := req.Validate()
	require.Error(t, err)
	assert.Equal(t, "userId", apperrors.GetField(err))
}

func TestJobStatus_Valid(t *testing.T) {
	assert.True(t, JobStatusPending.Valid())
	assert.True(t, JobStatusCompleted.Valid())
	assert.True(t, JobStatusFailed.Valid())
	assert.False(t, JobStatus("running").Valid())
}

func TestSubmitJobRequest_Validate(t *testing.T) {
	tests := []struct {
		name      string
		req       SubmitJobRequest
		wantField string
	}{
		{
			name: "valid",
			req:  SubmitJobRequest{UserID: "u1", DataType: "voice", DataRef: "gs://x"},
		},
		{
			name:      "missing user",
			req:       SubmitJobRequest{UserID: "", DataType: "voice", DataRef: "x"},
			wantField: "userId",
		},
		{
			name:      "whitespace user",
			req:       SubmitJobRequest{UserID: "   ", DataType: "voice", DataRef: "x"},
			wantField: "userId",
		},
		{
			name:      "missing data type",
			req:       SubmitJobRequest{UserID: "u1", DataRef: "x"},
			wantField: "dataType",
		},
		{
			name:      "unknown data type",
			req:       SubmitJobRequest{UserID: "u1", DataType: "ecg", DataRef: "x"},
			wantField: "dataType",
		},
		{
			name:      "missing data ref",
			req:       SubmitJobRequest{UserID: "u1", DataType: "rppg"},
			wantField: "dataRef",
		},
		{
			name: "data ref at max length",
			req:  SubmitJobRequest{UserID: "u1", DataType: "rppg", DataRef: strings.Repeat("a", MaxDataRefLength)},
		},
		{
			name:      "data ref too long",
			req:       SubmitJobRequest{UserID: "u1", DataType: "rppg", DataRef: strings.Repeat("a", MaxDataRefLength+1)},
			wantField: "dataRef",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			req.Normalize()
			err := req.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Equal(t, tt.wantField, apperrors.GetField(err))
		})
	}
}

func TestSubmitJobRequest_Normalize(t *testing.T) {
	req := SubmitJobRequest{UserID: " u1 ", DataType: " FUSION", DataRef: " s3://bucket/a.mp4 "}
	req.Normalize()
	assert.Equal(t, "u1", req.UserID)
	assert.Equal(t, DataTypeFusion, req.DataType)
	assert.Equal(t, "s3://bucket/a.mp4", req.DataRef)
}

func TestIngestResultRequest_Validate(t *testing.T) {
	tests := []struct {
		name      string
		req       IngestResultRequest
		wantField string
	}{
		{name: "valid", req: IngestResultRequest{JobID: "j1", Payload: json.RawMessage(`{"score":82.1}`)}},
		{name: "scalar payload", req: IngestResultRequest{JobID: "j1", Payload: json.RawMessage(`0`)}},
		{name: "missing job id", req: IngestResultRequest{Payload: json.RawMessage(`{}`)}, wantField: "jobId"},
		{name: "missing payload", req: IngestResultRequest{JobID: "j1"}, wantField: "payload"},
		{name: "null payload", req: IngestResultRequest{JobID: "j1", Payload: json.RawMessage(` null `)}, wantField: "payload"},
		{name: "invalid json", req: IngestResultRequest{JobID: "j1", Payload: json.RawMessage(`{`)}, wantField: "payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Equal(t, tt.wantField, apperrors.GetField(err))
		})
	}
}

func TestJobHistoryOptions_NormalizedLimit(t *testing.T) {
	assert.Equal(t, DefaultHistoryLimit, JobHistoryOptions{}.NormalizedLimit())
	assert.Equal(t, DefaultHistoryLimit, JobHistoryOptions{Limit: -3}.NormalizedLimit())
	assert.Equal(t, 3, JobHistoryOptions{Limit: 3}.NormalizedLimit())
	assert.Equal(t, MaxHistoryLimit, JobHistoryOptions{Limit: MaxHistoryLimit + 1}.NormalizedLimit())
}

func TestJobResult_CloneCopiesPayload(t *testing.T) {
	orig := &JobResult{JobID: "j1", Payload: json.RawMessage(`{"a":1}`), CompletedAt: time.Now()}
	c := orig.Clone()
	c.Payload[2] = 'b'
	assert.JSONEq(t, `{"a":1}`, string(orig.Payload))
	assert.Nil(t, (*JobResult)(nil).Clone())
}

func TestJobStatusView_UnknownMatchesPendingShape(t *testing.T) {
	unknown, err := json.Marshal(JobStatusView{JobID: "j1", Status: JobStatusPending})
	require.NoError(t, err)
	pending, err := json.Marshal(JobStatusView{JobID: "j1", Status: JobStatusPending, Found: true})
	require.NoError(t, err)
	assert.JSONEq(t, string(pending), string(unknown))
	assert.JSONEq(t, `{"jobId":"j1","status":"pending"}`, string(unknown))
}

func TestNewDispatchMessage(t *testing.T) {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	msg := NewDispatchMessage(&JobRequest{
		ID: "j1", UserID: "u1", DataType: DataTypeRPPG, DataRef: "gs://x", CreatedAt: created,
	})
	b, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"jobId":"j1","userId":"u1","dataType":"rppg","dataRef":"gs://x","timestamp":"2025-01-02T03:04:05Z"}`,
		string(b))
}
