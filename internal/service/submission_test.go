package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vitalsense/analysis-jobs/internal/adapters/broker"
	"github.com/vitalsense/analysis-jobs/internal/core"
	"github.com/vitalsense/analysis-jobs/internal/data"
	"github.com/vitalsense/analysis-jobs/internal/domain/model"
	apperrors "github.com/vitalsense/analysis-jobs/internal/errors"
	"github.com/vitalsense/analysis-jobs/internal/mocks"
	"github.com/vitalsense/analysis-jobs/internal/observability/metrics"
)

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func fixedID(id string) func() (string, error) {
	return func() (string, error) { return id, nil }
}

func TestNewSubmissionService(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockJobStore(ctrl)
	pub := mocks.NewMockBroker(ctrl)

	_, err := NewSubmissionService(SubmissionServiceOptions{Publisher: pub})
	require.Error(t, err)
	_, err = NewSubmissionService(SubmissionServiceOptions{Store: store})
	require.Error(t, err)

	svc, err := NewSubmissionService(SubmissionServiceOptions{
		Store:     store,
		Publisher: pub,
		Config: SubmissionConfig{Estimates: map[model.DataType]time.Duration{
			model.DataTypeVoice: time.Minute,
			model.DataTypeRPPG:  0,
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, time.Minute, svc.EstimatedTime(model.DataTypeVoice))
	assert.Equal(t, 30*time.Second, svc.EstimatedTime(model.DataTypeRPPG), "zero override keeps the default")

	assert.Panics(t, func() { MustNewSubmissionService(SubmissionServiceOptions{}) })
}

func TestSubmissionService_Submit_StoresThenPublishes(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockJobStore(ctrl)
	pub := mocks.NewMockBroker(ctrl)

	svc := MustNewSubmissionService(SubmissionServiceOptions{
		Store:     store,
		Publisher: pub,
		Clock:     data.NewFixedTimeProvider(testNow),
		NewID:     fixedID("j1"),
	})

	gomock.InOrder(
		store.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, job *model.JobRequest) error {
				assert.Equal(t, "j1", job.ID)
				assert.Equal(t, "u1", job.UserID)
				assert.Equal(t, model.DataTypeVoice, job.DataType)
				assert.Equal(t, "gs://x", job.DataRef)
				assert.Equal(t, model.JobStatusPending, job.Status)
				assert.Equal(t, testNow, job.CreatedAt)
				assert.Equal(t, testNow, job.UpdatedAt)
				return nil
			}),
		pub.EXPECT().Publish(gomock.Any(), core.DefaultDispatchTopic, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ string, payload []byte) error {
				var msg model.DispatchMessage
				require.NoError(t, json.Unmarshal(payload, &msg))
				assert.Equal(t, model.DispatchMessage{
					JobID: "j1", UserID: "u1", DataType: model.DataTypeVoice, DataRef: "gs://x", Timestamp: testNow,
				}, msg)
				return nil
			}),
	)

	resp, err := svc.Submit(context.Background(), model.SubmitJobRequest{
		UserID: " u1 ", DataType: "Voice", DataRef: "gs://x",
	})
	require.NoError(t, err)
	assert.Equal(t, &model.SubmitJobResponse{JobID: "j1", Status: model.JobStatusPending, EstimatedTime: 20}, resp)
}

func TestSubmissionService_Submit_Validation(t *testing.T) {
	tests := []struct {
		name  string
		req   model.SubmitJobRequest
		field string
	}{
		{"missing user", model.SubmitJobRequest{DataType: "voice", DataRef: "x"}, "userId"},
		{"blank user", model.SubmitJobRequest{UserID: "  ", DataType: "voice", DataRef: "x"}, "userId"},
		{"missing type", model.SubmitJobRequest{UserID: "u", DataRef: "x"}, "dataType"},
		{"unknown type", model.SubmitJobRequest{UserID: "u", DataType: "eeg", DataRef: "x"}, "dataType"},
		{"missing ref", model.SubmitJobRequest{UserID: "u", DataType: "rppg"}, "dataRef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			// No store or publisher calls are expected.
			svc := MustNewSubmissionService(SubmissionServiceOptions{
				Store:     mocks.NewMockJobStore(ctrl),
				Publisher: mocks.NewMockBroker(ctrl),
			})

			resp, err := svc.Submit(context.Background(), tt.req)
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.True(t, apperrors.IsValidation(err))
			assert.Equal(t, tt.field, apperrors.GetField(err))
		})
	}
}

func TestSubmissionService_Submit_PublishFailureKeepsPendingRecord(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := data.NewMemoryJobRepo()
	pub := mocks.NewMockBroker(ctrl)
	rec := metrics.NewRecorder()

	svc := MustNewSubmissionService(SubmissionServiceOptions{
		Store:     store,
		Publisher: pub,
		NewID:     fixedID("j1"),
		Metrics:   rec,
	})
	pub.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("connection refused"))

	resp, err := svc.Submit(context.Background(), model.SubmitJobRequest{UserID: "u1", DataType: "rppg", DataRef: "x"})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, apperrors.IsUnavailable(err))

	job, err := store.GetByID(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, job.Status)
}

func TestSubmissionService_Submit_StoreFailureSkipsPublish(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockJobStore(ctrl)
	pub := mocks.NewMockBroker(ctrl)

	svc := MustNewSubmissionService(SubmissionServiceOptions{Store: store, Publisher: pub})
	store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("db down"))

	_, err := svc.Submit(context.Background(), model.SubmitJobRequest{UserID: "u1", DataType: "rppg", DataRef: "x"})
	require.Error(t, err)
	assert.True(t, apperrors.IsUnavailable(err))
}

func TestSubmissionService_Submit_IDFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := MustNewSubmissionService(SubmissionServiceOptions{
		Store:     mocks.NewMockJobStore(ctrl),
		Publisher: mocks.NewMockBroker(ctrl),
		NewID:     func() (string, error) { return "", errors.New("entropy") },
	})

	_, err := svc.Submit(context.Background(), model.SubmitJobRequest{UserID: "u1", DataType: "rppg", DataRef: "x"})
	require.Error(t, err)
	assert.True(t, apperrors.IsInternal(err))
}

func TestSubmissionService_Submit_PublishSurvivesCallerCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockJobStore(ctrl)
	pub := mocks.NewMockBroker(ctrl)
	svc := MustNewSubmissionService(SubmissionServiceOptions{Store: store, Publisher: pub})

	ctx, cancel := context.WithCancel(context.Background())
	store.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, *model.JobRequest) error {
		cancel()
		return nil
	})
	pub.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(pctx context.Context, _ string, _ []byte) error {
			return pctx.Err()
		})

	_, err := svc.Submit(ctx, model.SubmitJobRequest{UserID: "u1", DataType: "rppg", DataRef: "x"})
	require.NoError(t, err)
}

func TestSubmissionService_UniqueIDs(t *testing.T) {
	store := data.NewMemoryJobRepo()
	b := broker.NewMemoryBroker(broker.MemoryOptions{})
	defer b.Close()
	svc := MustNewSubmissionService(SubmissionServiceOptions{Store: store, Publisher: b})

	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		resp, err := svc.Submit(context.Background(), model.SubmitJobRequest{UserID: "u1", DataType: "fusion", DataRef: "x"})
		require.NoError(t, err)
		_, dup := seen[resp.JobID]
		require.False(t, dup, "duplicate id %s", resp.JobID)
		seen[resp.JobID] = struct{}{}
		assert.Equal(t, 45, resp.EstimatedTime)
	}
}
