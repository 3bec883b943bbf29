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

	"github.com/vitalsense/analysis-jobs/internal/core"
	"github.com/vitalsense/analysis-jobs/internal/data"
	"github.com/vitalsense/analysis-jobs/internal/domain/model"
	"github.com/vitalsense/analysis-jobs/internal/mocks"
)

func TestNewSweeperService(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStaleJobStore(ctrl)

	_, err := NewSweeperService(SweeperServiceOptions{Config: SweeperConfig{PendingMaxAge: time.Hour}})
	require.Error(t, err)
	_, err = NewSweeperService(SweeperServiceOptions{Store: store})
	require.Error(t, err)

	svc, err := NewSweeperService(SweeperServiceOptions{Store: store, Config: SweeperConfig{PendingMaxAge: time.Hour}})
	require.NoError(t, err)
	assert.Equal(t, "@every 1m", svc.cfg.Schedule)
	assert.Equal(t, 100, svc.cfg.BatchSize)
}

func TestSweeperService_SweepOnce_Batches(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStaleJobStore(ctrl)
	clock := data.NewFixedTimeProvider(testNow)

	svc, err := NewSweeperService(SweeperServiceOptions{
		Store:  store,
		Config: SweeperConfig{PendingMaxAge: time.Hour, BatchSize: 2},
		Clock:  clock,
	})
	require.NoError(t, err)

	cutoff := testNow.Add(-time.Hour)
	gomock.InOrder(
		store.EXPECT().FailStalePending(gomock.Any(), core.FailStaleParams{OlderThan: cutoff, Now: testNow, Limit: 2}).
			Return([]string{"a", "b"}, nil),
		store.EXPECT().FailStalePending(gomock.Any(), core.FailStaleParams{OlderThan: cutoff, Now: testNow, Limit: 2}).
			Return([]string{"c"}, nil),
	)

	n, err := svc.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSweeperService_SweepOnce_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStaleJobStore(ctrl)
	svc, err := NewSweeperService(SweeperServiceOptions{Store: store, Config: SweeperConfig{PendingMaxAge: time.Hour}})
	require.NoError(t, err)

	store.EXPECT().FailStalePending(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))
	_, err = svc.SweepOnce(context.Background())
	require.Error(t, err)
}

func TestSweeperService_SweepOnce_PublishesEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := data.NewMemoryJobRepo()
	events := mocks.NewMockBroker(ctrl)
	seedJob(t, store, "old", "u1", testNow.Add(-2*time.Hour))
	seedJob(t, store, "new", "u1", testNow)

	svc, err := NewSweeperService(SweeperServiceOptions{
		Store:  store,
		Config: SweeperConfig{PendingMaxAge: time.Hour},
		Events: events,
		Clock:  data.NewFixedTimeProvider(testNow),
	})
	require.NoError(t, err)

	events.EXPECT().Publish(gomock.Any(), core.DefaultCompletionTopic, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, payload []byte) error {
			var evt model.CompletionEvent
			require.NoError(t, json.Unmarshal(payload, &evt))
			assert.Equal(t, "old", evt.JobID)
			return nil
		})

	n, err := svc.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	job, err := store.GetByID(context.Background(), "old")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	job, err = store.GetByID(context.Background(), "new")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, job.Status)
}

func TestSweeperService_Run(t *testing.T) {
	store := data.NewMemoryJobRepo()
	seedJob(t, store, "old", "u1", time.Now().Add(-2*time.Hour))

	svc, err := NewSweeperService(SweeperServiceOptions{
		Store:  store,
		Config: SweeperConfig{PendingMaxAge: time.Hour, Schedule: "@every 1s"},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Run(ctx) }()

	require.Eventually(t, func() bool {
		job, gerr := store.GetByID(context.Background(), "old")
		return gerr == nil && job.Status == model.JobStatusFailed
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweeperService_Run_BadSchedule(t *testing.T) {
	svc, err := NewSweeperService(SweeperServiceOptions{
		Store:  data.NewMemoryJobRepo(),
		Config: SweeperConfig{PendingMaxAge: time.Hour, Schedule: "not a schedule"},
	})
	require.NoError(t, err)
	require.Error(t, svc.Run(context.Background()))
}
