package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalsense/analysis-jobs/internal/adapters/broker"
	"github.com/vitalsense/analysis-jobs/internal/core"
	"github.com/vitalsense/analysis-jobs/internal/data"
	"github.com/vitalsense/analysis-jobs/internal/domain/model"
	apperrors "github.com/vitalsense/analysis-jobs/internal/errors"
)

// TestJobLifecycle walks submit -> dispatch -> ingest -> status over the in-memory backends.
func TestJobLifecycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := data.NewMemoryJobRepo()
	b := broker.NewMemoryBroker(broker.MemoryOptions{})
	defer b.Close()

	dispatch, err := b.Subscribe(ctx, core.DefaultDispatchTopic)
	require.NoError(t, err)

	submit := MustNewSubmissionService(SubmissionServiceOptions{Store: store, Publisher: b})
	ingest := MustNewIngestionService(IngestionServiceOptions{Store: store, Events: b})
	query := MustNewQueryService(QueryServiceOptions{Store: store})

	resp, err := submit.Submit(ctx, model.SubmitJobRequest{UserID: "u1", DataType: "voice", DataRef: "gs://x"})
	require.NoError(t, err)
	view, err := query.GetStatus(ctx, resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, view.Status)
	assert.True(t, view.Found)

	msg := <-dispatch
	var dm model.DispatchMessage
	require.NoError(t, json.Unmarshal(msg.Payload, &dm))
	assert.Equal(t, resp.JobID, dm.JobID)
	assert.Equal(t, "gs://x", dm.DataRef)

	_, err = ingest.Ingest(ctx, model.IngestResultRequest{JobID: dm.JobID, Payload: json.RawMessage(`{"score":82.1}`)})
	require.NoError(t, err)
	view, err = query.GetStatus(ctx, resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, view.Status)
	assert.JSONEq(t, `{"score":82.1}`, string(view.Result))

	// Invalid submissions leave the store untouched.
	before, _ := store.Len()
	_, err = submit.Submit(ctx, model.SubmitJobRequest{UserID: "", DataType: "voice", DataRef: "x"})
	assert.True(t, apperrors.IsValidation(err))
	after, _ := store.Len()
	assert.Equal(t, before, after)

	// Orphan results are acknowledged but the unknown id still reads as pending.
	ack, err := ingest.Ingest(ctx, model.IngestResultRequest{JobID: "unknown-job", Payload: json.RawMessage(`{"x":1}`)})
	require.NoError(t, err)
	assert.True(t, ack.Ack)
	view, err = query.GetStatus(ctx, "unknown-job")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, view.Status)
	assert.False(t, view.Found)

	history, err := query.GetHistory(ctx, "u1", 0)
	require.NoError(t, err)
	require.Equal(t, 1, history.Total)
	assert.Equal(t, resp.JobID, history.History[0].ID)
}
