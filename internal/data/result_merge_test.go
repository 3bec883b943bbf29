package data

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vitalsense/analysis-jobs/internal/domain/model"
)

func TestPayloadEqual(t *testing.T) {
	assert.True(t, payloadEqual(json.RawMessage(`{"a":1}`), json.RawMessage("{ \"a\" : 1 }\n")))
	assert.False(t, payloadEqual(json.RawMessage(`{"a":1}`), json.RawMessage(`{"a":2}`)))
	assert.False(t, payloadEqual(json.RawMessage(`{`), json.RawMessage(`{"a":1}`)))
	assert.True(t, payloadEqual(json.RawMessage(`{"a":1,"b":{"c":[1,2]}}`), json.RawMessage(`{"b":{"c":[1,2]},"a":1}`)))
	assert.True(t, payloadEqual(json.RawMessage(`{"score":82.0}`), json.RawMessage(`{"score":82}`)))
	assert.False(t, payloadEqual(json.RawMessage(`[1,2]`), json.RawMessage(`[2,1]`)))
}

func TestNeedsCompletion(t *testing.T) {
	assert.True(t, needsCompletion(model.JobStatusPending, false))
	assert.True(t, needsCompletion(model.JobStatusFailed, false))
	assert.True(t, needsCompletion(model.JobStatusCompleted, true))
	assert.False(t, needsCompletion(model.JobStatusCompleted, false))
}

func TestResultChanged(t *testing.T) {
	next := &model.JobResult{Payload: json.RawMessage(`{"a":1}`)}
	assert.True(t, resultChanged(nil, next))
	assert.False(t, resultChanged(&model.JobResult{Payload: json.RawMessage(`{"a":1}`)}, next))
}
