package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vitalsense/analysis-jobs/internal/domain/model"
)

func TestJobRequestBuilder(t *testing.T) {
	a := NewJobRequest().Build()
	b := NewJobRequest().WithUser("u2").WithDataType(model.DataTypeFusion).Build()

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, model.JobStatusPending, a.Status)
	assert.Equal(t, "u2", b.UserID)
	assert.Equal(t, model.DataTypeFusion, b.DataType)
}
