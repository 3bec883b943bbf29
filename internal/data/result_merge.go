package data

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sort"

	"github.com/vitalsense/analysis-jobs/internal/domain/model"
)

// payloadEqual compares two JSON documents by value, ignoring whitespace and object key order
// the way a JSONB comparison does. Undecodable input falls back to a byte comparison.
func payloadEqual(a, b json.RawMessage) bool {
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return bytes.Equal(a, b)
	}
	return reflect.DeepEqual(va, vb)
}

// resultChanged reports whether storing next over prev is an observable change.
func resultChanged(prev *model.JobResult, next *model.JobResult) bool {
	return prev == nil || !payloadEqual(prev.Payload, next.Payload)
}

// needsCompletion reports whether a request must be (re)stamped as completed.
// A changed result always refreshes updated_at; an unchanged one only completes a non-completed request.
func needsCompletion(status model.JobStatus, changed bool) bool {
	return changed || status != model.JobStatusCompleted
}

// sortHistory orders requests most recent first, breaking ties by id.
func sortHistory(jobs []*model.JobRequest) {
	sort.Slice(jobs, func(i, k int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[k].CreatedAt) {
			return jobs[i].CreatedAt.After(jobs[k].CreatedAt)
		}
		return jobs[i].ID > jobs[k].ID
	})
}

// sortOldestFirst orders requests by created_at ascending, breaking ties by id.
func sortOldestFirst(jobs []*model.JobRequest) {
	sort.Slice(jobs, func(i, k int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[k].CreatedAt) {
			return jobs[i].CreatedAt.Before(jobs[k].CreatedAt)
		}
		return jobs[i].ID < jobs[k].ID
	})
}
