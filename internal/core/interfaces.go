package core

import (
	"context"
	"time"

	"github.com/vitalsense/analysis-jobs/internal/domain/model"
)

// This file contains the ports between the service layer and the storage/transport adapters.
// Service implementations depend on these interfaces, never on a concrete backend.

// JobRequestStore persists JobRequest records.
type JobRequestStore interface {
	// Create inserts a new pending request. The id must not exist yet.
	Create(ctx context.Context, job *model.JobRequest) error
	// GetByID returns data.ErrJobNotFound when the id is unknown.
	GetByID(ctx context.Context, id string) (*model.JobRequest, error)
	// ListByUser returns the user's requests ordered by created_at desc, id desc.
	ListByUser(ctx context.Context, opts model.JobHistoryOptions) ([]*model.JobRequest, error)
}

// JobResultStore persists JobResult records.
type JobResultStore interface {
	// SaveResult upserts the result and, when a request with the same id exists, marks it completed.
	// Both writes are applied atomically. An identical payload for an already completed request is a no-op.
	SaveResult(ctx context.Context, result *model.JobResult) (model.SaveResultOutcome, error)
	// GetResult returns data.ErrResultNotFound when no result was ingested.
	GetResult(ctx context.Context, jobID string) (*model.JobResult, error)
}

// JobStore is the full persistence port used by the job services.
type JobStore interface {
	JobRequestStore
	JobResultStore
	Ping(ctx context.Context) error
}

// FailStaleParams groups parameters for StaleJobStore.FailStalePending.
type FailStaleParams struct {
	OlderThan time.Time
	Now       time.Time
	Limit     int
}

// StaleJobStore is implemented by stores that support the opt-in stale job sweep.
type StaleJobStore interface {
	// FailStalePending moves at most Limit pending requests created before OlderThan to failed
	// and returns their ids.
	FailStalePending(ctx context.Context, params FailStaleParams) ([]string, error)
}

// Message is a single broker delivery.
type Message struct {
	Topic   string
	Payload []byte
}

// Publisher publishes broker messages.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Subscriber delivers broker messages until ctx is canceled, then closes the channel.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan Message, error)
}

// Broker is the publish/subscribe channel between the submission path and workers.
type Broker interface {
	Publisher
	Subscriber
	Ping(ctx context.Context) error
	Close() error
}

// Clock provides timestamps for created_at ordering.
type Clock interface {
	Now() time.Time
}
