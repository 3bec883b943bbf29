// Package mocks provides mock implementations for testing the analysis job services.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the store and broker ports.
// The mocks are generated using go:generate directives.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	store := mocks.NewMockJobStore(ctrl)
//	store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
package mocks

// Generate mock for JobStore interface from internal/core package.
// Create, GetByID, ListByUser, SaveResult, GetResult, Ping
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_store_mock.go github.com/vitalsense/analysis-jobs/internal/core JobStore

// Generate mock for StaleJobStore interface from internal/core package.
// FailStalePending
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=stale_job_store_mock.go github.com/vitalsense/analysis-jobs/internal/core StaleJobStore

// Generate mock for Broker interface from internal/core package.
// Publish, Subscribe, Ping, Close
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=broker_mock.go github.com/vitalsense/analysis-jobs/internal/core Broker
