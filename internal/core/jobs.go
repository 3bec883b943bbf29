// Package core holds the ports shared by the analysis job services and their adapters.
package core

const (
	// DefaultDispatchTopic carries model.DispatchMessage payloads to workers.
	DefaultDispatchTopic = "analysis.jobs.dispatch"
	// DefaultCompletionTopic carries model.CompletionEvent payloads between API instances.
	DefaultCompletionTopic = "analysis.jobs.completed"
)
