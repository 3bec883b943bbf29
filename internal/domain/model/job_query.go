package model

const (
	// DefaultHistoryLimit is used when the caller gives no positive limit.
	DefaultHistoryLimit = 10
	// MaxHistoryLimit caps a single history page.
	MaxHistoryLimit = 1000
)

// JobHistoryOptions groups parameters for listing a user's jobs, most recent first.
type JobHistoryOptions struct {
	UserID string
	Limit  int
}

// NormalizedLimit applies the default and upper bound to Limit.
func (o JobHistoryOptions) NormalizedLimit() int {
	switch {
	case o.Limit <= 0:
		return DefaultHistoryLimit
	case o.Limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return o.Limit
	}
}

// JobHistoryResponse is the wire shape of a history query. Total is len(History).
type JobHistoryResponse struct {
	History []*JobRequest `json:"history"`
	Total   int           `json:"total"`
}
