package service

import (
	"log/slog"

	"github.com/vitalsense/analysis-jobs/internal/core"
	"github.com/vitalsense/analysis-jobs/internal/data"
)

func componentLogger(l *slog.Logger, component string) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With("component", component)
}

func clockOrDefault(c core.Clock) core.Clock {
	if c == nil {
		return data.RealTimeProvider{}
	}
	return c
}
