package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vitalsense/analysis-jobs/internal/domain/model"
	"github.com/vitalsense/analysis-jobs/internal/observability/metrics"
)

const defaultHealthTimeout = 2 * time.Second

// Pinger is a dependency that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServiceOptions groups dependencies for HealthService.
type HealthServiceOptions struct {
	Checks  map[string]Pinger // Required: named dependencies, e.g. "store" and "broker"
	Timeout time.Duration     // Optional: per-check timeout
	Logger  *slog.Logger      // Optional: structured logger
	Metrics *metrics.Recorder // Optional: records analysis_service_up
}

// HealthService probes the job store and broker concurrently.
type HealthService struct {
	checks  map[string]Pinger
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// NewHealthService constructs a new HealthService.
func NewHealthService(opts HealthServiceOptions) (*HealthService, error) {
	if len(opts.Checks) == 0 {
		return nil, errors.New("at least one health check is required")
	}
	for name, p := range opts.Checks {
		if p == nil {
			return nil, errors.New("health check " + name + " is nil")
		}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultHealthTimeout
	}
	return &HealthService{
		checks:  opts.Checks,
		timeout: timeout,
		logger:  componentLogger(opts.Logger, "health_service"),
		metrics: opts.Metrics,
	}, nil
}

// Check pings every dependency and reports "healthy" only when all of them answer.
func (s *HealthService) Check(ctx context.Context) model.HealthReport {
	report := model.HealthReport{
		Status:   model.HealthHealthy,
		Services: make(map[string]string, len(s.checks)),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for name, p := range s.checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, s.timeout)
			defer cancel()
			err := p.Ping(cctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.WarnContext(ctx, "health check failed", "service", name, "error", err)
				report.Services[name] = model.ServiceDown
				report.Status = model.HealthDegraded
			} else {
				report.Services[name] = model.ServiceUp
			}
			s.metrics.ServiceUp(name, err == nil)
			return nil
		})
	}
	_ = g.Wait()
	return report
}
