package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vitalsense/analysis-jobs/config"
	domainjob "github.com/vitalsense/analysis-jobs/internal/domain/job"
	httpx "github.com/vitalsense/analysis-jobs/internal/http"
	"github.com/vitalsense/analysis-jobs/internal/observability/metrics"
	"github.com/vitalsense/analysis-jobs/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Submission *service.SubmissionService
	Ingestion  *service.IngestionService
	Query      *service.QueryService
	Health     *service.HealthService
	Sweeper    *service.SweeperService
	Notifier   *domainjob.DefaultNotifier
	Metrics    *metrics.Recorder
	Auth       *httpx.AuthConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config *config.AppConfig
	Infra  *Infrastructure
	Auth   *httpx.AuthConfig
	Logger *slog.Logger
}

// NewServices wires the job services on top of the selected store and broker.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil || deps.Infra == nil {
		return ServiceContainer{}, errors.New("config and infrastructure are required")
	}
	if deps.Infra.Store == nil || deps.Infra.Broker == nil {
		return ServiceContainer{}, errors.New("store and broker are required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	store := deps.Infra.Store
	bus := deps.Infra.Broker

	var recorder *metrics.Recorder
	if cfg.Observability.MetricsEnabled {
		recorder = metrics.NewRecorder()
	}

	notifier, err := domainjob.NewNotifier(domainjob.NotifierOptions{
		Subscriber: bus,
		Topic:      cfg.Backends.CompletionTopic,
		Logger:     logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create completion notifier: %w", err)
	}

	submission, err := service.NewSubmissionService(service.SubmissionServiceOptions{
		Store:     store,
		Publisher: bus,
		Config: service.SubmissionConfig{
			Topic:          cfg.Backends.Topic,
			Estimates:      cfg.Jobs.Estimates(),
			PublishTimeout: cfg.Backends.PublishTimeout,
		},
		Logger:  logger,
		Metrics: recorder,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create submission service: %w", err)
	}

	ingestion, err := service.NewIngestionService(service.IngestionServiceOptions{
		Store:    store,
		Events:   bus,
		Topic:    cfg.Backends.CompletionTopic,
		Notifier: notifier,
		Logger:   logger,
		Metrics:  recorder,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create ingestion service: %w", err)
	}

	query, err := service.NewQueryService(service.QueryServiceOptions{
		Store:    store,
		Notifier: notifier,
		Logger:   logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create query service: %w", err)
	}

	health, err := service.NewHealthService(service.HealthServiceOptions{
		Checks: map[string]service.Pinger{
			"store":  store,
			"broker": bus,
		},
		Logger:  logger,
		Metrics: recorder,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create health service: %w", err)
	}

	sweeper, err := service.NewSweeperService(service.SweeperServiceOptions{
		Store: store,
		Config: service.SweeperConfig{
			Schedule:      cfg.Sweeper.Schedule,
			PendingMaxAge: cfg.Sweeper.PendingMaxAge,
			BatchSize:     cfg.Sweeper.BatchSize,
		},
		Events:  bus,
		Topic:   cfg.Backends.CompletionTopic,
		Logger:  logger,
		Metrics: recorder,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create sweeper service: %w", err)
	}

	return ServiceContainer{
		Submission: submission,
		Ingestion:  ingestion,
		Query:      query,
		Health:     health,
		Sweeper:    sweeper,
		Notifier:   notifier,
		Metrics:    recorder,
		Auth:       deps.Auth,
	}, nil
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
	// Signals overrides the OS shutdown signal source. Optional.
	Signals <-chan os.Signal
}

const (
	// shutdownWaitTimeout is the maximum time to wait for background services to stop.
	shutdownWaitTimeout = 15 * time.Second
)

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

// startHTTPServerIfEnabled starts the HTTP server if enabled.
func startHTTPServerIfEnabled(deps *serviceStartupDeps) (*http.Server, error) {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeHTTP] {
		return nil, nil //nolint:nilnil // no server when http is disabled
	}
	return StartHTTPServer(&HTTPServerConfig{
		Config:   deps.cfg.Config,
		Services: deps.cfg.Services,
		Logger:   deps.logger,
		ErrCh:    deps.errCh,
	})
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !deps.enabledServices[descriptor.mode] {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				deps.logger.WarnContext(ctx, "dropping background service error",
					"service", descriptor.name,
					"error", errMsg,
				)
			}
		}
	}()

	deps.logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)

	return done
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))

	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}

		handles = append(handles, backgroundServiceHandle{
			mode: svc.mode,
			name: svc.name,
			done: done,
		})
	}

	return handles
}

func newSweeperBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeSweeper,
		name: "sweeper",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil || deps.cfg.Services.Sweeper == nil {
				return errors.New("sweeper service is not configured")
			}
			return deps.cfg.Services.Sweeper.Run(ctx)
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil {
		return nil
	}
	return []backgroundService{
		newSweeperBackgroundService(deps),
	}
}

// ServiceStartupResult holds the results of starting all services.
type ServiceStartupResult struct {
	HTTPServer *http.Server
	Background []backgroundServiceHandle
}

// startServices starts all enabled services and returns their completion channels.
func startServices(deps *serviceStartupDeps) (ServiceStartupResult, error) {
	server, err := startHTTPServerIfEnabled(deps)
	if err != nil {
		return ServiceStartupResult{}, err
	}
	return ServiceStartupResult{
		HTTPServer: server,
		Background: startBackgroundServices(deps, buildBackgroundServices(deps)),
	}, nil
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}
	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Determine which services are enabled
	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	result, err := startServices(&serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	})
	if err != nil {
		return err
	}

	signals := cfg.Signals
	if signals == nil {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)
		signals = quit
	}

	// Wait for shutdown signal or error
	return waitForShutdown(shutdownConfig{
		ctx:             serviceCtx,
		cancel:          cancel,
		signals:         signals,
		errCh:           errCh,
		httpServer:      result.HTTPServer,
		notifier:        cfg.Services.Notifier,
		shutdownTimeout: cfg.Config.HTTP.ShutdownTimeout,
		logger:          logger,
		backgrounds:     result.Background,
	})
}

func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	count := 0
	for _, mode := range config.ValidServiceModes() {
		if enabled[mode] {
			count++
		}
	}
	return count
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	return errorChannelCapacity(enabled) + 1
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx             context.Context
	cancel          context.CancelFunc
	signals         <-chan os.Signal
	errCh           <-chan error
	httpServer      *http.Server
	notifier        *domainjob.DefaultNotifier
	shutdownTimeout time.Duration
	logger          *slog.Logger
	backgrounds     []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	select {
	case sig := <-cfg.signals:
		cfg.logger.Info("shutting down services...", "signal", fmt.Sprint(sig))
		cfg.cancel() // Cancel service context before waiting
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel() // Cancel service context before waiting
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop attempts to gracefully stop all services.
func gracefulStop(cfg shutdownConfig) error {
	if cfg.httpServer != nil {
		timeout := cfg.shutdownTimeout
		if timeout <= 0 {
			timeout = shutdownWaitTimeout
		}
		// The service context is already canceled; the drain gets its own deadline.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(cfg.ctx), timeout)
		defer cancel()

		var notifier interface{ StopAll() }
		if cfg.notifier != nil {
			notifier = cfg.notifier
		}
		if err := ShutdownHTTPServer(ShutdownConfig{
			Context:  shutdownCtx,
			Server:   cfg.httpServer,
			Notifier: notifier,
			Logger:   cfg.logger,
		}); err != nil {
			return err
		}
	} else if cfg.notifier != nil {
		cfg.notifier.StopAll()
	}

	// Wait for background services to finish
	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}

	return nil
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
