package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/vitalsense/analysis-jobs/config"
	"github.com/vitalsense/analysis-jobs/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	cfgPtr := &cfg
	logger = bootstrap.ConfigureLogger(cfgPtr)

	// Log startup info
	logStartupInfo(ctx, logger, cfgPtr)

	// Validate configuration
	if err = bootstrap.ValidateServiceConfig(cfgPtr); err != nil {
		return err
	}

	// Initialize infrastructure
	infra, err := bootstrap.OpenInfrastructure(ctx, bootstrap.InfraDeps{Config: cfgPtr, Logger: logger})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := infra.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close infrastructure failed", "error", cerr)
		}
	}()

	auth, err := bootstrap.BuildAuth(ctx, bootstrap.AuthConfig{Auth: cfg.Auth, Logger: logger})
	if err != nil {
		return err
	}

	// Initialize and run services
	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config: cfgPtr,
		Infra:  infra,
		Auth:   auth,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	return bootstrap.RunServicesWithShutdown(&bootstrap.ServiceOrchestrationConfig{
		Config:   cfgPtr,
		Services: services,
		Logger:   logger,
	})
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	enabledServices := bootstrap.GetEnabledServices(cfg)
	logger.InfoContext(ctx, "starting analysis-jobs service",
		"store_backend", cfg.Backends.Store,
		"broker_backend", cfg.Backends.Broker,
		"auth_mode", cfg.Auth.Mode,
		"enabled_services", enabledServices)
}
