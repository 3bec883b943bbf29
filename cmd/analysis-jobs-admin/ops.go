package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vitalsense/analysis-jobs/config"
	"github.com/vitalsense/analysis-jobs/internal/bootstrap"
	"github.com/vitalsense/analysis-jobs/internal/service"
)

const defaultMigrationTimeout = 5 * time.Minute

type migrateOptions struct {
	Timeout time.Duration
}

type consumeOptions struct {
	Topic   string
	Count   int
	Timeout time.Duration
}

type sweepOptions struct {
	MaxAge    time.Duration
	BatchSize int
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := newFlagSet("migrate", nil)

	opts := migrateOptions{
		Timeout: defaultMigrationTimeout,
	}

	fs.DurationVar(
		&opts.Timeout,
		"timeout",
		defaultMigrationTimeout,
		"Maximum duration to wait for migrations to complete",
	)

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}

	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}

	return opts, nil
}

func parseConsumeFlags(args []string, defaultTopic string) (consumeOptions, error) {
	fs := newFlagSet("consume", nil)
	opts := consumeOptions{}
	fs.StringVar(&opts.Topic, "topic", defaultTopic, "Broker topic to read")
	fs.IntVar(&opts.Count, "count", 0, "Stop after this many messages, 0 for no limit")
	fs.DurationVar(&opts.Timeout, "timeout", 0, "Stop after this long, 0 for no limit")
	if err := fs.Parse(args); err != nil {
		return consumeOptions{}, err
	}
	if opts.Topic == "" {
		return consumeOptions{}, errors.New("--topic is required")
	}
	if opts.Count < 0 || opts.Timeout < 0 {
		return consumeOptions{}, errors.New("--count and --timeout must not be negative")
	}
	return opts, nil
}

func parseSweepFlags(args []string, cfg config.SweeperConfig) (sweepOptions, error) {
	fs := newFlagSet("sweep", nil)
	opts := sweepOptions{}
	fs.DurationVar(&opts.MaxAge, "max-age", cfg.PendingMaxAge, "Fail pending jobs older than this")
	fs.IntVar(&opts.BatchSize, "batch-size", cfg.BatchSize, "Jobs failed per store call")
	if err := fs.Parse(args); err != nil {
		return sweepOptions{}, err
	}
	if opts.MaxAge <= 0 {
		return sweepOptions{}, errors.New("--max-age must be greater than zero")
	}
	if opts.BatchSize <= 0 {
		return sweepOptions{}, errors.New("--batch-size must be greater than zero")
	}
	return opts, nil
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	cmdCtx.Logger.Info("running database migrations")

	if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
		return fmt.Errorf("run migrations: %w", migrateErr)
	}

	cmdCtx.Logger.Info("migrations completed successfully")
	return nil
}

func runConsume(cmdCtx *commandContext, args []string) error {
	opts, err := parseConsumeFlags(args, cmdCtx.Config.Backends.Topic)
	if err != nil {
		return err
	}

	infra, err := bootstrap.OpenInfrastructure(cmdCtx.Ctx, bootstrap.InfraDeps{Config: &cmdCtx.Config, Logger: cmdCtx.Logger})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := infra.Close(); cerr != nil {
			cmdCtx.Logger.Warn("close infrastructure failed", "error", cerr)
		}
	}()

	ctx, cancel := context.WithCancel(cmdCtx.Ctx)
	defer cancel()
	if opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	msgs, err := infra.Broker.Subscribe(ctx, opts.Topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", opts.Topic, err)
	}
	cmdCtx.Logger.Info("consuming", "topic", opts.Topic, "broker", cmdCtx.Config.Backends.Broker)

	seen := 0
	for msg := range msgs {
		if err := writef(cmdCtx.Out, "%s\n", msg.Payload); err != nil {
			return fmt.Errorf("write message: %w", err)
		}
		seen++
		if opts.Count > 0 && seen >= opts.Count {
			cancel()
			break
		}
	}
	cmdCtx.Logger.Info("consumer stopped", "messages", seen)
	return nil
}

func runSweep(cmdCtx *commandContext, args []string) error {
	opts, err := parseSweepFlags(args, cmdCtx.Config.Sweeper)
	if err != nil {
		return err
	}

	infra, err := bootstrap.OpenInfrastructure(cmdCtx.Ctx, bootstrap.InfraDeps{Config: &cmdCtx.Config, Logger: cmdCtx.Logger})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := infra.Close(); cerr != nil {
			cmdCtx.Logger.Warn("close infrastructure failed", "error", cerr)
		}
	}()

	sweeper, err := service.NewSweeperService(service.SweeperServiceOptions{
		Store: infra.Store,
		Config: service.SweeperConfig{
			PendingMaxAge: opts.MaxAge,
			BatchSize:     opts.BatchSize,
		},
		Events: infra.Broker,
		Topic:  cmdCtx.Config.Backends.CompletionTopic,
		Logger: cmdCtx.Logger,
	})
	if err != nil {
		return err
	}

	n, err := sweeper.SweepOnce(cmdCtx.Ctx)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	return writef(cmdCtx.Out, "failed %d stale pending job(s)\n", n)
}
