package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sermoncast/internal/daemon"
	"sermoncast/internal/logging"
	"sermoncast/internal/metrics"
	"sermoncast/internal/pipeline"
	"sermoncast/internal/queue"
	"sermoncast/internal/telemetry"
	"sermoncast/internal/workflow"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the processing daemon and HTTP API in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx)
		},
	}
}

func runServe(cmdCtx context.Context, ctx *commandContext) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := ctx.logger(true)
	if err != nil {
		return err
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}

	reg := metrics.New()
	sink, err := telemetry.NewSink(cfg, logger)
	if err != nil {
		store.Close()
		return fmt.Errorf("telemetry sink: %w", err)
	}
	defer sink.Close()
	emitter := telemetry.NewEmitter(sink, telemetry.WithObserver(reg.ObserveEvent))

	proc, err := pipeline.Build(signalCtx, cfg, pipeline.Deps{
		Logger:  logger,
		Metrics: reg,
		Emitter: emitter,
	})
	if err != nil {
		store.Close()
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer proc.Close()

	mgr := workflow.NewManager(cfg, store, proc, logger)
	d, err := daemon.New(cfg, daemon.Deps{
		Store:    store,
		Workflow: mgr,
		Emitter:  emitter,
		Metrics:  reg,
		Logger:   logger,
	})
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}
	logger.Info("sermoncast ready",
		logging.String("api", d.Addr()),
		logging.String("config", ctx.configPath),
		logging.String("storage", cfg.Storage.Backend),
	)

	<-signalCtx.Done()
	logger.Info("sermoncast daemon shutting down")
	return nil
}
