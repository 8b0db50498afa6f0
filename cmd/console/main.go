package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/speedwagon-io/threshold-console/internal/api"
	"github.com/speedwagon-io/threshold-console/internal/backend"
	"github.com/speedwagon-io/threshold-console/internal/config"
	"github.com/speedwagon-io/threshold-console/internal/health"
	"github.com/speedwagon-io/threshold-console/internal/lib/logger/sl"
	"github.com/speedwagon-io/threshold-console/internal/outbox"
	"github.com/speedwagon-io/threshold-console/internal/replay"
	"github.com/speedwagon-io/threshold-console/internal/threshold"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config file")
	dryRun := flag.Bool("dry-run", false, "log mutations instead of sending them to the backend (backend settings become optional)")
	flag.Parse()

	cfg := config.MustLoad(*configPath, config.WithDryRun(*dryRun))

	log := sl.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	schema, err := threshold.ParseSchema(cfg.Schema)
	if err != nil {
		log.Error("invalid threshold schema", sl.Err(err))
		os.Exit(1)
	}

	log.Info("starting threshold console",
		slog.String("env", cfg.Env),
		slog.String("schema", schema.String()),
		slog.Bool("dry_run", *dryRun),
	)

	validator := threshold.NewValidator(schema)

	// MemoryClient in dry-run mode, HTTPClient otherwise
	var client backend.Client
	if *dryRun {
		client = backend.NewMemoryClient(log)
		log.Info("dry-run mode: mutations will be logged instead of sent")
	} else {
		httpClient := backend.NewHTTPClient(log, &cfg.Backend)
		defer httpClient.Close()
		client = httpClient
	}

	var (
		ob       outbox.Outbox
		replayer api.Replayer
		manager  *replay.Manager
	)
	if cfg.Outbox.Enabled && !*dryRun {
		sqliteOutbox, err := outbox.NewSQLiteOutbox(log, cfg.Outbox.Path)
		if err != nil {
			log.Error("failed to create outbox", sl.Err(err))
			os.Exit(1)
		}
		log.Info("outbox enabled", slog.String("path", cfg.Outbox.Path))

		ob = sqliteOutbox
		manager = replay.NewManager(log, &cfg.Outbox, client, sqliteOutbox)
		replayer = manager
	}

	checks := []health.Checker{health.NewBackendCheck(client)}
	if ob != nil {
		checks = append(checks, health.NewOutboxCheck(ob, health.DefaultBacklogLimit))
	}
	healthServer := health.NewServer(log, cfg.Health.Address, schema.String(), checks...)

	if err := healthServer.Start(); err != nil {
		log.Error("failed to start health server", sl.Err(err))
		os.Exit(1)
	}

	apiServer := api.NewServer(log, &cfg.HTTP, validator, client, ob, replayer)
	if err := apiServer.Start(); err != nil {
		log.Error("failed to start api server", sl.Err(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received signal, shutting down", slog.String("signal", sig.String()))
		cancel()
	}()

	if manager != nil {
		manager.Start(ctx)
	} else {
		<-ctx.Done()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if manager != nil {
		manager.Stop()
	}

	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error("failed to stop api server", sl.Err(err))
	}

	if err := healthServer.Stop(shutdownCtx); err != nil {
		log.Error("failed to stop health server", sl.Err(err))
	}

	if ob != nil {
		if err := ob.Close(); err != nil {
			log.Error("failed to close outbox", sl.Err(err))
		}
	}

	log.Info("threshold console stopped")
}
