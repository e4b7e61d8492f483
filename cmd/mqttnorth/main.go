// Command mqttnorth forwards readings from a JSON lines file to an MQTT
// broker, one block at a time, with checkpointing.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/illmade-knight/go-mqttnorth/pkg/checkpoint"
	"github.com/illmade-knight/go-mqttnorth/pkg/metrics"
	"github.com/illmade-knight/go-mqttnorth/pkg/microservice"
	"github.com/illmade-knight/go-mqttnorth/pkg/mqttconverter"
	"github.com/illmade-knight/go-mqttnorth/pkg/north"
	"github.com/illmade-knight/go-mqttnorth/pkg/northtask"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "mqttnorth.yaml", "path to the YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "mqttnorth: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := LoadServiceConfig(configPath)
	if err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log_level %q: %w", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Str("service", "mqttnorth").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	recorder, err := metrics.NewPrometheusRecorder(reg)
	if err != nil {
		return err
	}

	handle, err := north.Init(cfg.Plugin, logger,
		north.WithMQTTClientConfig(mqttconverter.LoadMQTTClientConfigWithEnv()),
		north.WithRecorder(recorder),
	)
	if err != nil {
		return fmt.Errorf("failed to initialise forwarder: %w", err)
	}
	defer handle.Shutdown()

	store, err := newCheckpointStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close checkpoint store.")
		}
	}()

	task, err := northtask.NewTask(cfg.Task, northtask.NewFileSource(cfg.Source.Path), handle, store, logger)
	if err != nil {
		return err
	}

	server := microservice.NewBaseServer(logger, cfg.HTTPPort, metrics.Handler(reg), handle.Active)
	if err := server.Start(); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	start := time.Now()
	err = task.Run(ctx)
	logger.Info().Dur("uptime", time.Since(start)).Msg("Forwarder stopping.")
	return err
}

func newCheckpointStore(ctx context.Context, cfg *ServiceConfig, logger zerolog.Logger) (checkpoint.Store, error) {
	if cfg.Checkpoint.Redis == nil {
		logger.Warn().Msg("No checkpoint store configured, checkpoints are kept in memory only.")
		return checkpoint.NewInMemoryStore(), nil
	}
	store, err := checkpoint.NewRedisStore(ctx, cfg.Checkpoint.Redis, logger)
	if err != nil {
		return nil, err
	}
	return store, nil
}
