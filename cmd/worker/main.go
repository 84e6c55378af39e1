package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/masa162/imgbase/internal/cache"
	"github.com/masa162/imgbase/internal/config"
	"github.com/masa162/imgbase/internal/database"
	"github.com/masa162/imgbase/internal/log"
	"github.com/masa162/imgbase/internal/queue"
	"github.com/masa162/imgbase/internal/repository"
	"github.com/masa162/imgbase/internal/service"
	"github.com/masa162/imgbase/internal/storage"
	"github.com/masa162/imgbase/internal/tasks"
)

func main() {
	flags := pflag.NewFlagSet("imgbase-worker", pflag.ExitOnError)
	configFile := flags.StringP("config", "c", "", "Path to configuration file, defaults to ./config.yaml or ./config/config.yaml")
	sweepOnce := flags.Bool("sweep-once", false, "Run a single pending sweep and exit instead of consuming the stream")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}

	uploads := service.NewUploadService(repository.NewImageRepository(dbPool), objectStore, cfg, logger)
	processor := tasks.NewProcessor(uploads, cfg.Jobs.PendingTTL, cfg.Jobs.SweepBatch, logger)

	if *sweepOnce {
		result, err := uploads.SweepPending(ctx, cfg.Jobs.PendingTTL, cfg.Jobs.SweepBatch)
		if err != nil {
			logger.Fatal().Err(err).Msg("pending sweep failed")
		}
		logger.Info().
			Int("completed", result.Completed).
			Int("reaped", result.Reaped).
			Int("failed", result.Failed).
			Msg("pending sweep finished")
		return
	}

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	consumer := queue.NewConsumer(
		client,
		cfg.Worker.Stream,
		cfg.Worker.Group,
		cfg.Worker.Consumer,
		cfg.Worker.ClaimInterval,
		logger,
		processor,
	)

	logger.Info().
		Str("stream", cfg.Worker.Stream).
		Str("group", cfg.Worker.Group).
		Str("consumer", cfg.Worker.Consumer).
		Msg("worker started")

	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("consumer stopped unexpectedly")
		return
	}

	logger.Info().Msg("worker exited cleanly")
}
