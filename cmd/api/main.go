package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/masa162/imgbase/internal/cache"
	"github.com/masa162/imgbase/internal/config"
	"github.com/masa162/imgbase/internal/database"
	"github.com/masa162/imgbase/internal/handlers"
	"github.com/masa162/imgbase/internal/jobs"
	"github.com/masa162/imgbase/internal/log"
	"github.com/masa162/imgbase/internal/queue"
	"github.com/masa162/imgbase/internal/repository"
	"github.com/masa162/imgbase/internal/server"
	"github.com/masa162/imgbase/internal/storage"
)

func main() {
	flags := pflag.NewFlagSet("imgbase-api", pflag.ExitOnError)
	configFile := flags.StringP("config", "c", "", "Path to configuration file, defaults to ./config.yaml or ./config/config.yaml")
	migrateOnly := flags.Bool("migrate-only", false, "Apply database migrations and exit")
	hashOnly := flags.Bool("hash-password", false, "Read a password from stdin, print its argon2id hash for auth.password and exit")
	_ = flags.Parse(os.Args[1:])

	if *hashOnly {
		if err := hashPassword(os.Stdin, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	if cfg.Postgres.AutoMigrate || *migrateOnly {
		version, err := database.Migrate(cfg.Postgres.DSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("database migration failed")
		}
		logger.Info().Uint("version", version).Msg("database schema up to date")
	}
	if *migrateOnly {
		return
	}

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}

	// redis only carries maintenance tasks; uploads and delivery work without it
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, maintenance scheduler disabled")
		redisClient = nil
	}

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if cfg.Storage.Endpoint != "" {
		if err := objectStore.EnsureBucket(ctx); err != nil {
			logger.Warn().Err(err).Msg("ensure bucket failed")
		}
	}
	if !cfg.Storage.SigningReady() {
		logger.Warn().Msg("storage credentials incomplete, /upload/sign will answer 503")
	}

	checks := map[string]handlers.CheckFunc{
		"database": dbPool.Ping,
	}
	var scheduler *jobs.Scheduler
	if redisClient != nil {
		checks["cache"] = cache.Ping(redisClient)

		producer := queue.NewProducer(redisClient, cfg.Worker.Stream, 10000)
		scheduler = jobs.NewScheduler(producer, cfg.Jobs.SweepSchedule, logger)
		if err := scheduler.Start(); err != nil {
			logger.Error().Err(err).Msg("scheduler start failed")
			scheduler = nil
		}
	}

	imageRepo := repository.NewImageRepository(dbPool)
	handlerSet := handlers.NewHandlerSet(logger, cfg, imageRepo, objectStore, checks)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	if scheduler != nil {
		scheduler.Stop()
	}

	db.Close()
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}

	logger.Info().Msg("server exited cleanly")
}
