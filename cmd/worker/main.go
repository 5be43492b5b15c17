package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"svgembed/internal/config"
	"svgembed/internal/database"
	"svgembed/internal/jobs"
	"svgembed/internal/log"
	"svgembed/internal/queue"
	"svgembed/internal/repository"
	"svgembed/internal/storage"
	"svgembed/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := database.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := objectStore.EnsureBuckets(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure buckets failed")
	}

	processor := tasks.NewProcessor(
		repository.NewImageRepository(dbPool),
		objectStore,
		tasks.Options{
			VariantsBucket: cfg.Storage.BucketVariants,
			PreviewSize:    cfg.Worker.PreviewSize,
			MaxBytes:       cfg.Render.MaxBytes,
		},
		logger,
	)
	consumer := queue.NewConsumer(client, queue.ConsumerConfig{
		Stream:            cfg.Redis.Stream,
		Group:             cfg.Redis.Group,
		Name:              cfg.Redis.Consumer,
		ClaimInterval:     cfg.Worker.ClaimInterval,
		VisibilityTimeout: cfg.Worker.VisibilityTimeout,
		Block:             cfg.Worker.Block,
	}, logger, processor)

	scheduler := jobs.NewScheduler(queue.NewProducer(client, cfg.Redis.Stream), cfg.Worker.CleanupSchedule, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("consumer stopped unexpectedly")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	select {
	case <-scheduler.Stop().Done():
	case <-time.After(5 * time.Second):
	}
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn().Msg("consumer did not stop in time")
	}
	logger.Info().Msg("worker exited cleanly")
}
