package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/CrimeVault/internal/config"
	"github.com/dharsanguruparan/CrimeVault/internal/database"
	"github.com/dharsanguruparan/CrimeVault/internal/photostore"
	"github.com/dharsanguruparan/CrimeVault/internal/repository"
	"github.com/dharsanguruparan/CrimeVault/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}
	crimes := repository.NewCrimeRepository(pool)

	photos, err := photostore.New(cfg)
	if err != nil {
		log.Fatalf("init photo storage: %v", err)
	}
	if err := photos.EnsureBucket(ctx); err != nil {
		log.Fatalf("ensure photo bucket: %v", err)
	}

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
	})
	processor := worker.NewProcessor(crimes, photos)

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	log.Printf("photo archive worker running with %d workers", cfg.WorkerConcurrency)
	if err := server.Run(processor.Handler()); err != nil {
		log.Printf("worker stopped: %v", err)
		os.Exit(1)
	}
}
