package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/dharsanguruparan/CrimeVault/internal/api"
	"github.com/dharsanguruparan/CrimeVault/internal/auth"
	"github.com/dharsanguruparan/CrimeVault/internal/config"
	"github.com/dharsanguruparan/CrimeVault/internal/database"
	"github.com/dharsanguruparan/CrimeVault/internal/notify"
	"github.com/dharsanguruparan/CrimeVault/internal/photostore"
	"github.com/dharsanguruparan/CrimeVault/internal/registry"
	"github.com/dharsanguruparan/CrimeVault/internal/repository"
	"github.com/dharsanguruparan/CrimeVault/internal/search"
	"github.com/dharsanguruparan/CrimeVault/internal/signing"
	"github.com/dharsanguruparan/CrimeVault/internal/store"
	"github.com/dharsanguruparan/CrimeVault/internal/users"
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
	accounts := repository.NewUserRepository(pool)

	userSvc := users.NewService(accounts)
	if err := userSvc.EnsureDefaultAdmin(ctx, cfg.AdminPassword); err != nil {
		log.Fatalf("seed admin user: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	notifier := notify.New(notify.NewRedisPublisher(rdb), cfg.NotifyChannel, cfg.NotifyResendDelay)

	recordStore, err := store.NewRecordStore(ctx, crimes, notifier)
	if err != nil {
		log.Fatalf("load records: %v", err)
	}
	registry.SetRecordStore(recordStore)
	registry.SetNotifier(notifier)
	index := search.NewIndex(ctx, crimes)

	photos, err := photostore.New(cfg)
	if err != nil {
		// The API degrades to local photo serving without object storage.
		log.Printf("photo storage unavailable: %v", err)
		photos = nil
	} else if err := photos.EnsureBucket(ctx); err != nil {
		log.Printf("photo bucket unavailable: %v", err)
		photos = nil
	}

	queueClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer queueClient.Close()

	srv := api.New(cfg, recordStore, index, auth.NewService(accounts), userSvc,
		signing.NewSigner(cfg.SigningSecret), photos, queueClient,
		api.NewEventSource(rdb, cfg.NotifyChannel))
	if err := srv.Run(ctx); err != nil {
		log.Printf("server stopped: %v", err)
		os.Exit(1)
	}
}
