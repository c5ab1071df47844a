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
	"github.com/dharsanguruparan/CrimeVault/internal/console"
	"github.com/dharsanguruparan/CrimeVault/internal/database"
	"github.com/dharsanguruparan/CrimeVault/internal/model"
	"github.com/dharsanguruparan/CrimeVault/internal/notify"
	"github.com/dharsanguruparan/CrimeVault/internal/photostore"
	"github.com/dharsanguruparan/CrimeVault/internal/queue"
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

	// The console runs without a live transport until the web dashboard is
	// launched; the notifier is wired in at that point.
	recordStore, err := store.NewRecordStore(ctx, crimes, nil)
	if err != nil {
		log.Fatalf("load records: %v", err)
	}
	registry.SetRecordStore(recordStore)
	index := search.NewIndex(ctx, crimes)
	authSvc := auth.NewService(accounts)

	queueClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer queueClient.Close()

	c := console.New(recordStore, index, authSvc, userSvc, os.Stdin, os.Stdout)
	c.ArchivePhoto = func(ctx context.Context, rec *model.Record) {
		if err := queue.EnqueueArchiveForRecord(ctx, queueClient, rec); err != nil {
			// Archival is best-effort; the record itself is already stored.
			log.Printf("enqueue photo archive for %s: %v", rec.ID, err)
		}
	}
	c.LaunchWeb = func(ctx context.Context) error {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		notifier := notify.New(notify.NewRedisPublisher(rdb), cfg.NotifyChannel, cfg.NotifyResendDelay)
		registry.SetNotifier(notifier)

		// Reuse the registered store so console and dashboard stay on the
		// same live data, and point it at the new transport.
		shared := registry.RecordStore()
		shared.SetNotifier(notifier)

		photos, err := photostore.New(cfg)
		if err != nil {
			log.Printf("photo storage unavailable: %v", err)
			photos = nil
		} else if err := photos.EnsureBucket(ctx); err != nil {
			log.Printf("photo bucket unavailable: %v", err)
			photos = nil
		}
		srv := api.New(cfg, shared, index, authSvc, userSvc,
			signing.NewSigner(cfg.SigningSecret), photos, queueClient,
			api.NewEventSource(rdb, cfg.NotifyChannel))
		return srv.Run(ctx)
	}

	if err := c.Run(ctx); err != nil {
		log.Fatalf("console: %v", err)
	}
}
