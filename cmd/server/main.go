package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ButyrinIA/bookblog/internal/auth"
	"github.com/ButyrinIA/bookblog/internal/blog"
	"github.com/ButyrinIA/bookblog/internal/bookstore"
	"github.com/ButyrinIA/bookblog/internal/clock"
	"github.com/ButyrinIA/bookblog/internal/config"
	"github.com/ButyrinIA/bookblog/internal/confirm"
	"github.com/ButyrinIA/bookblog/internal/events"
	"github.com/ButyrinIA/bookblog/internal/scheduler"
	"github.com/ButyrinIA/bookblog/internal/server"
	"github.com/ButyrinIA/bookblog/internal/storage"
	"github.com/ButyrinIA/bookblog/internal/storage/cached"
	"github.com/ButyrinIA/bookblog/internal/storage/memory"
	"github.com/ButyrinIA/bookblog/internal/storage/mongo"
	"github.com/ButyrinIA/bookblog/internal/storage/postgres"
	"github.com/ButyrinIA/bookblog/internal/storage/s3store"
	"github.com/ButyrinIA/bookblog/internal/storage/sqlite"
)

func main() {
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	storageType := flag.String("storage", "", "тип хранилища: memory, postgres, sqlite, mongo или s3")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("Не удалось прочитать .env: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Не удалось загрузить конфигурацию: %v", err)
	}
	if *storageType != "" {
		cfg.Storage.Driver = *storageType
		if err := cfg.Validate(); err != nil {
			log.Fatalf("Неверная конфигурация: %v", err)
		}
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("Не удалось инициализировать хранилище %s: %v", cfg.Storage.Driver, err)
	}
	defer store.Close()

	if cfg.Storage.CacheSize > 0 {
		store, err = cached.New(store, cfg.Storage.CacheSize)
		if err != nil {
			log.Fatalf("Не удалось создать кэш хранилища: %v", err)
		}
	}

	clk := clock.Real{}
	hub := events.NewHub(0)

	b := blog.New(store, blog.Options{Clock: clk, Logger: logger, Notifier: hub})
	books := bookstore.New(store, bookstore.Options{
		Clock:        clk,
		Logger:       logger,
		Notifier:     hub,
		ReminderDays: cfg.Bookstore.ReminderDays,
	})
	if cfg.Bookstore.Seed {
		if _, err := books.Seed(ctx); err != nil {
			log.Fatalf("Не удалось заполнить каталог: %v", err)
		}
	}
	prompts := confirm.NewRegistry(cfg.Prompts.TTL, clk, logger)

	sched := scheduler.New(logger)
	sched.Add(scheduler.Job{
		Name:     "rental-sweep",
		Interval: cfg.Bookstore.SweepInterval,
		Run: func(ctx context.Context) error {
			_, err := books.Sweep(ctx)
			return err
		},
	})
	sched.Add(scheduler.Job{
		Name:     "prompt-expiry",
		Interval: cfg.Prompts.TTL,
		Run: func(ctx context.Context) error {
			if n := prompts.Expire(clk.Now()); n > 0 {
				logger.Info("prompts expired", "count", n)
			}
			return nil
		},
	})
	sched.Start(ctx)

	srv := server.New(cfg, server.Deps{
		Blog:    b,
		Books:   books,
		Prompts: prompts,
		Hub:     hub,
		Issuer:  auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, clk),
		Logger:  logger,
	})
	log.Println("Запуск сервера")
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("Не удалось запустить сервер: %v", err)
	}
	stop()
	sched.Wait()
	log.Println("Сервер остановлен")
}

func openStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		log.Println("Инициализация хранилища PostgreSQL")
		return postgres.New(ctx, cfg.Postgres.DSN)
	case "sqlite":
		log.Println("Инициализация хранилища SQLite")
		return sqlite.New(cfg.SQLite.Path)
	case "mongo":
		log.Println("Инициализация хранилища MongoDB")
		return mongo.New(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	case "s3":
		log.Println("Инициализация хранилища S3")
		return s3store.New(ctx, s3store.Options{
			Bucket:          cfg.S3.Bucket,
			Prefix:          cfg.S3.Prefix,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
	case "memory":
		log.Println("Инициализация хранилища Memory")
		return memory.NewWithQuota(cfg.Storage.QuotaBytes), nil
	}
	return nil, fmt.Errorf("неизвестный тип хранилища: %s", cfg.Storage.Driver)
}
