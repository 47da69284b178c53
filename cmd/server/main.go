package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/ButyrinIA/yatube/internal/blog"
	"github.com/ButyrinIA/yatube/internal/config"
	"github.com/ButyrinIA/yatube/internal/pagecache"
	"github.com/ButyrinIA/yatube/internal/server"
	"github.com/ButyrinIA/yatube/internal/storage"
	"github.com/ButyrinIA/yatube/internal/storage/memory"
	"github.com/ButyrinIA/yatube/internal/storage/postgres"
	"github.com/ButyrinIA/yatube/internal/storage/sqlite"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	storageType := flag.String("storage", "", "тип хранилища: memory, postgres или sqlite (по умолчанию из конфигурации)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Не удалось загрузить конфигурацию: %v", err)
	}
	if *storageType != "" {
		cfg.Storage.Type = *storageType
		if err := cfg.Validate(); err != nil {
			log.Fatalf("Неверная конфигурация: %v", err)
		}
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Неизвестный уровень логирования: %s", cfg.Log.Level)
	}
	log.SetLevel(level)
	log.SetFormatter(&log.JSONFormatter{})

	store, err := newStore(cfg)
	if err != nil {
		log.Fatalf("Не удалось инициализировать хранилище: %v", err)
	}
	defer store.Close()

	cache, err := pagecache.New(newCacheBackend(cfg), cfg.Feed.CacheTTL)
	if err != nil {
		log.Fatalf("Не удалось инициализировать кеш страниц: %v", err)
	}

	service, err := blog.New(store, cache, cfg.Feed.PageSize)
	if err != nil {
		log.Fatalf("Не удалось инициализировать сервис: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, service)
	log.Println("Запуск сервера")
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("Не удалось запустить сервер: %v", err)
	}
	log.Println("Сервер остановлен")
}

func newStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Type {
	case "postgres":
		log.Println("Инициализация хранилища PostgreSQL")
		return postgres.New(cfg.Postgres.DSN)
	case "sqlite":
		log.Println("Инициализация хранилища SQLite")
		return sqlite.New(cfg.SQLite.Path)
	default:
		log.Println("Инициализация хранилища Memory")
		return memory.New(), nil
	}
}

func newCacheBackend(cfg *config.Config) pagecache.Backend {
	if cfg.Redis.Addr == "" {
		log.Println("Кеш страниц в памяти процесса")
		return pagecache.NewMemoryBackend(pagecache.SystemClock{})
	}
	log.WithField("addr", cfg.Redis.Addr).Info("Кеш страниц в Redis")
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return pagecache.NewRedisBackend(client, "yatube:page:")
}
