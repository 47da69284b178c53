package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Redis    RedisConfig    `yaml:"redis"`
	Feed     FeedConfig     `yaml:"feed"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig.DevTokens включает GET /token, выдающий токен любому id.
// Admins могут управлять группами и сбрасывать кеш ленты.
type ServerConfig struct {
	Port      string   `yaml:"port"`
	JWTSecret string   `yaml:"jwt_secret"`
	DevTokens bool     `yaml:"dev_tokens"`
	Admins    []string `yaml:"admins"`
}

// StorageConfig.Type: memory, postgres или sqlite
type StorageConfig struct {
	Type string `yaml:"type"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig с пустым Addr означает кеш страниц в памяти процесса
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// FeedConfig задается при старте и больше не меняется
type FeedConfig struct {
	PageSize int           `yaml:"page_size"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func Default() *Config {
	return &Config{
		Server:  ServerConfig{Port: "8080"},
		Storage: StorageConfig{Type: "memory"},
		SQLite:  SQLiteConfig{Path: "yatube.db"},
		Feed:    FeedConfig{PageSize: 10, CacheTTL: 20 * time.Second},
		Log:     LogConfig{Level: "info"},
	}
}

// Load читает YAML поверх значений по умолчанию. Отсутствующий файл не ошибка.
// Переменные окружения DATABASE_URL, REDIS_ADDR и JWT_SECRET важнее файла.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Postgres.DSN = dsn
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Server.JWTSecret = secret
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Feed.PageSize < 1 {
		return fmt.Errorf("feed.page_size must be positive, got %d", c.Feed.PageSize)
	}
	if c.Feed.CacheTTL <= 0 {
		return fmt.Errorf("feed.cache_ttl must be positive, got %s", c.Feed.CacheTTL)
	}
	switch c.Storage.Type {
	case "memory", "sqlite":
	case "postgres":
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for postgres storage")
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}
	return nil
}
