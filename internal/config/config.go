package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Mongo     MongoConfig     `yaml:"mongo"`
	S3        S3Config        `yaml:"s3"`
	Auth      AuthConfig      `yaml:"auth"`
	Bookstore BookstoreConfig `yaml:"bookstore"`
	Prompts   PromptsConfig   `yaml:"prompts"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type StorageConfig struct {
	Driver     string `yaml:"driver"`
	QuotaBytes int    `yaml:"quota_bytes"`
	CacheSize  int    `yaml:"cache_size"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type BookstoreConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval"`
	ReminderDays  int           `yaml:"reminder_days"`
	Seed          bool          `yaml:"seed"`
}

type PromptsConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

var drivers = map[string]bool{
	"memory":   true,
	"postgres": true,
	"sqlite":   true,
	"mongo":    true,
	"s3":       true,
}

// Default возвращает конфигурацию, с которой сервер стартует без файла.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Port: "8080"},
		Storage: StorageConfig{Driver: "memory", QuotaBytes: 5 << 20, CacheSize: 64},
		SQLite:  SQLiteConfig{Path: "bookblog.db"},
		Mongo:   MongoConfig{URI: "mongodb://localhost:27017", Database: "bookblog"},
		S3:      S3Config{Region: "us-east-1", Prefix: "bookblog/"},
		Auth:    AuthConfig{JWTSecret: "change-me-in-production", TokenTTL: 24 * time.Hour},
		Bookstore: BookstoreConfig{
			SweepInterval: 5 * time.Minute,
			ReminderDays:  3,
			Seed:          true,
		},
		Prompts: PromptsConfig{TTL: 2 * time.Minute},
	}
}

// Load читает YAML поверх значений по умолчанию и применяет переменные
// окружения BOOKBLOG_*. Отсутствующий файл не является ошибкой.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Port, "BOOKBLOG_PORT")
	setString(&c.Storage.Driver, "BOOKBLOG_STORAGE")
	setString(&c.Postgres.DSN, "BOOKBLOG_POSTGRES_DSN")
	setString(&c.SQLite.Path, "BOOKBLOG_SQLITE_PATH")
	setString(&c.Mongo.URI, "BOOKBLOG_MONGO_URI")
	setString(&c.Mongo.Database, "BOOKBLOG_MONGO_DB")
	setString(&c.S3.Bucket, "BOOKBLOG_S3_BUCKET")
	setString(&c.S3.Prefix, "BOOKBLOG_S3_PREFIX")
	setString(&c.S3.Region, "BOOKBLOG_S3_REGION")
	setString(&c.S3.Endpoint, "BOOKBLOG_S3_ENDPOINT")
	setString(&c.S3.AccessKeyID, "BOOKBLOG_S3_ACCESS_KEY_ID")
	setString(&c.S3.SecretAccessKey, "BOOKBLOG_S3_SECRET_ACCESS_KEY")
	setString(&c.Auth.JWTSecret, "BOOKBLOG_JWT_SECRET")

	if err := setInt(&c.Storage.QuotaBytes, "BOOKBLOG_QUOTA_BYTES"); err != nil {
		return err
	}
	if err := setInt(&c.Storage.CacheSize, "BOOKBLOG_CACHE_SIZE"); err != nil {
		return err
	}
	if err := setDuration(&c.Auth.TokenTTL, "BOOKBLOG_TOKEN_TTL"); err != nil {
		return err
	}
	if err := setDuration(&c.Bookstore.SweepInterval, "BOOKBLOG_SWEEP_INTERVAL"); err != nil {
		return err
	}
	return setDuration(&c.Prompts.TTL, "BOOKBLOG_PROMPT_TTL")
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if !drivers[c.Storage.Driver] {
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Storage.Driver {
	case "postgres":
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for postgres storage")
		}
	case "sqlite":
		if c.SQLite.Path == "" {
			return errors.New("sqlite.path is required for sqlite storage")
		}
	case "mongo":
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			return errors.New("mongo.uri and mongo.database are required for mongo storage")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return errors.New("s3.bucket is required for s3 storage")
		}
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}
	if c.Bookstore.SweepInterval <= 0 {
		return errors.New("bookstore.sweep_interval must be positive")
	}
	if c.Bookstore.ReminderDays < 0 {
		return errors.New("bookstore.reminder_days must not be negative")
	}
	if c.Prompts.TTL <= 0 {
		return errors.New("prompts.ttl must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}
