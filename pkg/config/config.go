package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration loaded from environment variables or config files.
type Config struct {
	AppEnv          string        `mapstructure:"APP_ENV" validate:"required,oneof=development staging production test"`
	HTTPAddr        string        `mapstructure:"HTTP_ADDR" validate:"required,hostname_port"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT" validate:"required"`
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Only enable behind a proxy that overwrites those headers.
	TrustProxy bool `mapstructure:"TRUST_PROXY"`

	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"required,oneof=debug info warn error dpanic panic fatal"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"required,oneof=json console"`

	DatabaseURL string `mapstructure:"DATABASE_URL" validate:"required,url|uri"`

	// Redis backs both the asynq queue and the per-deal generation lease.
	RedisAddr     string `mapstructure:"REDIS_ADDR" validate:"required,hostname_port"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	AsynqConcurrency int `mapstructure:"ASYNQ_CONCURRENCY" validate:"gte=1,lte=1000"`

	GoMaxProcs int `mapstructure:"GOMAXPROCS" validate:"gte=0,lte=4096"`

	JWTSecret string `mapstructure:"JWT_SECRET"`

	MinioEndpoint  string        `mapstructure:"MINIO_ENDPOINT" validate:"required"`
	MinioAccessKey string        `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey string        `mapstructure:"MINIO_SECRET_KEY"`
	MinioBucket    string        `mapstructure:"MINIO_BUCKET" validate:"required"`
	MinioUseSSL    bool          `mapstructure:"MINIO_USE_SSL"`
	PresignExpiry  time.Duration `mapstructure:"PRESIGN_EXPIRY" validate:"required"`

	GenerationConcurrency int           `mapstructure:"GENERATION_CONCURRENCY" validate:"gte=1,lte=64"`
	TemplateTimeout       time.Duration `mapstructure:"TEMPLATE_TIMEOUT" validate:"required"`
	StorageTimeout        time.Duration `mapstructure:"STORAGE_TIMEOUT" validate:"required"`
	DealLeaseTTL          time.Duration `mapstructure:"DEAL_LEASE_TTL" validate:"required"`
}

var (
	cfg      *Config
	validate = validator.New(validator.WithRequiredStructEnabled())
)

var keys = []string{
	"APP_ENV",
	"HTTP_ADDR",
	"SHUTDOWN_TIMEOUT",
	"TRUST_PROXY",
	"LOG_LEVEL",
	"LOG_FORMAT",
	"DATABASE_URL",
	"REDIS_ADDR",
	"REDIS_PASSWORD",
	"ASYNQ_CONCURRENCY",
	"GOMAXPROCS",
	"JWT_SECRET",
	"MINIO_ENDPOINT",
	"MINIO_ACCESS_KEY",
	"MINIO_SECRET_KEY",
	"MINIO_BUCKET",
	"MINIO_USE_SSL",
	"PRESIGN_EXPIRY",
	"GENERATION_CONCURRENCY",
	"TEMPLATE_TIMEOUT",
	"STORAGE_TIMEOUT",
	"DEAL_LEASE_TTL",
}

// Load initializes configuration using Viper. It loads from .env if present,
// applies defaults, binds env vars, and validates the result.
func Load() (*Config, error) {
	// Load .env if present (non-fatal)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_ADDR", "0.0.0.0:8080")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")
	v.SetDefault("TRUST_PROXY", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("ASYNQ_CONCURRENCY", 10)
	v.SetDefault("GOMAXPROCS", 0)
	v.SetDefault("MINIO_BUCKET", "deal-documents")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("PRESIGN_EXPIRY", "15m")
	v.SetDefault("GENERATION_CONCURRENCY", 4)
	v.SetDefault("TEMPLATE_TIMEOUT", "60s")
	v.SetDefault("STORAGE_TIMEOUT", "20s")
	v.SetDefault("DEAL_LEASE_TTL", "5m")

	// Optional config file
	_ = v.ReadInConfig()

	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}

	// Durations may arrive as strings from env or yaml.
	durations := map[string]*time.Duration{
		"SHUTDOWN_TIMEOUT": &c.ShutdownTimeout,
		"PRESIGN_EXPIRY":   &c.PresignExpiry,
		"TEMPLATE_TIMEOUT": &c.TemplateTimeout,
		"STORAGE_TIMEOUT":  &c.StorageTimeout,
		"DEAL_LEASE_TTL":   &c.DealLeaseTTL,
	}
	for key, dst := range durations {
		s := v.GetString(key)
		if s == "" {
			continue
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
	}

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if c.GoMaxProcs > 0 {
		runtime.GOMAXPROCS(c.GoMaxProcs)
	}

	cfg = &c
	return cfg, nil
}

// MustLoad loads configuration or exits the process on failure.
func MustLoad() *Config {
	c, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return c
}

// Get returns the loaded configuration. Panics if not loaded.
func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call config.Load or config.MustLoad first")
	}
	return cfg
}
