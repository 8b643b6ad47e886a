package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/nfrund/serialbus/internal/pubsub"
)

// Config holds all configuration for the application.
type Config struct {
	LogFormat string `validate:"oneof=text json"`
	LogLevel  string `validate:"oneof=debug info warn error"`

	// BatchSize is the number of subscribers a batched topic runs per job.
	BatchSize int `validate:"min=1,max=10000"`

	HTTPAddr string `validate:"required"`

	// PublishRate caps admin publishes per client IP per second; zero disables it.
	PublishRate  float64 `validate:"gte=0"`
	PublishBurst int     `validate:"gte=0"`

	// TimeUnit is the length of one demo scenario time unit.
	TimeUnit time.Duration `validate:"min=1000000"`

	Tracing pubsub.TracingConfig
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		LogFormat:    "text",
		LogLevel:     "info",
		BatchSize:    pubsub.DefaultBatchSize,
		HTTPAddr:     ":8080",
		PublishRate:  50,
		PublishBurst: 100,
		TimeUnit:     time.Second,
		Tracing:      pubsub.DefaultTracingConfig(),
	}
}

// New loads configuration from a .env file, if present, and the environment.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}

	cfg := Defaults()
	cfg.LogFormat = getenv("LOG_FORMAT", cfg.LogFormat)
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)
	cfg.HTTPAddr = getenv("SERIALBUS_HTTP_ADDR", cfg.HTTPAddr)
	cfg.Tracing.ServiceName = getenv("PUBSUB_TRACING_SERVICE_NAME", cfg.Tracing.ServiceName)
	cfg.Tracing.ZipkinURL = getenv("PUBSUB_TRACING_ZIPKIN_URL", cfg.Tracing.ZipkinURL)

	var err error
	if cfg.BatchSize, err = getenvInt("SERIALBUS_BATCH_SIZE", cfg.BatchSize); err != nil {
		return nil, err
	}
	if cfg.Tracing.Enabled, err = getenvBool("PUBSUB_TRACING_ENABLED", cfg.Tracing.Enabled); err != nil {
		return nil, err
	}
	if cfg.PublishRate, err = getenvFloat("SERIALBUS_PUBLISH_RATE", cfg.PublishRate); err != nil {
		return nil, err
	}
	if cfg.PublishBurst, err = getenvInt("SERIALBUS_PUBLISH_BURST", cfg.PublishBurst); err != nil {
		return nil, err
	}
	if cfg.TimeUnit, err = getenvDuration("SERIALBUS_TIME_UNIT", cfg.TimeUnit); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return f, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}
