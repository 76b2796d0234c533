package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

const (
	DedupNone     = "none"
	DedupMemory   = "memory"
	DedupPostgres = "postgres"
)

// Config is loaded once at startup and never mutated afterwards.
type Config struct {
	SQS     SQSConfig     `envPrefix:"SQS_"`
	AWS     AWSConfig     `envPrefix:"AWS_"`
	Health  HealthConfig  `envPrefix:"HEALTH_"`
	Logging LoggingConfig `envPrefix:"LOG_"`
	Backoff BackoffConfig `envPrefix:"BACKOFF_"`
	Dedup   DedupConfig   `envPrefix:"DEDUP_"`

	DatabaseURL string `env:"DATABASE_URL"`
}

type SQSConfig struct {
	QueueURL          string        `env:"QUEUE_URL,required"`
	MaxMessages       int32         `env:"MAX_MESSAGES"           envDefault:"10"`
	WaitTimeSeconds   int32         `env:"WAIT_TIME_SECONDS"      envDefault:"20"`
	VisibilityTimeout int32         `env:"VISIBILITY_TIMEOUT"     envDefault:"30"`
	Endpoint          string        `env:"ENDPOINT"`
	MaxRetryAttempts  int           `env:"API_MAX_RETRY_ATTEMPTS" envDefault:"3"`
	StatsInterval     time.Duration `env:"STATS_INTERVAL"         envDefault:"30s"`
}

type AWSConfig struct {
	Region string `env:"REGION,required"`
}

type HealthConfig struct {
	Host            string        `env:"HOST"             envDefault:"0.0.0.0"`
	Port            int           `env:"PORT"             envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

type LoggingConfig struct {
	Level  string `env:"LEVEL"  envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"console"`
	// only logs stats and failures at info level
	Quiet bool `env:"QUIET" envDefault:"false"`
}

type BackoffConfig struct {
	Strategy string        `env:"STRATEGY"  envDefault:"fixed"`
	Delay    time.Duration `env:"DELAY"     envDefault:"1s"`
	MaxDelay time.Duration `env:"MAX_DELAY" envDefault:"30s"`
}

type DedupConfig struct {
	Type            string        `env:"TYPE"             envDefault:"none"`
	Retention       time.Duration `env:"RETENTION"        envDefault:"168h"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`
}

// LoadConfig reads the process environment. Entries in overrides win over the
// environment, which is how command line flags are applied.
func LoadConfig(overrides map[string]string) (*Config, error) {
	environ := env.ToMap(os.Environ())
	for k, v := range overrides {
		environ[k] = v
	}
	return loadConfig(environ)
}

func loadConfig(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.SQS.QueueURL == "" {
		return errors.New("SQS queue URL is required")
	}

	if c.AWS.Region == "" {
		return errors.New("AWS region is required")
	}

	if c.SQS.MaxMessages < 1 || c.SQS.MaxMessages > 10 {
		return errors.New("max number of messages per SQS receive must be between 1 and 10")
	}

	if c.SQS.WaitTimeSeconds < 0 || c.SQS.WaitTimeSeconds > 20 {
		return errors.New("SQS receive wait time must be between 0 and 20 seconds")
	}

	if c.SQS.VisibilityTimeout < 0 || c.SQS.VisibilityTimeout > 43200 {
		return errors.New("SQS visibility timeout must be between 0 seconds and 12 hours")
	}

	if c.SQS.MaxRetryAttempts < 0 || c.SQS.MaxRetryAttempts > 10 {
		return errors.New("max SQS API retry attempts must be between 0 and 10")
	}

	if c.SQS.StatsInterval < 0 {
		return errors.New("SQS stats interval cannot be negative")
	}

	if c.Health.Port < 0 || c.Health.Port > 65535 {
		return fmt.Errorf("invalid health port: %d", c.Health.Port)
	}

	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Logging.Level, err)
	}

	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	switch c.Backoff.Strategy {
	case BackoffFixed, BackoffExponential:
	default:
		return fmt.Errorf("invalid backoff strategy: %s", c.Backoff.Strategy)
	}

	if c.Backoff.Delay <= 0 {
		return errors.New("backoff delay must be positive")
	}

	if c.Backoff.MaxDelay < c.Backoff.Delay {
		return errors.New("backoff max delay must not be lower than the delay")
	}

	switch c.Dedup.Type {
	case DedupNone, DedupMemory:
	case DedupPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for postgres deduplication")
		}
	default:
		return fmt.Errorf("invalid dedup type: %s", c.Dedup.Type)
	}

	return nil
}
