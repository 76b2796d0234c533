package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	app := &cli.App{
		Name:  "sqs-processor",
		Usage: "Drain an AWS SQS queue and expose health probes",
		Commands: []*cli.Command{
			{
				Name:  "start",
				Usage: "Start the SQS message processor",
				Description: "Configuration is read from the environment (SQS_QUEUE_URL, AWS_REGION, ...). " +
					"Flags override the matching environment variables.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "queue-url",
						Usage: "AWS SQS queue URL (SQS_QUEUE_URL)",
					},
					&cli.StringFlag{
						Name:  "region",
						Usage: "AWS region (AWS_REGION)",
					},
					&cli.StringFlag{
						Name:  "log-level",
						Usage: "Log level: trace, debug, info, warn, error (LOG_LEVEL)",
					},
					&cli.IntFlag{
						Name:  "health-port",
						Usage: "Port for the health and metrics server (HEALTH_PORT)",
					},
					&cli.StringFlag{
						Name:  "dedup-type",
						Usage: "Deduplication store type: none, memory, postgres (DEDUP_TYPE)",
					},
					&cli.BoolFlag{
						Name:  "quiet",
						Usage: "Suppress per-message success logs (LOG_QUIET)",
					},
				},
				Action: startProcessor,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("Application failed")
	}
}

// flagOverrides maps the flags that were set onto their environment names
func flagOverrides(c *cli.Context) map[string]string {
	overrides := map[string]string{}
	for flag, key := range map[string]string{
		"queue-url":  "SQS_QUEUE_URL",
		"region":     "AWS_REGION",
		"log-level":  "LOG_LEVEL",
		"dedup-type": "DEDUP_TYPE",
	} {
		if c.IsSet(flag) {
			overrides[key] = c.String(flag)
		}
	}
	if c.IsSet("health-port") {
		overrides["HEALTH_PORT"] = strconv.Itoa(c.Int("health-port"))
	}
	if c.IsSet("quiet") {
		overrides["LOG_QUIET"] = strconv.FormatBool(c.Bool("quiet"))
	}
	return overrides
}

func startProcessor(c *cli.Context) error {
	cfg, err := LoadConfig(flagOverrides(c))
	if err != nil {
		return err
	}

	setupLogger(cfg.Logging)
	log.Info().Msg("Starting SQS processor")

	ctx := context.Background()

	var dedupStore DeduplicationStore
	switch cfg.Dedup.Type {
	case DedupPostgres:
		db, err := NewDatabase(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}
		dedupStore = NewPostgresDeduplicationStore(db.db)
	case DedupMemory:
		dedupStore = NewInMemoryDeduplicationStore()
	}
	if dedupStore != nil {
		defer dedupStore.Close()
	}

	controller := NewController(cfg, ControllerDeps{
		Handler: LogHandler(cfg.Logging.Quiet),
		Dedup:   dedupStore,
	})

	return controller.Run(ctx)
}

func setupLogger(cfg LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
