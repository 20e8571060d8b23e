package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/cmd"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/log"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/metrics"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/otelhelper"
)

const defaultPort = 9080

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "routing-api",
		Usage:                 "Author and version IVR call flows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL (postgres://... or a file path)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel; empty disables events)",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "segment-types",
				Usage:   "Path to the segment type definitions YAML file",
				Sources: cli.EnvVars("SEGMENT_TYPES_PATH"),
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "Address for the Prometheus metrics listener (empty disables it)",
				Sources: cli.EnvVars("METRICS_ADDR"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing routing flow API")

			if _, err := otelhelper.NewTracer(ctx, "routing-api"); err != nil {
				logger.WarnContext(ctx, "Tracing disabled", "error", err)
			}

			registry, stopWatch := cmd.NewRegistry(logger, command.String("segment-types"))
			defer stopWatch()

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "routing-api", logger)
			if eventBus != nil {
				defer func() {
					if err := eventBus.Close(); err != nil {
						logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
					}
				}()
			}

			if addr := command.String("metrics-addr"); addr != "" {
				go func() {
					if err := metrics.Serve(addr); err != nil {
						logger.ErrorContext(ctx, "Metrics listener stopped", "error", err)
					}
				}()
			}

			api := NewAPI(
				logger,
				persistence,
				registry,
				eventBus,
			)

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
