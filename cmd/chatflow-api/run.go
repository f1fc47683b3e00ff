package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/chatflow/pkg/cmd"
	"github.com/dukex/chatflow/pkg/editor"
	"github.com/dukex/chatflow/pkg/log"
	"github.com/dukex/chatflow/pkg/otelhelper"
	"github.com/dukex/chatflow/pkg/services"
	"github.com/urfave/cli/v3"
)

func RunAPICommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Start api",
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
				Usage:    "Flow storage URL (file://dir or postgres://...)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringSliceFlag{
				Name:    "kafka-brokers",
				Usage:   "Kafka brokers for the kafka event bus",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "whatsapp-token",
				Usage:   "WhatsApp Business API access token",
				Sources: cli.EnvVars("WHATSAPP_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "whatsapp-business-account-id",
				Usage:   "WhatsApp Business Account id owning the message templates",
				Sources: cli.EnvVars("WHATSAPP_BUSINESS_ACCOUNT_ID"),
			},
			&cli.StringFlag{
				Name:    "whatsapp-api-url",
				Usage:   "Graph API base URL",
				Sources: cli.EnvVars("WHATSAPP_API_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL used to cache message templates",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.DurationFlag{
				Name:    "template-cache-ttl",
				Usage:   "How long cached message templates stay valid",
				Value:   5 * time.Minute,
				Sources: cli.EnvVars("TEMPLATE_CACHE_TTL"),
			},
			&cli.BoolFlag{
				Name:    "otel-enabled",
				Usage:   "Export traces over OTLP HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
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

			logger := log.WithModule("api")

			logger.InfoContext(ctx, "Initializing chatflow API")

			tracer := otelhelper.NoopTracer()

			if command.Bool("otel-enabled") {
				var (
					shutdown func(context.Context) error
					err      error
				)

				tracer, shutdown, err = otelhelper.NewTracer(ctx, "chatflow-api")
				if err != nil {
					return err
				}

				defer func() {
					if err := shutdown(ctx); err != nil {
						logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
					}
				}()
			}

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), command.StringSlice("kafka-brokers"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			if err := services.NewFlowAuditLog(logger).Register(eventBus); err != nil {
				return err
			}

			if err := eventBus.Subscribe(ctx); err != nil {
				return fmt.Errorf("failed to subscribe to flow events: %w", err)
			}

			templates, err := cmd.NewTemplateSource(cmd.TemplateConfig{
				AccessToken:       command.String("whatsapp-token"),
				BusinessAccountID: command.String("whatsapp-business-account-id"),
				APIURL:            command.String("whatsapp-api-url"),
				RedisURL:          command.String("redis-url"),
				CacheTTL:          command.Duration("template-cache-ttl"),
			}, logger)
			if err != nil {
				return err
			}

			api := NewAPI(logger, persistence, eventBus, templates, editor.WithTracer(tracer))

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)

				return err
			}

			return nil
		},
	}
}
