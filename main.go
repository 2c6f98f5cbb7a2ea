package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spamguard/server/internal/config"
	"spamguard/server/internal/database"
	"spamguard/server/internal/logging"
	"spamguard/server/internal/metrics"
	"spamguard/server/internal/repository"
	"spamguard/server/internal/routes"
	"spamguard/server/internal/services"
	"spamguard/server/internal/telemetry"
	"spamguard/server/internal/utils"
	ws "spamguard/server/internal/websocket"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
)

// Build information, set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

const serviceName = "spamguard-api"

func main() {
	app := &cli.App{
		Name:    "spamguard",
		Usage:   "contact directory and spam reporting API",
		Version: fmt.Sprintf("%s (commit: %s)", Version, Commit),
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "store",
				Usage:   "Storage backend: postgres or memory",
				EnvVars: []string{"STORE"},
				Value:   "postgres",
			},
			&cli.BoolFlag{
				Name:  "migrate",
				Usage: "Apply database migrations before serving (postgres only)",
				Value: true,
			},
		},
		Action: serve,
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply database migrations and exit",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

			pool, err := database.Connect(c.Context, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := database.Migrate(c.Context, pool); err != nil {
				return err
			}
			logger.Info(c.Context, "migrations applied")
			return nil
		},
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("tracing setup: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn(context.Background(), "tracing shutdown", "error", err)
		}
	}()

	var (
		users    repository.UserRepository
		contacts repository.ContactRepository
	)
	switch store := c.String("store"); store {
	case "memory":
		mem := repository.NewMemoryStore()
		users, contacts = mem.Users(), mem.Contacts()
		logger.Warn(ctx, "using in-memory store, data is lost on exit")
	case "postgres":
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		logger.Info(ctx, "connected to database")

		if c.Bool("migrate") {
			if err := database.Migrate(ctx, pool); err != nil {
				return err
			}
			logger.Info(ctx, "migrations applied")
		}
		users = repository.NewPostgresUserRepository(pool)
		contacts = repository.NewPostgresContactRepository(pool)
	default:
		return fmt.Errorf("unknown store %q", store)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	tokens := utils.NewTokenService(
		cfg.AccessTokenSecret,
		cfg.RefreshTokenSecret,
		cfg.AccessTokenExpiry.Duration(),
		cfg.RefreshTokenExpiry.Duration(),
	)

	hub := ws.NewHub(logger, m)
	go hub.Run(ctx)

	app := routes.NewApp(routes.Dependencies{
		Tokens:       tokens,
		Users:        users,
		Sessions:     services.NewSessionService(users, contacts, tokens, logger, m, cfg.BcryptCost),
		Directory:    services.NewDirectoryService(users, contacts, logger, m, hub),
		Hub:          hub,
		Metrics:      m,
		Logger:       logger,
		CookieSecure: cfg.CookieSecure,
		CORSOrigins:  cfg.Origins(),
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "server starting", "port", cfg.Port, "store", c.String("store"))
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down")
	return app.ShutdownWithTimeout(10 * time.Second)
}
