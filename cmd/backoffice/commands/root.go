package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/backoffice-client/internal/app"
	"github.com/florianilch/backoffice-client/internal/authclient"
	"github.com/florianilch/backoffice-client/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	return newRootCommand().Run(ctx, args)
}

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "backoffice",
		Usage: "Authenticated client and local gateway for the back-office API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "upstream--base-url",
				Usage: "back-office API base URL (falls back to NEXT_PUBLIC_BASEURL)",
			},
			&cli.StringFlag{
				Name:  "auth--storage",
				Usage: "access token storage (memory|file|env|keyring|redis)",
				Value: string(app.DefaultConfigAuthStorage),
			},
			&cli.StringFlag{
				Name:  "auth--file",
				Usage: "access token file for file storage",
			},
			&cli.StringFlag{
				Name:  "auth--env-key",
				Usage: "environment variable holding the access token for env storage",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			loginCommand(),
			logoutCommand(),
			statusCommand(),
			requestCommand(),
			productsCommand(),
			ordersCommand(),
			inventoryCommand(),
			contactCommand(),
			seoPagesCommand(),
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the local gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "telemetry--exporter",
				Usage: "log exporter (none|stdout|otlp-http|otlp-grpc)",
				Value: string(app.DefaultConfigLogExporter),
			},
			&cli.StringFlag{
				Name:  "server--host",
				Usage: "server host",
				Value: app.DefaultConfigServerHost,
			},
			&cli.IntFlag{
				Name:  "server--port",
				Usage: "server port",
				Value: int(app.DefaultConfigServerPort),
			},
		},
		Action: serveAction,
	}
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Set up observability before creating app
	shutdown, err := instrument(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to set up observability layer: %w", err)
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			fmt.Fprintln(os.Stderr, "observability shutdown:", err)
		}
	}()

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	slog.InfoContext(ctx, "starting")

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("app failed to start: %w", err)
	}

	slog.InfoContext(ctx, "stopped gracefully")
	return nil
}

func instrument(ctx context.Context, cfg *app.Config) (observability.ShutdownFunc, error) {
	return observability.Instrument(ctx, observability.Options{
		Level:    cfg.LogLevel,
		Format:   string(cfg.LogFormat),
		Exporter: string(cfg.Telemetry.Exporter),
	})
}

// withClient loads config, sets up logging and runs fn with a client whose
// session end is reported on stderr.
func withClient(ctx context.Context, cmd *cli.Command, fn func(*authclient.Client) error) error {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	shutdown, err := instrument(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to set up observability layer: %w", err)
	}
	defer func() { _ = shutdown(context.WithoutCancel(ctx)) }()

	errWriter := cmd.Root().ErrWriter
	navigator := authclient.NavigatorFunc(func(context.Context, string) {
		fmt.Fprintln(errWriter, "session ended, run `backoffice login` to sign in again")
	})

	client, closeStore, err := app.NewClient(cfg, navigator)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	return fn(client)
}
