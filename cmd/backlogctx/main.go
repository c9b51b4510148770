package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/dshills/backlogctx-mcp/internal/config"
	"github.com/dshills/backlogctx-mcp/internal/index"
	"github.com/dshills/backlogctx-mcp/internal/mcp"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	cmd := &cli.Command{
		Name:  "backlogctx",
		Usage: "Context-hydration MCP server for structured backlogs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   "backlogctx.yaml",
				Sources: cli.EnvVars("BACKLOGCTX_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the MCP server on stdio",
				Action: serve,
			},
			{
				Name:   "version",
				Usage:  "Print build information",
				Action: printVersion,
			},
		},
		DefaultCommand: "serve",
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg := config.Default()
	if err := config.Load(cmd.String("config"), cfg); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Logging goes to stderr; stdout carries the MCP protocol.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	logger.Info("backlogctx starting",
		slog.String("version", version),
		slog.String("sqlite_driver", index.DriverName),
		slog.String("build_mode", index.BuildMode))

	server, err := mcp.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("MCP server ready, listening on stdio")
		errCh <- server.Serve(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		return nil
	case err := <-errCh:
		return err
	}
}

func printVersion(_ context.Context, _ *cli.Command) error {
	fmt.Printf("backlogctx MCP server\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Build Mode: %s\n", index.BuildMode)
	fmt.Printf("SQLite Driver: %s\n", index.DriverName)
	return nil
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
