package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/starford/ansuz/internal"
	pkgconfig "github.com/starford/ansuz/pkg/config"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "ansuz",
		Usage: "Document index and retrieval agent over a Markdown vault",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		// Plain `ansuz` serves, matching the common case.
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API server with vault watching",
				Action: serve,
			},
			{
				Name:      "ask",
				Usage:     "Ask the agent one question and print the answer",
				ArgsUsage: "\"question\"",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					question := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
					if question == "" {
						return fmt.Errorf("usage: ansuz ask \"question\"")
					}
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					return internal.RunAsk(ctx, cfg, question)
				},
			},
			{
				Name:  "reindex",
				Usage: "Rebuild the index from the vault and exit",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					return internal.RunReindex(ctx, cfg)
				},
			},
			{
				Name:  "mcp",
				Usage: "Serve the search tools over MCP stdio",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					return internal.RunMCP(ctx, cfg)
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
