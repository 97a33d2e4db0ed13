// Command wrapify runs the Wrapify HTTP server.
//
//	wrapify                 # same as "wrapify serve"
//	wrapify serve --config wrapify.toml
//	wrapify migrate         # apply database migrations and exit
//	wrapify version
//
// CONFIGURATION:
// Configuration comes from defaults, an optional --config file (TOML or
// YAML) and the environment. A .env file in the working directory is loaded
// into the environment first.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wrapify/wrapify/internal/config"
	"github.com/wrapify/wrapify/internal/logging"
	"github.com/wrapify/wrapify/internal/server"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "wrapify",
		Short:         "Spotify listening stats and personality wraps",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("WRAPIFY_CONFIG"), "path to a .toml or .yaml config file (env WRAPIFY_CONFIG)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), configPath)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "wrapify", version)
		},
	}

	root.AddCommand(serve, migrate, versionCmd)
	root.RunE = serve.RunE
	return root
}

// setup loads .env and the configuration and builds the logger. Errors are
// reported on stderr because no logger exists yet.
func setup(configPath string) (*config.Config, *slog.Logger, error) {
	envErr := godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	logger, err := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}
	slog.SetDefault(logger)

	if envErr != nil && !os.IsNotExist(envErr) {
		logger.Warn("reading .env failed", slog.String("error", envErr.Error()))
	}
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}
	return cfg, logger, nil
}

func runServe(ctx context.Context, configPath string) error {
	cfg, logger, err := setup(configPath)
	if err != nil {
		return err
	}

	openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	srv, err := server.New(openCtx, cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		return err
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		return err
	}
	return nil
}

func runMigrate(ctx context.Context, configPath string) error {
	cfg, logger, err := setup(configPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	applied, err := server.Migrate(ctx, cfg)
	if err != nil {
		logger.Error("migration failed", slog.String("error", err.Error()))
		return err
	}
	logger.Info("database schema is up to date",
		slog.Bool("postgres", cfg.IsPostgres()),
		slog.Int("appliedNow", applied),
	)
	return nil
}
