package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/campus-assistant/internal/container"
)

func serveCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot and the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(true)
			if err != nil {
				return err
			}

			logger, err := opts.newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			logger.Info("Starting campus assistant",
				zap.String("version", GetVersion()),
				zap.String("session_backend", cfg.Session.Backend),
				zap.Bool("http_enabled", cfg.Server.Enabled),
				zap.Int("port", cfg.Server.Port))

			c, err := container.NewContainer(cfg.ToContainerConfig(GetVersion()), logger)
			if err != nil {
				return fmt.Errorf("failed to create container: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := c.Start(ctx); err != nil {
				return fmt.Errorf("failed to start: %w", err)
			}

			runErr := c.Run(ctx)
			if runErr != nil {
				logger.Error("Assistant stopped with error", zap.Error(runErr))
			} else {
				logger.Info("Shutdown signal received")
			}

			if err := c.Close(); err != nil {
				logger.Error("Shutdown finished with errors", zap.Error(err))
				if runErr == nil {
					runErr = err
				}
			}
			return runErr
		},
	}
}
