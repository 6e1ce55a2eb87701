// Command assistant runs the campus chat assistant and its maintenance tasks.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/campus-assistant/internal/config"
	"github.com/garyjia/campus-assistant/pkg/utils"
)

const appName = "assistant"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalOptions are the flags shared by every subcommand
type globalOptions struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Campus chat assistant for events, tasks and announcements",
		Version:       GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `The assistant is a Lark bot that walks users through creating events,
tasks and announcements, lists the schedule and broadcasts announcements
to every registered user.`,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the configured log level")

	cmd.AddCommand(
		serveCmd(opts),
		migrateCmd(opts),
		usersCmd(opts),
		reportCmd(opts),
		versionCmd(),
	)
	return cmd
}

// loadConfig reads the configuration; validate is false for maintenance
// commands that never talk to Lark.
func (o *globalOptions) loadConfig(validate bool) (*config.Config, error) {
	if validate {
		return config.Load(o.configPath)
	}
	return config.Read(o.configPath)
}

func (o *globalOptions) newLogger(cfg *config.Config) (*zap.Logger, error) {
	level := cfg.Logger.Level
	if o.logLevel != "" {
		level = o.logLevel
	}
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
