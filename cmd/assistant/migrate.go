package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/campus-assistant/pkg/database"
)

func migrateCmd(opts *globalOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(false)
			if err != nil {
				return err
			}

			logger, err := opts.newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			db, err := database.New(database.Config{
				Path:            cfg.Database.Path,
				MaxOpenConns:    cfg.Database.MaxOpenConns,
				MaxIdleConns:    cfg.Database.MaxIdleConns,
				ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			}, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			migrator := database.NewMigrator(db, logger)
			pending, err := migrator.Pending(database.EmbeddedMigrations())
			if err != nil {
				return fmt.Errorf("failed to list migrations: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(pending) == 0 {
				fmt.Fprintln(out, "Database is up to date.")
				return nil
			}
			for _, m := range pending {
				fmt.Fprintf(out, "pending %03d_%s\n", m.Version, m.Name)
			}
			if dryRun {
				return nil
			}

			if err := migrator.RunMigrations(database.EmbeddedMigrations()); err != nil {
				return err
			}
			fmt.Fprintf(out, "Applied %d migration(s).\n", len(pending))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List pending migrations without applying them")
	return cmd
}
