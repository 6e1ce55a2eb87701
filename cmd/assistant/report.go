package main

import (
	"bytes"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/garyjia/campus-assistant/internal/application/lifecycle"
	"github.com/garyjia/campus-assistant/internal/application/service"
	"github.com/garyjia/campus-assistant/internal/infrastructure/datetime"
	"github.com/garyjia/campus-assistant/internal/infrastructure/report"
	"github.com/garyjia/campus-assistant/internal/infrastructure/storage"
	"github.com/garyjia/campus-assistant/pkg/utils"
)

func reportCmd(opts *globalOptions) *cobra.Command {
	var (
		userID int64
		month  string
		outDir string
		text   bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export a user's monthly completion report",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID <= 0 {
				return fmt.Errorf("--user is required")
			}

			s, _, err := opts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			year, mon, err := parseMonth(month, s.loc)
			if err != nil {
				return err
			}

			records := lifecycle.NewService(s.repos.Events, s.repos.Tasks, s.logger, lifecycle.WithLocation(s.loc))
			reports := service.NewReportService(records, s.repos.Users,
				report.NewExcelWriter(s.loc, s.logger), datetime.NewParser(s.loc), utils.NewSugarAdapter(s.logger))

			monthly, err := reports.Monthly(cmd.Context(), userID, year, mon)
			if err != nil {
				return fmt.Errorf("failed to build report: %w", err)
			}

			out := cmd.OutOrStdout()
			if text {
				fmt.Fprintln(out, reports.RenderText(monthly))
				return nil
			}

			archive := storage.NewReportArchive(outDir, s.logger)
			path, err := archive.Save(cmd.Context(), monthly, func(w *bytes.Buffer) error {
				return reports.Export(monthly, w)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Wrote %s (%d completed tasks)\n", path, len(monthly.Tasks))
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "User id")
	cmd.Flags().StringVar(&month, "month", "", "Month as YYYY-MM (default: current month)")
	cmd.Flags().StringVar(&outDir, "out", "reports", "Archive directory")
	cmd.Flags().BoolVar(&text, "text", false, "Print the report instead of writing a spreadsheet")
	return cmd
}

// parseMonth accepts YYYY-MM and defaults to the current month
func parseMonth(raw string, loc *time.Location) (int, time.Month, error) {
	if raw == "" {
		now := time.Now().In(loc)
		return now.Year(), now.Month(), nil
	}
	t, err := time.ParseInLocation("2006-01", raw, loc)
	if err != nil {
		return 0, 0, fmt.Errorf("month must be YYYY-MM: %w", err)
	}
	return t.Year(), t.Month(), nil
}
