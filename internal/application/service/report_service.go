package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/garyjia/campus-assistant/internal/application/port"
	"github.com/garyjia/campus-assistant/internal/domain/entity"
)

// TaskHistory returns the tasks an assignee completed in a month
type TaskHistory interface {
	MonthlyReport(ctx context.Context, assigneeID int64, year int, month time.Month) ([]*entity.Task, error)
}

// ReportService builds monthly completion reports
type ReportService interface {
	// Monthly collects the report for one assignee
	Monthly(ctx context.Context, assigneeID int64, year int, month time.Month) (*entity.MonthlyReport, error)

	// RenderText formats the report for a chat message
	RenderText(report *entity.MonthlyReport) string

	// Export writes the report as a spreadsheet
	Export(report *entity.MonthlyReport, w io.Writer) error
}

type reportServiceImpl struct {
	history TaskHistory
	users   port.UserRepository
	writer  port.ReportWriter
	parser  port.DateParser
	logger  Logger
}

// NewReportService creates a new ReportService
func NewReportService(history TaskHistory, users port.UserRepository, writer port.ReportWriter, parser port.DateParser, logger Logger) ReportService {
	return &reportServiceImpl{
		history: history,
		users:   users,
		writer:  writer,
		parser:  parser,
		logger:  logger,
	}
}

// Monthly implements ReportService
func (s *reportServiceImpl) Monthly(ctx context.Context, assigneeID int64, year int, month time.Month) (*entity.MonthlyReport, error) {
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("invalid month: %d", month)
	}

	user, err := s.users.GetByID(ctx, assigneeID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, port.ErrNotFound
	}

	tasks, err := s.history.MonthlyReport(ctx, assigneeID, year, month)
	if err != nil {
		s.logger.Error("Failed to load monthly report", "error", err, "user_id", assigneeID)
		return nil, err
	}

	return &entity.MonthlyReport{
		Assignee: user,
		Year:     year,
		Month:    month,
		Tasks:    tasks,
	}, nil
}

// RenderText implements ReportService
func (s *reportServiceImpl) RenderText(r *entity.MonthlyReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Report for %s, %s %d\n", r.Assignee.DisplayName(), r.Month, r.Year)
	if len(r.Tasks) == 0 {
		b.WriteString("No tasks were completed this month.")
		return b.String()
	}

	fmt.Fprintf(&b, "Completed: %d (on time %d, late %d)\n", len(r.Tasks), r.OnTime(), r.Late())
	for i, t := range r.Tasks {
		fmt.Fprintf(&b, "\n%d. %s\n   Deadline: %s", i+1, t.Title, s.format(t.EndAt))
		if t.CompletedAt != nil {
			fmt.Fprintf(&b, "\n   Done: %s", s.format(*t.CompletedAt))
			if t.CompletedLate() {
				b.WriteString(" (late)")
			}
		}
		if t.CompleteDesc != "" {
			fmt.Fprintf(&b, "\n   %s", t.CompleteDesc)
		}
	}
	return b.String()
}

// Export implements ReportService
func (s *reportServiceImpl) Export(r *entity.MonthlyReport, w io.Writer) error {
	if err := s.writer.WriteMonthly(w, r); err != nil {
		s.logger.Error("Failed to export report", "error", err, "user_id", r.Assignee.ID)
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func (s *reportServiceImpl) format(t time.Time) string {
	return s.parser.Format(t, port.DisplayLayout)
}
