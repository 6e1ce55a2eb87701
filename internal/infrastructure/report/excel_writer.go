// Package report renders monthly task reports as xlsx workbooks.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/campus-assistant/internal/application/port"
	"github.com/garyjia/campus-assistant/internal/domain/entity"
)

const (
	sheetName  = "Report"
	dateLayout = "02.01.2006 15:04"
)

var columns = []struct {
	header string
	width  float64
}{
	{"#", 5},
	{"Task", 40},
	{"Description", 50},
	{"Deadline", 18},
	{"Completed", 18},
	{"Status", 10},
	{"Completion note", 50},
}

// ExcelWriter implements port.ReportWriter with excelize
type ExcelWriter struct {
	loc    *time.Location
	logger *zap.Logger
}

// NewExcelWriter creates a writer that formats timestamps in loc
func NewExcelWriter(loc *time.Location, logger *zap.Logger) *ExcelWriter {
	if loc == nil {
		loc = time.Local
	}
	return &ExcelWriter{loc: loc, logger: logger}
}

// WriteMonthly writes the report workbook to w
func (ew *ExcelWriter) WriteMonthly(w io.Writer, report *entity.MonthlyReport) error {
	if report == nil || report.Assignee == nil {
		return fmt.Errorf("report has no assignee")
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			ew.logger.Warn("Failed to close workbook", zap.Error(err))
		}
	}()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	title := fmt.Sprintf("%s, %s %d", report.Assignee.DisplayName(), report.Month, report.Year)
	ew.setCell(f, "A1", title)
	ew.setCell(f, "A2", fmt.Sprintf("Completed: %d, on time: %d, late: %d", len(report.Tasks), report.OnTime(), report.Late()))

	const headerRow = 4
	for i, col := range columns {
		name, _ := excelize.ColumnNumberToName(i + 1)
		ew.setCell(f, fmt.Sprintf("%s%d", name, headerRow), col.header)
		if err := f.SetColWidth(sheetName, name, name, col.width); err != nil {
			ew.logger.Warn("Failed to set column width", zap.String("column", name), zap.Error(err))
		}
	}
	if err := f.SetCellStyle(sheetName, "A4", "G4", headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, t := range report.Tasks {
		row := headerRow + 1 + i
		cell, _ := excelize.CoordinatesToCellName(1, row)
		values := []interface{}{
			i + 1,
			t.Title,
			t.Description,
			t.EndAt.In(ew.loc).Format(dateLayout),
			ew.completedAt(t),
			status(t),
			t.CompleteDesc,
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", row, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	ew.logger.Info("Monthly report written",
		zap.Int64("assignee_id", report.Assignee.ID),
		zap.Int("year", report.Year),
		zap.Int("month", int(report.Month)),
		zap.Int("tasks", len(report.Tasks)))
	return nil
}

func (ew *ExcelWriter) completedAt(t *entity.Task) string {
	if t.CompletedAt == nil {
		return ""
	}
	return t.CompletedAt.In(ew.loc).Format(dateLayout)
}

func status(t *entity.Task) string {
	if t.CompletedLate() {
		return "late"
	}
	return "on time"
}

func (ew *ExcelWriter) setCell(f *excelize.File, cell string, value interface{}) {
	if err := f.SetCellValue(sheetName, cell, value); err != nil {
		ew.logger.Warn("Failed to set cell value", zap.String("cell", cell), zap.Error(err))
	}
}

var _ port.ReportWriter = (*ExcelWriter)(nil)
