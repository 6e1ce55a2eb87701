package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/campus-assistant/internal/application/port"
	"github.com/garyjia/campus-assistant/internal/domain/entity"
)

func newReportFixture(history *mockHistory) (ReportService, *mockReportWriter) {
	users := &mockUserRepo{byID: map[int64]*entity.User{
		2: {ID: 2, OpenID: "ou_bob", FullName: "Bob"},
	}}
	writer := &mockReportWriter{}
	loc := time.FixedZone("UTC+3", 3*60*60)
	return NewReportService(history, users, writer, displayParser{loc: loc}, &mockLogger{}), writer
}

func TestReportService_Monthly(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	onTime := time.Date(2024, 1, 5, 10, 0, 0, 0, loc)
	late := time.Date(2024, 1, 20, 10, 0, 0, 0, loc)
	history := &mockHistory{tasks: []*entity.Task{
		{ID: 1, Title: "Grade essays", EndAt: time.Date(2024, 1, 6, 12, 0, 0, 0, loc), IsCompleted: true, CompletedAt: &onTime, CompleteDesc: "All 30 graded"},
		{ID: 2, Title: "Plan trip", EndAt: time.Date(2024, 1, 15, 12, 0, 0, 0, loc), IsCompleted: true, CompletedAt: &late},
	}}
	svc, _ := newReportFixture(history)

	report, err := svc.Monthly(context.Background(), 2, 2024, time.January)
	require.NoError(t, err)
	assert.Equal(t, 1, report.OnTime())
	assert.Equal(t, 1, report.Late())

	text := svc.RenderText(report)
	assert.Contains(t, text, "Report for Bob, January 2024")
	assert.Contains(t, text, "Completed: 2 (on time 1, late 1)")
	assert.Contains(t, text, "1. Grade essays")
	assert.Contains(t, text, "All 30 graded")
	assert.Contains(t, text, "Done: 20.01.2024 10:00 (late)")
}

func TestReportService_EmptyMonth(t *testing.T) {
	svc, _ := newReportFixture(&mockHistory{})

	report, err := svc.Monthly(context.Background(), 2, 2024, time.March)
	require.NoError(t, err)
	assert.Contains(t, svc.RenderText(report), "No tasks were completed")
}

func TestReportService_Errors(t *testing.T) {
	svc, _ := newReportFixture(&mockHistory{err: errors.New("db down")})
	ctx := context.Background()

	_, err := svc.Monthly(ctx, 99, 2024, time.January)
	assert.ErrorIs(t, err, port.ErrNotFound)

	_, err = svc.Monthly(ctx, 2, 2024, time.Month(13))
	assert.Error(t, err)

	_, err = svc.Monthly(ctx, 2, 2024, time.January)
	assert.Error(t, err)
}

func TestReportService_Export(t *testing.T) {
	svc, writer := newReportFixture(&mockHistory{})
	report := &entity.MonthlyReport{Assignee: &entity.User{ID: 2}, Year: 2024, Month: time.January}

	var buf bytes.Buffer
	require.NoError(t, svc.Export(report, &buf))
	assert.Equal(t, "xlsx", buf.String())
	assert.Same(t, report, writer.written)
}
