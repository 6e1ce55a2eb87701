package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/campus-assistant/internal/application/lifecycle"
	"github.com/garyjia/campus-assistant/internal/application/port"
	"github.com/garyjia/campus-assistant/internal/domain/entity"
)

var testNow = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockRecords struct {
	eventsOnDayFunc   func(ctx context.Context, day time.Time) ([]*entity.Event, error)
	eventsInRangeFunc func(ctx context.Context, start, end time.Time) ([]*entity.Event, error)
	activeTasksFunc   func(ctx context.Context, assigneeID int64, page, pageSize int) (lifecycle.Page[*entity.Task], error)
	completedFunc     func(ctx context.Context, assigneeID int64, page, pageSize int) (lifecycle.Page[*entity.Task], error)
	statsFunc         func(ctx context.Context) (*entity.TaskStats, error)
}

func (m *mockRecords) Now() time.Time           { return testNow }
func (m *mockRecords) Location() *time.Location { return time.UTC }

func (m *mockRecords) EventsOnDay(ctx context.Context, day time.Time) ([]*entity.Event, error) {
	if m.eventsOnDayFunc != nil {
		return m.eventsOnDayFunc(ctx, day)
	}
	return nil, nil
}

func (m *mockRecords) EventsInRange(ctx context.Context, start, end time.Time) ([]*entity.Event, error) {
	if m.eventsInRangeFunc != nil {
		return m.eventsInRangeFunc(ctx, start, end)
	}
	return nil, nil
}

func (m *mockRecords) ActiveTasks(ctx context.Context, assigneeID int64, page, pageSize int) (lifecycle.Page[*entity.Task], error) {
	if m.activeTasksFunc != nil {
		return m.activeTasksFunc(ctx, assigneeID, page, pageSize)
	}
	return lifecycle.Page[*entity.Task]{}, nil
}

func (m *mockRecords) CompletedTasks(ctx context.Context, assigneeID int64, page, pageSize int) (lifecycle.Page[*entity.Task], error) {
	if m.completedFunc != nil {
		return m.completedFunc(ctx, assigneeID, page, pageSize)
	}
	return lifecycle.Page[*entity.Task]{}, nil
}

func (m *mockRecords) Stats(ctx context.Context) (*entity.TaskStats, error) {
	if m.statsFunc != nil {
		return m.statsFunc(ctx)
	}
	return &entity.TaskStats{}, nil
}

type mockReports struct {
	monthlyFunc func(ctx context.Context, assigneeID int64, year int, month time.Month) (*entity.MonthlyReport, error)
	exported    *entity.MonthlyReport
}

func (m *mockReports) Monthly(ctx context.Context, assigneeID int64, year int, month time.Month) (*entity.MonthlyReport, error) {
	if m.monthlyFunc != nil {
		return m.monthlyFunc(ctx, assigneeID, year, month)
	}
	return &entity.MonthlyReport{Assignee: &entity.User{ID: assigneeID}, Year: year, Month: month}, nil
}

func (m *mockReports) RenderText(report *entity.MonthlyReport) string { return "" }

func (m *mockReports) Export(report *entity.MonthlyReport, w io.Writer) error {
	m.exported = report
	_, err := w.Write([]byte("xlsx"))
	return err
}

func newTestServer(records *mockRecords, reports *mockReports, opts ...HandlersOption) *Server {
	handlers := NewHandlers(records, reports, nopLogger{}, opts...)
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("campus_assistant_up 1\n"))
	})
	return NewServer(DefaultServerConfig(), handlers, metrics, nopLogger{})
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(&mockRecords{}, &mockReports{}, WithVersion("1.2.3"))

	rec := get(t, s, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "healthy", data["status"])
	assert.Equal(t, "1.2.3", data["version"])
}

func TestHealthCheck_FailingDependency(t *testing.T) {
	s := newTestServer(&mockRecords{}, &mockReports{},
		WithHealthCheck("database", func(ctx context.Context) error { return nil }),
		WithHealthCheck("redis", func(ctx context.Context) error { return errors.New("connection refused") }),
	)

	rec := get(t, s, "/health")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	data := decode(t, rec).Data.(map[string]interface{})
	checks := data["checks"].(map[string]interface{})
	assert.Equal(t, "ok", checks["database"])
	assert.Equal(t, "connection refused", checks["redis"])
}

func TestMetricsRoute(t *testing.T) {
	s := newTestServer(&mockRecords{}, &mockReports{})

	rec := get(t, s, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "campus_assistant_up")
}

func TestEventsOnDay(t *testing.T) {
	var gotDay time.Time
	records := &mockRecords{
		eventsOnDayFunc: func(ctx context.Context, day time.Time) ([]*entity.Event, error) {
			gotDay = day
			return []*entity.Event{{ID: 7, Title: "Seminar"}}, nil
		},
	}
	s := newTestServer(records, &mockReports{})

	rec := get(t, s, "/api/v1/events?day=2024-02-03")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), gotDay)
	data := decode(t, rec).Data.(map[string]interface{})
	assert.Equal(t, "2024-02-03T00:00:00Z", data["from"])
	assert.Equal(t, "2024-02-04T00:00:00Z", data["to"])
	assert.Len(t, data["events"], 1)
}

func TestEventsOnDay_DefaultsToToday(t *testing.T) {
	var gotDay time.Time
	records := &mockRecords{
		eventsOnDayFunc: func(ctx context.Context, day time.Time) ([]*entity.Event, error) {
			gotDay = day
			return nil, nil
		},
	}
	s := newTestServer(records, &mockReports{})

	rec := get(t, s, "/api/v1/events")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testNow, gotDay)
	data := decode(t, rec).Data.(map[string]interface{})
	assert.Equal(t, []interface{}{}, data["events"])
}

func TestEventsOnDay_InvalidDay(t *testing.T) {
	s := newTestServer(&mockRecords{}, &mockReports{})

	rec := get(t, s, "/api/v1/events?day=tomorrow")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, decode(t, rec).Success)
}

func TestEventsInRange_InvertedRange(t *testing.T) {
	records := &mockRecords{
		eventsInRangeFunc: func(ctx context.Context, start, end time.Time) ([]*entity.Event, error) {
			return nil, entity.ErrInvalidTimeRange
		},
	}
	s := newTestServer(records, &mockReports{})

	rec := get(t, s, "/api/v1/events/range?from=2024-01-10&to=2024-01-01")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "to must be after from", decode(t, rec).Error)
}

func TestEventsInRange_MissingBound(t *testing.T) {
	s := newTestServer(&mockRecords{}, &mockReports{})

	rec := get(t, s, "/api/v1/events/range?from=2024-01-10")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserTasks_CompletedPage(t *testing.T) {
	var gotUser int64
	var gotPage, gotSize int
	records := &mockRecords{
		completedFunc: func(ctx context.Context, assigneeID int64, page, pageSize int) (lifecycle.Page[*entity.Task], error) {
			gotUser, gotPage, gotSize = assigneeID, page, pageSize
			return lifecycle.Paginate([]*entity.Task{{ID: 1}}, page, pageSize), nil
		},
	}
	s := newTestServer(records, &mockReports{})

	rec := get(t, s, "/api/v1/users/42/tasks?status=completed&page=2&page_size=500")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), gotUser)
	assert.Equal(t, 2, gotPage)
	assert.Equal(t, maxPageSize, gotSize)
	data := decode(t, rec).Data.(map[string]interface{})
	assert.Equal(t, float64(1), data["total_pages"])
}

func TestUserTasks_DefaultsToActive(t *testing.T) {
	called := false
	records := &mockRecords{
		activeTasksFunc: func(ctx context.Context, assigneeID int64, page, pageSize int) (lifecycle.Page[*entity.Task], error) {
			called = true
			assert.Equal(t, defaultPageSize, pageSize)
			return lifecycle.Paginate[*entity.Task](nil, page, pageSize), nil
		},
	}
	s := newTestServer(records, &mockReports{})

	rec := get(t, s, "/api/v1/users/42/tasks")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestUserTasks_Validation(t *testing.T) {
	s := newTestServer(&mockRecords{}, &mockReports{})

	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/v1/users/abc/tasks").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/v1/users/0/tasks").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/v1/users/1/tasks?status=archived").Code)
}

func TestMonthlyReport(t *testing.T) {
	var gotYear int
	var gotMonth time.Month
	reports := &mockReports{
		monthlyFunc: func(ctx context.Context, assigneeID int64, year int, month time.Month) (*entity.MonthlyReport, error) {
			gotYear, gotMonth = year, month
			return &entity.MonthlyReport{Assignee: &entity.User{ID: assigneeID}, Year: year, Month: month}, nil
		},
	}
	s := newTestServer(&mockRecords{}, reports)

	rec := get(t, s, "/api/v1/users/3/report.xlsx?month=2023-12")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2023, gotYear)
	assert.Equal(t, time.December, gotMonth)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "report-3-2023-12.xlsx")
	assert.Equal(t, "xlsx", rec.Body.String())
	require.NotNil(t, reports.exported)
}

func TestMonthlyReport_UnknownUser(t *testing.T) {
	reports := &mockReports{
		monthlyFunc: func(ctx context.Context, assigneeID int64, year int, month time.Month) (*entity.MonthlyReport, error) {
			return nil, port.ErrNotFound
		},
	}
	s := newTestServer(&mockRecords{}, reports)

	rec := get(t, s, "/api/v1/users/3/report.xlsx")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Nil(t, reports.exported)
}

func TestMonthlyReport_InvalidMonth(t *testing.T) {
	s := newTestServer(&mockRecords{}, &mockReports{})

	rec := get(t, s, "/api/v1/users/3/report.xlsx?month=2023-13")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTaskStats(t *testing.T) {
	records := &mockRecords{
		statsFunc: func(ctx context.Context) (*entity.TaskStats, error) {
			return &entity.TaskStats{Total: 10, Completed: 4, MonthTotal: 3, MonthCompleted: 1}, nil
		},
	}
	s := newTestServer(records, &mockReports{})

	rec := get(t, s, "/api/v1/tasks/stats")

	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec).Data.(map[string]interface{})
	assert.Equal(t, float64(10), data["total"])
	assert.Equal(t, float64(1), data["month_completed"])
}

func TestTaskStats_Failure(t *testing.T) {
	records := &mockRecords{
		statsFunc: func(ctx context.Context) (*entity.TaskStats, error) {
			return nil, errors.New("database is locked")
		},
	}
	s := newTestServer(records, &mockReports{})

	rec := get(t, s, "/api/v1/tasks/stats")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", decode(t, rec).Error)
}

func TestServerAddress(t *testing.T) {
	s := newTestServer(&mockRecords{}, &mockReports{})
	assert.Equal(t, "0.0.0.0:8080", s.Address())
	assert.NoError(t, s.Stop())
}
