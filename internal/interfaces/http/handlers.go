package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/araddon/dateparse"
	"github.com/gin-gonic/gin"

	"github.com/garyjia/campus-assistant/internal/application/lifecycle"
	"github.com/garyjia/campus-assistant/internal/application/port"
	"github.com/garyjia/campus-assistant/internal/application/service"
	"github.com/garyjia/campus-assistant/internal/domain/entity"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Records is the read side of the event and task lifecycle service
type Records interface {
	Now() time.Time
	Location() *time.Location
	EventsOnDay(ctx context.Context, day time.Time) ([]*entity.Event, error)
	EventsInRange(ctx context.Context, start, end time.Time) ([]*entity.Event, error)
	ActiveTasks(ctx context.Context, assigneeID int64, page, pageSize int) (lifecycle.Page[*entity.Task], error)
	CompletedTasks(ctx context.Context, assigneeID int64, page, pageSize int) (lifecycle.Page[*entity.Task], error)
	Stats(ctx context.Context) (*entity.TaskStats, error)
}

// HealthCheck checks one dependency
type HealthCheck func(ctx context.Context) error

// Handlers contains all HTTP request handlers
type Handlers struct {
	records Records
	reports service.ReportService
	checks  map[string]HealthCheck
	version string
	logger  Logger
}

// HandlersOption configures Handlers
type HandlersOption func(*Handlers)

// WithHealthCheck adds a named dependency check to /health
func WithHealthCheck(name string, check HealthCheck) HandlersOption {
	return func(h *Handlers) { h.checks[name] = check }
}

// WithVersion sets the version reported by /health
func WithVersion(version string) HandlersOption {
	return func(h *Handlers) { h.version = version }
}

// NewHandlers creates a new Handlers instance
func NewHandlers(records Records, reports service.ReportService, logger Logger, opts ...HandlersOption) *Handlers {
	h := &Handlers{
		records: records,
		reports: reports,
		checks:  make(map[string]HealthCheck),
		version: "dev",
		logger:  logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Version   string            `json:"version"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// EventListResponse wraps the events of a window
type EventListResponse struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Events []*entity.Event `json:"events"`
}

// TaskListRequest holds the query of GET /api/v1/users/:id/tasks
type TaskListRequest struct {
	Status   string `form:"status" binding:"omitempty,oneof=active completed"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.version,
	}

	status := http.StatusOK
	if len(h.checks) > 0 {
		response.Checks = make(map[string]string, len(h.checks))
		for name, check := range h.checks {
			if err := check(c.Request.Context()); err != nil {
				h.logger.Error("Health check failed", "check", name, "error", err)
				response.Checks[name] = err.Error()
				response.Status = "unhealthy"
				status = http.StatusServiceUnavailable
				continue
			}
			response.Checks[name] = "ok"
		}
	}

	c.JSON(status, Response{
		Success: status == http.StatusOK,
		Data:    response,
	})
}

// EventsOnDay handles GET /api/v1/events?day=YYYY-MM-DD. Today is the default.
func (h *Handlers) EventsOnDay(c *gin.Context) {
	day := h.records.Now()
	if raw := c.Query("day"); raw != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, raw, h.records.Location())
		if err != nil {
			h.badRequest(c, "day must be YYYY-MM-DD", err)
			return
		}
		day = parsed
	}

	events, err := h.records.EventsOnDay(c.Request.Context(), day)
	if err != nil {
		h.internalError(c, "Failed to list events", err)
		return
	}

	start, end := lifecycle.DayBounds(day.In(h.records.Location()))
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    eventList(start, end, events),
	})
}

// EventsInRange handles GET /api/v1/events/range?from=...&to=...
func (h *Handlers) EventsInRange(c *gin.Context) {
	loc := h.records.Location()

	from, err := dateparse.ParseIn(c.Query("from"), loc)
	if err != nil {
		h.badRequest(c, "invalid from", err)
		return
	}
	to, err := dateparse.ParseIn(c.Query("to"), loc)
	if err != nil {
		h.badRequest(c, "invalid to", err)
		return
	}

	events, err := h.records.EventsInRange(c.Request.Context(), from, to)
	if err != nil {
		if errors.Is(err, entity.ErrInvalidTimeRange) {
			h.badRequest(c, "to must be after from", err)
			return
		}
		h.internalError(c, "Failed to list events", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    eventList(from, to, events),
	})
}

// UserTasks handles GET /api/v1/users/:id/tasks
func (h *Handlers) UserTasks(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req TaskListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.badRequest(c, "invalid query parameters", err)
		return
	}
	if req.PageSize == 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	list := h.records.ActiveTasks
	if req.Status == "completed" {
		list = h.records.CompletedTasks
	}

	page, err := list(c.Request.Context(), userID, req.Page, req.PageSize)
	if err != nil {
		h.internalError(c, "Failed to list tasks", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    page,
	})
}

// MonthlyReport handles GET /api/v1/users/:id/report.xlsx?month=YYYY-MM.
// The current month is the default.
func (h *Handlers) MonthlyReport(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	month := h.records.Now()
	if raw := c.Query("month"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01", raw, h.records.Location())
		if err != nil {
			h.badRequest(c, "month must be YYYY-MM", err)
			return
		}
		month = parsed
	}

	report, err := h.reports.Monthly(c.Request.Context(), userID, month.Year(), month.Month())
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			c.JSON(http.StatusNotFound, Response{
				Success: false,
				Error:   "user not found",
			})
			return
		}
		h.internalError(c, "Failed to build report", err)
		return
	}

	filename := fmt.Sprintf("report-%d-%04d-%02d.xlsx", userID, report.Year, int(report.Month))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", xlsxContentType)
	c.Status(http.StatusOK)

	if err := h.reports.Export(report, c.Writer); err != nil {
		h.logger.Error("Failed to write report", "user_id", userID, "error", err)
		_ = c.Error(err)
	}
}

// TaskStats handles GET /api/v1/tasks/stats
func (h *Handlers) TaskStats(c *gin.Context) {
	stats, err := h.records.Stats(c.Request.Context())
	if err != nil {
		h.internalError(c, "Failed to compute task stats", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    stats,
	})
}

func (h *Handlers) userID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.logger.Error("Invalid user ID", "id", c.Param("id"), "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid user ID",
		})
		return 0, false
	}
	return id, true
}

func (h *Handlers) badRequest(c *gin.Context, msg string, err error) {
	h.logger.Error("Bad request", "path", c.Request.URL.Path, "reason", msg, "error", err)
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   msg,
	})
}

func (h *Handlers) internalError(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, "error", err)
	c.JSON(http.StatusInternalServerError, Response{
		Success: false,
		Error:   "internal error",
	})
}

func eventList(from, to time.Time, events []*entity.Event) EventListResponse {
	if events == nil {
		events = []*entity.Event{}
	}
	return EventListResponse{
		From:   from.Format(time.RFC3339),
		To:     to.Format(time.RFC3339),
		Events: events,
	}
}
