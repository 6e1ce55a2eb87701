package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/campus-assistant/internal/application/dispatcher"
	"github.com/garyjia/campus-assistant/internal/application/port"
	"github.com/garyjia/campus-assistant/internal/domain/entity"
	"github.com/garyjia/campus-assistant/internal/domain/event"
)

// ErrEmptyCompletion is returned when a completion description is blank
var ErrEmptyCompletion = errors.New("completion description must not be empty")

// Service exposes the queries and mutations performed on stored events and tasks
// outside of the creation workflows.
type Service struct {
	events     port.EventRepository
	tasks      port.TaskRepository
	dispatcher dispatcher.Dispatcher
	clock      func() time.Time
	loc        *time.Location
	logger     *zap.Logger
}

// Option configures the Service
type Option func(*Service)

// WithClock overrides the time source
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithLocation sets the timezone used for day, week and month boundaries
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// WithDispatcher publishes domain events for deletions and completions
func WithDispatcher(d dispatcher.Dispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

// NewService creates a lifecycle service
func NewService(events port.EventRepository, tasks port.TaskRepository, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		events: events,
		tasks:  tasks,
		clock:  time.Now,
		loc:    time.Local,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the current time in the service location
func (s *Service) Now() time.Time {
	return s.clock().In(s.loc)
}

// Location returns the service timezone
func (s *Service) Location() *time.Location {
	return s.loc
}

// EventsOnDay returns live events overlapping the given calendar day
func (s *Service) EventsOnDay(ctx context.Context, day time.Time) ([]*entity.Event, error) {
	start, end := DayBounds(day.In(s.loc))
	return s.EventsInRange(ctx, start, end)
}

// EventsInWeek returns live events overlapping the Monday-based week containing day
func (s *Service) EventsInWeek(ctx context.Context, day time.Time) ([]*entity.Event, error) {
	start, end := WeekBounds(day.In(s.loc))
	return s.EventsInRange(ctx, start, end)
}

// EventsInRange returns live events overlapping [start, end)
func (s *Service) EventsInRange(ctx context.Context, start, end time.Time) ([]*entity.Event, error) {
	if !end.After(start) {
		return nil, entity.ErrInvalidTimeRange
	}

	events, err := s.events.ListInRange(ctx, start, end)
	if err != nil {
		s.logger.Error("Failed to list events", zap.Time("start", start), zap.Time("end", end), zap.Error(err))
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// GetEvent returns a live event or nil
func (s *Service) GetEvent(ctx context.Context, id int64) (*entity.Event, error) {
	return s.events.GetByID(ctx, id)
}

// GetTask returns a live task or nil
func (s *Service) GetTask(ctx context.Context, id int64) (*entity.Task, error) {
	return s.tasks.GetByID(ctx, id)
}

// DeleteEvent soft deletes an event. A second call returns port.ErrNotFound.
func (s *Service) DeleteEvent(ctx context.Context, id, actorID int64) (*entity.Event, error) {
	ev, err := s.events.SoftDelete(ctx, id, actorID, s.Now())
	if err != nil {
		return nil, fmt.Errorf("delete event %d: %w", id, err)
	}

	s.logger.Info("Event deleted", zap.Int64("event_id", id), zap.Int64("actor_id", actorID))
	s.publish(ctx, event.NewEvent(event.TypeEventDeleted, id, map[string]interface{}{
		event.KeyTitle:     ev.Title,
		event.KeyCreatorID: actorID,
	}))
	return ev, nil
}

// DeleteTask soft deletes a task. A second call returns port.ErrNotFound.
func (s *Service) DeleteTask(ctx context.Context, id, actorID int64) (*entity.Task, error) {
	task, err := s.tasks.SoftDelete(ctx, id, actorID, s.Now())
	if err != nil {
		return nil, fmt.Errorf("delete task %d: %w", id, err)
	}

	s.logger.Info("Task deleted", zap.Int64("task_id", id), zap.Int64("actor_id", actorID))
	s.publish(ctx, event.NewEvent(event.TypeTaskDeleted, id, map[string]interface{}{
		event.KeyTitle:     task.Title,
		event.KeyCreatorID: actorID,
	}))
	return task, nil
}

// CompleteTask is the first completion phase: it marks the task completed now.
// The description is attached separately through DescribeCompletion.
func (s *Service) CompleteTask(ctx context.Context, id int64) (*entity.Task, error) {
	task, err := s.tasks.SetCompleted(ctx, id, s.Now())
	if err != nil {
		return nil, fmt.Errorf("complete task %d: %w", id, err)
	}

	s.logger.Info("Task completed", zap.Int64("task_id", id))
	s.publish(ctx, event.NewEvent(event.TypeTaskCompleted, id, map[string]interface{}{
		event.KeyTitle:      task.Title,
		event.KeyCreatorID:  task.CreatedBy,
		event.KeyAssigneeID: task.CreatedFor,
	}))
	return task, nil
}

// DescribeCompletion is the second completion phase. If it fails the task
// stays completed without a description.
func (s *Service) DescribeCompletion(ctx context.Context, id int64, text string) (*entity.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyCompletion
	}

	task, err := s.tasks.SetCompletionDescription(ctx, id, text)
	if err != nil {
		s.logger.Warn("Task left completed without description", zap.Int64("task_id", id), zap.Error(err))
		return nil, fmt.Errorf("describe completion of task %d: %w", id, err)
	}
	return task, nil
}

// ActiveTasks pages through the open tasks of an assignee
func (s *Service) ActiveTasks(ctx context.Context, assigneeID int64, page, pageSize int) (Page[*entity.Task], error) {
	return s.taskPage(ctx, assigneeID, false, page, pageSize)
}

// CompletedTasks pages through the completed tasks of an assignee
func (s *Service) CompletedTasks(ctx context.Context, assigneeID int64, page, pageSize int) (Page[*entity.Task], error) {
	return s.taskPage(ctx, assigneeID, true, page, pageSize)
}

func (s *Service) taskPage(ctx context.Context, assigneeID int64, completed bool, page, pageSize int) (Page[*entity.Task], error) {
	tasks, err := s.tasks.ListByAssignee(ctx, assigneeID, completed)
	if err != nil {
		s.logger.Error("Failed to list tasks", zap.Int64("assignee_id", assigneeID), zap.Bool("completed", completed), zap.Error(err))
		return Page[*entity.Task]{}, fmt.Errorf("list tasks: %w", err)
	}
	return Paginate(tasks, page, pageSize), nil
}

// Stats returns task counts overall and for the current month
func (s *Service) Stats(ctx context.Context) (*entity.TaskStats, error) {
	now := s.Now()
	monthStart, _ := MonthBounds(now.Year(), now.Month(), s.loc)

	stats, err := s.tasks.Stats(ctx, monthStart)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	return stats, nil
}

// MonthlyReport returns the tasks an assignee completed during the given month
func (s *Service) MonthlyReport(ctx context.Context, assigneeID int64, year int, month time.Month) ([]*entity.Task, error) {
	start, end := MonthBounds(year, month, s.loc)

	tasks, err := s.tasks.ListCompletedBetween(ctx, assigneeID, start, end)
	if err != nil {
		return nil, fmt.Errorf("monthly report: %w", err)
	}
	return tasks, nil
}

func (s *Service) publish(ctx context.Context, evt *event.Event) {
	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(context.WithoutCancel(ctx), evt)
	}
}
