package service

import (
	"context"
	"fmt"

	"github.com/garyjia/campus-assistant/internal/application/dispatcher"
	"github.com/garyjia/campus-assistant/internal/application/port"
	"github.com/garyjia/campus-assistant/internal/domain/event"
)

// Logger defines the logging interface used by services
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// NotificationService tells users about records that concern them
type NotificationService interface {
	// NotifyAssignee messages the assignee of a newly created task
	NotifyAssignee(ctx context.Context, evt *event.Event) error

	// Register subscribes the service to the events it handles
	Register(d dispatcher.Dispatcher)
}

type notificationServiceImpl struct {
	tasks     port.TaskRepository
	users     port.UserRepository
	messenger port.Messenger
	openTask  func(taskID int64) string
	logger    Logger
}

// NewNotificationService creates a new NotificationService. openTask builds the
// callback payload of the "Open task" button.
func NewNotificationService(
	tasks port.TaskRepository,
	users port.UserRepository,
	messenger port.Messenger,
	openTask func(taskID int64) string,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		tasks:     tasks,
		users:     users,
		messenger: messenger,
		openTask:  openTask,
		logger:    logger,
	}
}

// Register implements NotificationService
func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeTaskCreated, "assignee-notifier", s.NotifyAssignee)
}

// NotifyAssignee implements NotificationService. Tasks people create for
// themselves are skipped.
func (s *notificationServiceImpl) NotifyAssignee(ctx context.Context, evt *event.Event) error {
	creatorID := evt.GetPayloadInt(event.KeyCreatorID)
	assigneeID := evt.GetPayloadInt(event.KeyAssigneeID)
	if assigneeID == 0 || assigneeID == creatorID {
		return nil
	}

	task, err := s.tasks.GetByID(ctx, evt.EntityID)
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}
	if task == nil {
		s.logger.Info("Task vanished before assignee notification", "task_id", evt.EntityID)
		return nil
	}

	assignee, err := s.users.GetByID(ctx, assigneeID)
	if err != nil {
		return fmt.Errorf("get assignee: %w", err)
	}
	if assignee == nil || assignee.IsBanned || assignee.IsDeleted {
		s.logger.Info("Assignee cannot be notified", "task_id", task.ID, "assignee_id", assigneeID)
		return nil
	}

	creatorName := "Someone"
	if creator, err := s.users.GetByID(ctx, creatorID); err == nil && creator != nil {
		creatorName = creator.DisplayName()
	}

	msg := port.OutgoingMessage{
		Text: fmt.Sprintf("%s assigned you a new task: %s", creatorName, task.Title),
		Buttons: [][]port.Button{{
			{Label: "Open task", Payload: s.openTask(task.ID)},
		}},
	}
	if _, err := s.messenger.Send(ctx, assignee.OpenID, msg); err != nil {
		s.logger.Error("Failed to notify assignee", "error", err, "task_id", task.ID, "assignee_id", assigneeID)
		return fmt.Errorf("send message: %w", err)
	}

	s.logger.Info("Assignee notified", "task_id", task.ID, "assignee_id", assigneeID)
	return nil
}
