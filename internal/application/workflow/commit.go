package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/campus-assistant/internal/application/port"
	"github.com/garyjia/campus-assistant/internal/domain/entity"
	domainwf "github.com/garyjia/campus-assistant/internal/domain/workflow"
)

// Committer persists a confirmed session
type Committer interface {
	Commit(ctx context.Context, sess *domainwf.Session) (*Record, error)
}

// CommitterFunc adapts a function to Committer
type CommitterFunc func(ctx context.Context, sess *domainwf.Session) (*Record, error)

// Commit calls f
func (f CommitterFunc) Commit(ctx context.Context, sess *domainwf.Session) (*Record, error) {
	return f(ctx, sess)
}

// Broadcaster fans announcement content out to recipients
type Broadcaster interface {
	Broadcast(ctx context.Context, content port.Content, recipients []string) *entity.DeliveryReport
}

// resolveCreator looks the user up at commit time so a role change mid-flow is honored
func resolveCreator(ctx context.Context, users port.UserRepository, openID string) (*entity.User, error) {
	user, err := users.GetByOpenID(ctx, openID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve creator: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %s", ErrCreatorUnknown, openID)
	}
	return user, nil
}

func textField(f domainwf.Fields, name string) *string {
	if v, ok := f.Text(name); ok {
		return &v
	}
	return nil
}

func timeField(f domainwf.Fields, name string) *time.Time {
	if v, ok := f.Time(name); ok {
		return &v
	}
	return nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// EventCommitter creates or updates events
type EventCommitter struct {
	events port.EventRepository
	users  port.UserRepository
	format func(time.Time) string
	clock  func() time.Time
}

// NewEventCommitter creates an EventCommitter
func NewEventCommitter(events port.EventRepository, users port.UserRepository, parser port.DateParser, clock func() time.Time) *EventCommitter {
	return &EventCommitter{
		events: events,
		users:  users,
		format: displayFormat(parser),
		clock:  clock,
	}
}

// Commit writes the session as a new event, or patches the captured fields of the target
func (c *EventCommitter) Commit(ctx context.Context, sess *domainwf.Session) (*Record, error) {
	creator, err := resolveCreator(ctx, c.users, sess.UserID)
	if err != nil {
		return nil, err
	}

	now := c.clock()
	patch := entity.EventPatch{
		Title:       textField(sess.Fields, domainwf.FieldTitle),
		Description: textField(sess.Fields, domainwf.FieldDescription),
		StartAt:     timeField(sess.Fields, domainwf.FieldStartAt),
		EndAt:       timeField(sess.Fields, domainwf.FieldEndAt),
		ImageKey:    textField(sess.Fields, domainwf.FieldImage),
	}

	if sess.IsEditing() {
		ev, err := c.events.Update(ctx, sess.EditingTargetID, patch, now)
		if err != nil {
			return nil, fmt.Errorf("failed to update event %d: %w", sess.EditingTargetID, err)
		}
		return &Record{
			Kind:    domainwf.KindEventCreate,
			Updated: true,
			Event:   ev,
			Message: c.summary("Event updated", ev),
		}, nil
	}

	ev := &entity.Event{
		Title:       deref(patch.Title),
		Description: deref(patch.Description),
		StartAt:     deref(patch.StartAt),
		EndAt:       deref(patch.EndAt),
		ImageKey:    deref(patch.ImageKey),
		CreatedBy:   creator.ID,
		CreatedAt:   now,
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	if err := c.events.Create(ctx, ev); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	return &Record{
		Kind:    domainwf.KindEventCreate,
		Event:   ev,
		Message: c.summary("Event created", ev),
	}, nil
}

func (c *EventCommitter) summary(head string, ev *entity.Event) string {
	return fmt.Sprintf("%s: %s\nStart: %s\nEnd: %s", head, ev.Title, c.format(ev.StartAt), c.format(ev.EndAt))
}

// TaskCommitter creates or updates tasks
type TaskCommitter struct {
	tasks  port.TaskRepository
	users  port.UserRepository
	format func(time.Time) string
	clock  func() time.Time
}

// NewTaskCommitter creates a TaskCommitter
func NewTaskCommitter(tasks port.TaskRepository, users port.UserRepository, parser port.DateParser, clock func() time.Time) *TaskCommitter {
	return &TaskCommitter{
		tasks:  tasks,
		users:  users,
		format: displayFormat(parser),
		clock:  clock,
	}
}

// Commit writes the session as a new task assigned to the seeded assignee, or
// to the creator when none was seeded
func (c *TaskCommitter) Commit(ctx context.Context, sess *domainwf.Session) (*Record, error) {
	creator, err := resolveCreator(ctx, c.users, sess.UserID)
	if err != nil {
		return nil, err
	}

	now := c.clock()
	patch := entity.TaskPatch{
		Title:       textField(sess.Fields, domainwf.FieldTitle),
		Description: textField(sess.Fields, domainwf.FieldDescription),
		EndAt:       timeField(sess.Fields, domainwf.FieldEndAt),
	}

	if sess.IsEditing() {
		task, err := c.tasks.Update(ctx, sess.EditingTargetID, patch, now)
		if err != nil {
			return nil, fmt.Errorf("failed to update task %d: %w", sess.EditingTargetID, err)
		}
		return &Record{
			Kind:    domainwf.KindTaskCreate,
			Updated: true,
			Task:    task,
			Message: c.summary("Task updated", task),
		}, nil
	}

	assignee := creator.ID
	if id, ok := sess.Fields.ID(domainwf.FieldAssignee); ok && id != 0 {
		assignee = id
	}

	task := &entity.Task{
		Title:       deref(patch.Title),
		Description: deref(patch.Description),
		EndAt:       deref(patch.EndAt),
		CreatedBy:   creator.ID,
		CreatedFor:  assignee,
		CreatedAt:   now,
	}
	if err := task.Validate(); err != nil {
		return nil, err
	}
	if err := c.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return &Record{
		Kind:    domainwf.KindTaskCreate,
		Task:    task,
		Message: c.summary("Task created", task),
	}, nil
}

func (c *TaskCommitter) summary(head string, task *entity.Task) string {
	return fmt.Sprintf("%s: %s\nDeadline: %s", head, task.Title, c.format(task.EndAt))
}

// AnnouncementCommitter broadcasts the announcement to every active user
type AnnouncementCommitter struct {
	users       port.UserRepository
	broadcaster Broadcaster
	sampleSize  int
}

// NewAnnouncementCommitter creates an AnnouncementCommitter. sampleSize bounds
// the failures listed in the summary.
func NewAnnouncementCommitter(users port.UserRepository, broadcaster Broadcaster, sampleSize int) *AnnouncementCommitter {
	if sampleSize <= 0 {
		sampleSize = 10
	}
	return &AnnouncementCommitter{
		users:       users,
		broadcaster: broadcaster,
		sampleSize:  sampleSize,
	}
}

// Commit delivers the content. Per-recipient failures land in the report, not in the error.
func (c *AnnouncementCommitter) Commit(ctx context.Context, sess *domainwf.Session) (*Record, error) {
	creator, err := resolveCreator(ctx, c.users, sess.UserID)
	if err != nil {
		return nil, err
	}
	if !creator.CanAnnounce() {
		return nil, fmt.Errorf("user %d may not announce", creator.ID)
	}

	recipients, err := c.users.ListRecipients(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	content := port.Content{
		Text:            deref(textField(sess.Fields, domainwf.FieldText)),
		ImageKey:        deref(textField(sess.Fields, domainwf.FieldImage)),
		SourceMessageID: deref(textField(sess.Fields, domainwf.FieldSourceMessage)),
	}
	report := c.broadcaster.Broadcast(ctx, content, recipients)

	return &Record{
		Kind:    domainwf.KindAnnouncementCreate,
		Report:  report,
		Message: report.Summary(c.sampleSize),
	}, nil
}

func displayFormat(parser port.DateParser) func(time.Time) string {
	return func(t time.Time) string {
		return parser.Format(t, port.DisplayLayout)
	}
}

var (
	_ Committer = (*EventCommitter)(nil)
	_ Committer = (*TaskCommitter)(nil)
	_ Committer = (*AnnouncementCommitter)(nil)
)
