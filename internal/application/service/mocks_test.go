package service

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/garyjia/campus-assistant/internal/application/port"
	"github.com/garyjia/campus-assistant/internal/domain/entity"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockTaskRepo struct {
	tasks map[int64]*entity.Task
}

func (m *mockTaskRepo) Create(ctx context.Context, task *entity.Task) error { return nil }

func (m *mockTaskRepo) GetByID(ctx context.Context, id int64) (*entity.Task, error) {
	return m.tasks[id], nil
}

func (m *mockTaskRepo) Update(ctx context.Context, id int64, patch entity.TaskPatch, at time.Time) (*entity.Task, error) {
	return nil, port.ErrNotFound
}

func (m *mockTaskRepo) SoftDelete(ctx context.Context, id, actorID int64, at time.Time) (*entity.Task, error) {
	return nil, port.ErrNotFound
}

func (m *mockTaskRepo) SetCompleted(ctx context.Context, id int64, at time.Time) (*entity.Task, error) {
	return nil, port.ErrNotFound
}

func (m *mockTaskRepo) SetCompletionDescription(ctx context.Context, id int64, text string) (*entity.Task, error) {
	return nil, port.ErrNotFound
}

func (m *mockTaskRepo) ListByAssignee(ctx context.Context, assigneeID int64, completed bool) ([]*entity.Task, error) {
	return nil, nil
}

func (m *mockTaskRepo) ListCompletedBetween(ctx context.Context, assigneeID int64, start, end time.Time) ([]*entity.Task, error) {
	return nil, nil
}

func (m *mockTaskRepo) Stats(ctx context.Context, monthStart time.Time) (*entity.TaskStats, error) {
	return &entity.TaskStats{}, nil
}

type mockUserRepo struct {
	byID map[int64]*entity.User
}

func (m *mockUserRepo) Create(ctx context.Context, user *entity.User) error { return nil }

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	return m.byID[id], nil
}

func (m *mockUserRepo) GetByOpenID(ctx context.Context, openID string) (*entity.User, error) {
	for _, u := range m.byID {
		if u.OpenID == openID {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) ListRecipients(ctx context.Context) ([]string, error) { return nil, nil }

func (m *mockUserRepo) ListByRole(ctx context.Context, role string) ([]*entity.User, error) {
	return nil, nil
}

type sentMessage struct {
	receiveID string
	msg       port.OutgoingMessage
}

type mockMessenger struct {
	sent    []sentMessage
	sendErr error
}

func (m *mockMessenger) Send(ctx context.Context, receiveID string, msg port.OutgoingMessage) (string, error) {
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.sent = append(m.sent, sentMessage{receiveID: receiveID, msg: msg})
	return "om_1", nil
}

func (m *mockMessenger) Edit(ctx context.Context, messageID string, msg port.OutgoingMessage) error {
	return nil
}

func (m *mockMessenger) Delete(ctx context.Context, messageID string) error { return nil }

type mockHistory struct {
	tasks []*entity.Task
	err   error
}

func (m *mockHistory) MonthlyReport(ctx context.Context, assigneeID int64, year int, month time.Month) ([]*entity.Task, error) {
	return m.tasks, m.err
}

type mockReportWriter struct {
	written *entity.MonthlyReport
}

func (m *mockReportWriter) WriteMonthly(w io.Writer, report *entity.MonthlyReport) error {
	if report == nil {
		return errors.New("nil report")
	}
	m.written = report
	_, err := io.WriteString(w, "xlsx")
	return err
}

type displayParser struct {
	loc *time.Location
}

func (p displayParser) Parse(text string) (time.Time, error) {
	return time.ParseInLocation(port.DisplayLayout, text, p.loc)
}

func (p displayParser) Format(t time.Time, layout string) string {
	return t.In(p.loc).Format(layout)
}

func (p displayParser) Location() *time.Location { return p.loc }
