package bot

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/garyjia/campus-assistant/internal/application/access"
	"github.com/garyjia/campus-assistant/internal/application/lifecycle"
	"github.com/garyjia/campus-assistant/internal/application/port"
	"github.com/garyjia/campus-assistant/internal/application/workflow"
	"github.com/garyjia/campus-assistant/internal/domain/entity"
	domainwf "github.com/garyjia/campus-assistant/internal/domain/workflow"
)

var testNow = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

type stubParser struct{}

func (stubParser) Parse(text string) (time.Time, error) {
	return time.ParseInLocation(port.DisplayLayout, text, time.UTC)
}

func (stubParser) Format(t time.Time, layout string) string { return t.In(time.UTC).Format(layout) }

func (stubParser) Location() *time.Location { return time.UTC }

type mockGate struct {
	users    map[string]*entity.User
	banned   map[string]bool
	requests []access.Request
}

func (g *mockGate) Check(ctx context.Context, req access.Request) (access.Result, error) {
	g.requests = append(g.requests, req)
	if g.banned[req.UserID] {
		return access.Result{Decision: access.DenyBanned, Notice: access.NoticeBanned}, nil
	}
	u := g.users[req.UserID]
	if u == nil && !(req.Kind == access.InputCommand && req.Payload == "start") &&
		!(req.Kind == access.InputCallback && req.Payload == string(CbRegister)) {
		return access.Result{Decision: access.DenyUnknown, Notice: access.NoticeUnknown}, nil
	}
	return access.Result{Decision: access.Allow, User: u}, nil
}

type mockEngine struct {
	startFunc   func(ctx context.Context, req workflow.StartRequest) (*workflow.StepResult, error)
	advanceFunc func(ctx context.Context, convID string, in workflow.Input) (*workflow.StepResult, error)
	rewindFunc  func(ctx context.Context, convID string, step domainwf.Step) (*workflow.StepResult, error)
	active      *domainwf.Session

	starts    []workflow.StartRequest
	inputs    []workflow.Input
	cancelled int
}

func (m *mockEngine) Start(ctx context.Context, req workflow.StartRequest) (*workflow.StepResult, error) {
	m.starts = append(m.starts, req)
	if m.startFunc != nil {
		return m.startFunc(ctx, req)
	}
	return &workflow.StepResult{Outcome: workflow.OutcomeAdvance, Prompt: &workflow.Prompt{Text: "Enter the title:"}}, nil
}

func (m *mockEngine) Advance(ctx context.Context, convID string, in workflow.Input) (*workflow.StepResult, error) {
	m.inputs = append(m.inputs, in)
	if m.advanceFunc != nil {
		return m.advanceFunc(ctx, convID, in)
	}
	return nil, workflow.ErrNoActiveWorkflow
}

func (m *mockEngine) Cancel(ctx context.Context, convID string) error {
	m.cancelled++
	m.active = nil
	return nil
}

func (m *mockEngine) RewindToEdit(ctx context.Context, convID string, step domainwf.Step) (*workflow.StepResult, error) {
	if m.rewindFunc != nil {
		return m.rewindFunc(ctx, convID, step)
	}
	return nil, workflow.ErrNotAtPreview
}

func (m *mockEngine) Active(ctx context.Context, convID string) (*domainwf.Session, error) {
	return m.active, nil
}

type mockRecords struct {
	events       map[int64]*entity.Event
	tasks        map[int64]*entity.Task
	dayEvents    []*entity.Event
	descriptions map[int64]string
	describeErr  error
}

func newMockRecords() *mockRecords {
	return &mockRecords{
		events:       make(map[int64]*entity.Event),
		tasks:        make(map[int64]*entity.Task),
		descriptions: make(map[int64]string),
	}
}

func (m *mockRecords) Now() time.Time { return testNow }

func (m *mockRecords) EventsOnDay(ctx context.Context, day time.Time) ([]*entity.Event, error) {
	return m.dayEvents, nil
}

func (m *mockRecords) EventsInWeek(ctx context.Context, day time.Time) ([]*entity.Event, error) {
	return m.dayEvents, nil
}

func (m *mockRecords) GetEvent(ctx context.Context, id int64) (*entity.Event, error) {
	ev := m.events[id]
	if ev == nil || ev.IsDeleted {
		return nil, nil
	}
	return ev, nil
}

func (m *mockRecords) GetTask(ctx context.Context, id int64) (*entity.Task, error) {
	t := m.tasks[id]
	if t == nil || t.IsDeleted {
		return nil, nil
	}
	return t, nil
}

func (m *mockRecords) DeleteEvent(ctx context.Context, id, actorID int64) (*entity.Event, error) {
	ev := m.events[id]
	if ev == nil || ev.IsDeleted {
		return nil, port.ErrNotFound
	}
	ev.IsDeleted = true
	ev.DeletedBy = &actorID
	return ev, nil
}

func (m *mockRecords) DeleteTask(ctx context.Context, id, actorID int64) (*entity.Task, error) {
	t := m.tasks[id]
	if t == nil || t.IsDeleted {
		return nil, port.ErrNotFound
	}
	t.IsDeleted = true
	return t, nil
}

func (m *mockRecords) CompleteTask(ctx context.Context, id int64) (*entity.Task, error) {
	t := m.tasks[id]
	if t == nil || t.IsCompleted {
		return nil, port.ErrNotFound
	}
	t.IsCompleted = true
	now := testNow
	t.CompletedAt = &now
	return t, nil
}

func (m *mockRecords) DescribeCompletion(ctx context.Context, id int64, text string) (*entity.Task, error) {
	if text == "" {
		return nil, lifecycle.ErrEmptyCompletion
	}
	if m.describeErr != nil {
		return nil, m.describeErr
	}
	m.descriptions[id] = text
	return m.tasks[id], nil
}

func (m *mockRecords) ActiveTasks(ctx context.Context, assigneeID int64, page, pageSize int) (lifecycle.Page[*entity.Task], error) {
	return m.page(assigneeID, false, page, pageSize), nil
}

func (m *mockRecords) CompletedTasks(ctx context.Context, assigneeID int64, page, pageSize int) (lifecycle.Page[*entity.Task], error) {
	return m.page(assigneeID, true, page, pageSize), nil
}

func (m *mockRecords) page(assigneeID int64, done bool, page, pageSize int) lifecycle.Page[*entity.Task] {
	var out []*entity.Task
	for id := int64(1); id <= int64(len(m.tasks)); id++ {
		t := m.tasks[id]
		if t != nil && t.CreatedFor == assigneeID && t.IsCompleted == done && !t.IsDeleted {
			out = append(out, t)
		}
	}
	return lifecycle.Paginate(out, page, pageSize)
}

func (m *mockRecords) Stats(ctx context.Context) (*entity.TaskStats, error) {
	return &entity.TaskStats{Total: 4, Completed: 1, MonthTotal: 2, MonthCompleted: 1}, nil
}

type mockReports struct{}

func (mockReports) Monthly(ctx context.Context, assigneeID int64, year int, month time.Month) (*entity.MonthlyReport, error) {
	return &entity.MonthlyReport{Assignee: &entity.User{ID: assigneeID, OpenID: "ou_x"}, Year: year, Month: month}, nil
}

func (mockReports) RenderText(r *entity.MonthlyReport) string {
	return "Report " + r.Month.String()
}

func (mockReports) Export(r *entity.MonthlyReport, w io.Writer) error { return nil }

type mockUsers struct {
	byOpenID map[string]*entity.User
	created  []*entity.User
}

func (m *mockUsers) Create(ctx context.Context, u *entity.User) error {
	u.ID = int64(100 + len(m.created))
	m.created = append(m.created, u)
	return nil
}

func (m *mockUsers) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	for _, u := range m.byOpenID {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUsers) GetByOpenID(ctx context.Context, openID string) (*entity.User, error) {
	return m.byOpenID[openID], nil
}

func (m *mockUsers) ListRecipients(ctx context.Context) ([]string, error) { return nil, nil }

func (m *mockUsers) ListByRole(ctx context.Context, role string) ([]*entity.User, error) {
	var out []*entity.User
	for _, u := range m.byOpenID {
		if u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type sentMessage struct {
	to  string
	msg port.OutgoingMessage
}

type mockMessenger struct {
	mu      sync.Mutex
	sent    []sentMessage
	edited  []sentMessage
	editErr error
}

func (m *mockMessenger) Send(ctx context.Context, receiveID string, msg port.OutgoingMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{to: receiveID, msg: msg})
	return "om_reply", nil
}

func (m *mockMessenger) Edit(ctx context.Context, messageID string, msg port.OutgoingMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.editErr != nil {
		return m.editErr
	}
	m.edited = append(m.edited, sentMessage{to: messageID, msg: msg})
	return nil
}

func (m *mockMessenger) Delete(ctx context.Context, messageID string) error { return nil }

func (m *mockMessenger) last() port.OutgoingMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return port.OutgoingMessage{}
	}
	return m.sent[len(m.sent)-1].msg
}

type mockUpdateObserver struct {
	counts map[string]int
}

func (m *mockUpdateObserver) UpdateHandled(updateType, status string) {
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[updateType+"/"+status]++
}
