package workflow

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/garyjia/campus-assistant/internal/application/dispatcher"
	"github.com/garyjia/campus-assistant/internal/application/port"
	"github.com/garyjia/campus-assistant/internal/domain/entity"
	"github.com/garyjia/campus-assistant/internal/domain/event"
	domainwf "github.com/garyjia/campus-assistant/internal/domain/workflow"
)

var testLoc = time.FixedZone("UTC+3", 3*60*60)

func testNow() time.Time {
	return time.Date(2024, 1, 10, 12, 0, 0, 0, testLoc)
}

type stubParser struct{}

func (stubParser) Parse(text string) (time.Time, error) {
	return time.ParseInLocation(port.DisplayLayout, strings.TrimSpace(text), testLoc)
}

func (stubParser) Format(t time.Time, layout string) string {
	return t.In(testLoc).Format(layout)
}

func (stubParser) Location() *time.Location {
	return testLoc
}

type mockSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domainwf.Session
	saveErr  error
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{sessions: make(map[string]*domainwf.Session)}
}

func (m *mockSessionStore) Get(ctx context.Context, conversationID string) (*domainwf.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[conversationID]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

func (m *mockSessionStore) Save(ctx context.Context, session *domainwf.Session) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ConversationID] = session.Clone()
	return nil
}

func (m *mockSessionStore) Delete(ctx context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, conversationID)
	return nil
}

type mockEventRepo struct {
	created  []*entity.Event
	patches  map[int64]entity.EventPatch
	existing map[int64]*entity.Event
	err      error
}

func newMockEventRepo() *mockEventRepo {
	return &mockEventRepo{
		patches:  make(map[int64]entity.EventPatch),
		existing: make(map[int64]*entity.Event),
	}
}

func (m *mockEventRepo) Create(ctx context.Context, ev *entity.Event) error {
	if m.err != nil {
		return m.err
	}
	ev.ID = int64(len(m.created) + 1)
	m.created = append(m.created, ev)
	return nil
}

func (m *mockEventRepo) GetByID(ctx context.Context, id int64) (*entity.Event, error) {
	return m.existing[id], nil
}

func (m *mockEventRepo) Update(ctx context.Context, id int64, patch entity.EventPatch, at time.Time) (*entity.Event, error) {
	if m.err != nil {
		return nil, m.err
	}
	ev, ok := m.existing[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	m.patches[id] = patch
	patch.Apply(ev)
	ev.UpdatedAt = &at
	return ev, nil
}

func (m *mockEventRepo) SoftDelete(ctx context.Context, id, actorID int64, at time.Time) (*entity.Event, error) {
	return nil, port.ErrNotFound
}

func (m *mockEventRepo) ListInRange(ctx context.Context, start, end time.Time) ([]*entity.Event, error) {
	return nil, nil
}

type mockTaskRepo struct {
	created []*entity.Task
	patches map[int64]entity.TaskPatch
	err     error
}

func newMockTaskRepo() *mockTaskRepo {
	return &mockTaskRepo{patches: make(map[int64]entity.TaskPatch)}
}

func (m *mockTaskRepo) Create(ctx context.Context, task *entity.Task) error {
	if m.err != nil {
		return m.err
	}
	task.ID = int64(len(m.created) + 1)
	m.created = append(m.created, task)
	return nil
}

func (m *mockTaskRepo) GetByID(ctx context.Context, id int64) (*entity.Task, error) {
	return nil, nil
}

func (m *mockTaskRepo) Update(ctx context.Context, id int64, patch entity.TaskPatch, at time.Time) (*entity.Task, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.patches[id] = patch
	task := &entity.Task{ID: id}
	patch.Apply(task)
	return task, nil
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
	users      map[string]*entity.User
	recipients []string
}

func newMockUserRepo(users ...*entity.User) *mockUserRepo {
	m := &mockUserRepo{users: make(map[string]*entity.User)}
	for _, u := range users {
		m.users[u.OpenID] = u
	}
	return m
}

func (m *mockUserRepo) Create(ctx context.Context, user *entity.User) error { return nil }

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) GetByOpenID(ctx context.Context, openID string) (*entity.User, error) {
	return m.users[openID], nil
}

func (m *mockUserRepo) ListRecipients(ctx context.Context) ([]string, error) {
	return m.recipients, nil
}

func (m *mockUserRepo) ListByRole(ctx context.Context, role string) ([]*entity.User, error) {
	return nil, nil
}

type mockBroadcaster struct {
	content    port.Content
	recipients []string
}

func (m *mockBroadcaster) Broadcast(ctx context.Context, content port.Content, recipients []string) *entity.DeliveryReport {
	m.content = content
	m.recipients = recipients
	return &entity.DeliveryReport{Total: len(recipients), Success: len(recipients)}
}

// mockDispatcher records published events synchronously
type mockDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockDispatcher) Subscribe(eventType event.Type, handler dispatcher.Handler) {}

func (m *mockDispatcher) SubscribeNamed(eventType event.Type, name string, handler dispatcher.Handler) {
}

func (m *mockDispatcher) Unsubscribe(eventType event.Type, name string) {}

func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.DispatchAsync(ctx, evt)
	return nil
}

func (m *mockDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *mockDispatcher) ListHandlers(eventType event.Type) []dispatcher.HandlerInfo { return nil }

func (m *mockDispatcher) Close() error { return nil }

type mockObserver struct {
	steps   map[Outcome]int
	commits map[bool]int
}

func newMockObserver() *mockObserver {
	return &mockObserver{steps: make(map[Outcome]int), commits: make(map[bool]int)}
}

func (m *mockObserver) StepObserved(kind domainwf.Kind, outcome Outcome) { m.steps[outcome]++ }

func (m *mockObserver) CommitObserved(kind domainwf.Kind, ok bool) { m.commits[ok]++ }
