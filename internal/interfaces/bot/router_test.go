package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/campus-assistant/internal/application/access"
	"github.com/garyjia/campus-assistant/internal/application/workflow"
	"github.com/garyjia/campus-assistant/internal/domain/entity"
	domainwf "github.com/garyjia/campus-assistant/internal/domain/workflow"
)

type fixture struct {
	router    *Router
	gate      *mockGate
	engine    *mockEngine
	records   *mockRecords
	users     *mockUsers
	messenger *mockMessenger
	observer  *mockUpdateObserver
}

var (
	student = &entity.User{ID: 1, OpenID: "ou_student", Role: entity.RoleUser, FullName: "Ivan"}
	manager = &entity.User{ID: 2, OpenID: "ou_manager", Role: entity.RoleManagement}
)

func newFixture() *fixture {
	f := &fixture{
		gate: &mockGate{
			users:  map[string]*entity.User{student.OpenID: student, manager.OpenID: manager},
			banned: map[string]bool{"ou_banned": true},
		},
		engine:    &mockEngine{},
		records:   newMockRecords(),
		users:     &mockUsers{byOpenID: map[string]*entity.User{student.OpenID: student, manager.OpenID: manager}},
		messenger: &mockMessenger{},
		observer:  &mockUpdateObserver{},
	}
	f.router = NewRouter(f.gate, f.engine, f.records, mockReports{}, f.users, f.messenger, stubParser{}, zap.NewNop(),
		WithPageSize(5),
		WithUpdateObserver(f.observer),
	)
	return f
}

func message(user *entity.User, text string) Update {
	return Update{ConversationID: "oc_1:" + user.OpenID, ChatID: "oc_1", UserID: user.OpenID, MessageID: "om_in", Text: text}
}

func press(user *entity.User, cb Callback) Update {
	return Update{ConversationID: "oc_1:" + user.OpenID, ChatID: "oc_1", UserID: user.OpenID, MessageID: "om_card", Callback: cb.Encode()}
}

func TestRouter_BannedUserGetsNoticeOnly(t *testing.T) {
	f := newFixture()

	err := f.router.Handle(context.Background(), Update{ConversationID: "c", ChatID: "oc_1", UserID: "ou_banned", Text: "hello"})
	require.NoError(t, err)

	assert.Equal(t, access.NoticeBanned, f.messenger.last().Text)
	assert.Empty(t, f.engine.inputs)
	assert.Equal(t, 1, f.observer.counts["message/denied"])
}

func TestRouter_RegistrationFlow(t *testing.T) {
	f := newFixture()
	newcomer := &entity.User{OpenID: "ou_new"}

	require.NoError(t, f.router.Handle(context.Background(), message(newcomer, "/start")))
	start := f.messenger.last()
	require.Len(t, start.Buttons, 1)
	cb, err := DecodeCallback(start.Buttons[0][0].Payload)
	require.NoError(t, err)
	assert.Equal(t, CbRegister, cb.Action)

	require.NoError(t, f.router.Handle(context.Background(), press(newcomer, cb)))
	require.Len(t, f.users.created, 1)
	assert.Equal(t, "ou_new", f.users.created[0].OpenID)
	assert.Equal(t, entity.RoleUser, f.users.created[0].Role)
	assert.Equal(t, testNow, f.users.created[0].RegisteredAt)

	// Everything else stays closed until the gate knows the user
	require.NoError(t, f.router.Handle(context.Background(), message(newcomer, "/create_event")))
	assert.Equal(t, access.NoticeUnknown, f.messenger.last().Text)
	assert.Empty(t, f.engine.starts)
}

func TestRouter_MessageAdvancesWorkflow(t *testing.T) {
	f := newFixture()
	f.engine.advanceFunc = func(ctx context.Context, convID string, in workflow.Input) (*workflow.StepResult, error) {
		return &workflow.StepResult{
			Outcome: workflow.OutcomeAdvance,
			Step:    domainwf.StepEnd,
			Prompt: &workflow.Prompt{
				Text:        "Enter the end:",
				Suggestions: []string{"+1 hour", "+1 day"},
				Actions:     []workflow.Action{workflow.ActionCancel},
			},
		}, nil
	}

	update := message(student, "  Lecture \x00")
	update.Media = []string{"img_small", "img_large"}
	require.NoError(t, f.router.Handle(context.Background(), update))

	require.Len(t, f.engine.inputs, 1)
	assert.Equal(t, "Lecture", f.engine.inputs[0].Text)
	assert.Equal(t, []string{"img_small", "img_large"}, f.engine.inputs[0].Media)
	assert.Equal(t, "om_in", f.engine.inputs[0].MessageID)

	reply := f.messenger.last()
	assert.Equal(t, "Enter the end:", reply.Text)
	require.Len(t, reply.Buttons, 3)
	assert.Equal(t, "+1 hour", reply.Buttons[0][0].Label)
	assert.Equal(t, "Cancel", reply.Buttons[2][0].Label)

	cb, err := DecodeCallback(reply.Buttons[1][0].Payload)
	require.NoError(t, err)
	require.NoError(t, f.router.Handle(context.Background(), press(student, cb)))
	assert.Equal(t, "+1 day", f.engine.inputs[1].Text)
}

func TestRouter_NoActiveWorkflow(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.router.Handle(context.Background(), message(student, "random text")))
	assert.Equal(t, noActiveWorkflow, f.messenger.last().Text)
}

func TestRouter_RejectsForgedCallback(t *testing.T) {
	f := newFixture()

	u := message(student, "")
	u.Callback = `{"a":"zz"}`
	require.NoError(t, f.router.Handle(context.Background(), u))

	assert.Equal(t, "This button is no longer valid.", f.messenger.last().Text)
	assert.Empty(t, f.gate.requests)
	assert.Equal(t, 1, f.observer.counts["callback/rejected"])
}

func TestRouter_AnnounceRequiresManagement(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.router.Handle(context.Background(), message(student, "/announce")))
	assert.Empty(t, f.engine.starts)

	require.NoError(t, f.router.Handle(context.Background(), message(manager, "/announce")))
	require.Len(t, f.engine.starts, 1)
	assert.Equal(t, domainwf.KindAnnouncementCreate, f.engine.starts[0].Kind)
	assert.Equal(t, "oc_1:ou_manager", f.engine.starts[0].ConversationID)
}

func TestRouter_CreateTaskForAnotherUser(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.router.Handle(context.Background(), message(manager, "/create_task ou_student")))
	require.Len(t, f.engine.starts, 1)
	id, ok := f.engine.starts[0].Seed.ID(domainwf.FieldAssignee)
	require.True(t, ok)
	assert.Equal(t, student.ID, id)

	require.NoError(t, f.router.Handle(context.Background(), message(manager, "/create_task ou_ghost")))
	assert.Len(t, f.engine.starts, 1)
	assert.Equal(t, "No active user with id ou_ghost.", f.messenger.last().Text)
}

func TestRouter_TwoPhaseCompletion(t *testing.T) {
	f := newFixture()
	f.records.tasks[1] = &entity.Task{ID: 1, Title: "Grades", CreatedBy: manager.ID, CreatedFor: student.ID, EndAt: testNow.AddDate(0, 0, 3)}

	require.NoError(t, f.router.Handle(context.Background(), press(student, idCallback(CbTaskComplete, 1))))
	assert.True(t, f.records.tasks[1].IsCompleted)
	assert.Contains(t, f.messenger.last().Text, "Describe what was done")

	require.NoError(t, f.router.Handle(context.Background(), message(student, "   ")))
	assert.Contains(t, f.messenger.last().Text, "/cancel")

	require.NoError(t, f.router.Handle(context.Background(), message(student, "Uploaded to the portal")))
	assert.Equal(t, "Uploaded to the portal", f.records.descriptions[1])
	assert.Empty(t, f.engine.inputs, "completion notes never reach the workflow engine")

	// The next message goes to the engine again
	require.NoError(t, f.router.Handle(context.Background(), message(student, "hello")))
	assert.Len(t, f.engine.inputs, 1)
}

func TestRouter_CompletionNoteFailureKeepsTaskCompleted(t *testing.T) {
	f := newFixture()
	f.records.tasks[1] = &entity.Task{ID: 1, Title: "Grades", CreatedBy: manager.ID, CreatedFor: student.ID}
	f.records.describeErr = errors.New("database is locked")

	require.NoError(t, f.router.Handle(context.Background(), press(student, idCallback(CbTaskComplete, 1))))
	require.NoError(t, f.router.Handle(context.Background(), message(student, "done")))

	assert.True(t, f.records.tasks[1].IsCompleted)
	assert.Equal(t, "Could not save the note. The task stays completed.", f.messenger.last().Text)
	_, pending := f.router.pending("oc_1:ou_student")
	assert.False(t, pending)
}

func TestRouter_CancelClearsPendingNote(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.router.Handle(context.Background(), message(student, "/cancel")))
	assert.Equal(t, "Nothing to cancel.", f.messenger.last().Text)

	f.router.setPending("oc_1:ou_student", 7)
	require.NoError(t, f.router.Handle(context.Background(), message(student, "/cancel")))
	assert.Equal(t, "Cancelled.", f.messenger.last().Text)
	_, pending := f.router.pending("oc_1:ou_student")
	assert.False(t, pending)
}

func TestRouter_DeleteEventNeedsConfirmation(t *testing.T) {
	f := newFixture()
	f.records.events[3] = &entity.Event{ID: 3, Title: "Open day", CreatedBy: student.ID}

	require.NoError(t, f.router.Handle(context.Background(), press(student, idCallback(CbEventDelete, 3))))
	assert.False(t, f.records.events[3].IsDeleted)
	assert.Equal(t, "Delete event \"Open day\"?", f.messenger.last().Text)

	require.NoError(t, f.router.Handle(context.Background(), press(student, confirmCallback(CbEventDelete, 3))))
	assert.True(t, f.records.events[3].IsDeleted)
	require.Len(t, f.messenger.edited, 1)
	assert.Equal(t, "Event deleted: Open day", f.messenger.edited[0].msg.Text)

	require.NoError(t, f.router.Handle(context.Background(), press(student, confirmCallback(CbEventDelete, 3))))
	assert.Equal(t, "The event was already deleted.", f.messenger.last().Text)
}

func TestRouter_DeleteForeignEventDenied(t *testing.T) {
	f := newFixture()
	f.records.events[3] = &entity.Event{ID: 3, Title: "Open day", CreatedBy: manager.ID}

	require.NoError(t, f.router.Handle(context.Background(), press(student, confirmCallback(CbEventDelete, 3))))
	assert.False(t, f.records.events[3].IsDeleted)
	assert.Equal(t, "You can only delete your own events.", f.messenger.last().Text)
}

func TestRouter_EditEventSeedsWorkflow(t *testing.T) {
	f := newFixture()
	ev := &entity.Event{ID: 3, Title: "Open day", Description: "Hall", CreatedBy: student.ID,
		StartAt: testNow.Add(time.Hour), EndAt: testNow.Add(2 * time.Hour), ImageKey: "img_1"}
	f.records.events[3] = ev

	require.NoError(t, f.router.Handle(context.Background(), press(student, idCallback(CbEventEdit, 3))))
	require.Len(t, f.engine.starts, 1)

	sr := f.engine.starts[0]
	assert.Equal(t, domainwf.KindEventCreate, sr.Kind)
	assert.Equal(t, int64(3), sr.EditingTargetID)
	assert.Equal(t, domainwf.StepPreview, sr.EntryStep)
	title, _ := sr.Seed.Text(domainwf.FieldTitle)
	assert.Equal(t, "Open day", title)
	image, _ := sr.Seed.Text(domainwf.FieldImage)
	assert.Equal(t, "img_1", image)
	start, _ := sr.Seed.Time(domainwf.FieldStartAt)
	assert.Equal(t, ev.StartAt, start)
}

func TestRouter_TaskListPagingEditsInPlace(t *testing.T) {
	f := newFixture()
	for i := int64(1); i <= 7; i++ {
		f.records.tasks[i] = &entity.Task{ID: i, Title: "Task", CreatedBy: manager.ID, CreatedFor: student.ID, EndAt: testNow.Add(time.Hour)}
	}

	require.NoError(t, f.router.Handle(context.Background(), message(student, "/tasks")))
	first := f.messenger.last()
	assert.Equal(t, "Active tasks (7)", first.Text)
	// 5 tasks, navigation, completed toggle
	require.Len(t, first.Buttons, 7)

	next, err := DecodeCallback(first.Buttons[5][2].Payload)
	require.NoError(t, err)
	assert.Equal(t, 2, next.Page)

	require.NoError(t, f.router.Handle(context.Background(), press(student, next)))
	require.Len(t, f.messenger.edited, 1)
	assert.Equal(t, "om_card", f.messenger.edited[0].to)
	// 2 tasks, navigation, completed toggle
	assert.Len(t, f.messenger.edited[0].msg.Buttons, 4)
}

func TestRouter_StatsForStaffOnly(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.router.Handle(context.Background(), message(student, "/stats")))
	assert.Equal(t, "Statistics are available to management only.", f.messenger.last().Text)

	require.NoError(t, f.router.Handle(context.Background(), message(manager, "/stats")))
	assert.Contains(t, f.messenger.last().Text, "All time: 4 created, 1 completed")
	assert.Contains(t, f.messenger.last().Text, "January 2024: 2 created, 1 completed")
}

func TestRouter_StaffOpensManagerTasksFromTracker(t *testing.T) {
	f := newFixture()
	olga := &entity.User{ID: 3, OpenID: "ou_olga", Role: entity.RoleManagement, FullName: "Olga"}
	f.users.byOpenID[olga.OpenID] = olga
	for i := int64(1); i <= 6; i++ {
		f.records.tasks[i] = &entity.Task{ID: i, Title: "Task", CreatedBy: manager.ID, CreatedFor: olga.ID, EndAt: testNow.Add(time.Hour)}
	}
	ctx := context.Background()

	require.NoError(t, f.router.Handle(ctx, message(manager, "/stats")))
	menu := f.messenger.last()
	assert.Contains(t, menu.Text, "Open a manager's tasks")
	require.Len(t, menu.Buttons, 2)
	assert.Equal(t, "Olga", menu.Buttons[1][0].Label)

	open, err := DecodeCallback(menu.Buttons[1][0].Payload)
	require.NoError(t, err)
	assert.Equal(t, CbTaskList, open.Action)
	assert.Equal(t, olga.ID, open.ID)

	require.NoError(t, f.router.Handle(ctx, press(manager, open)))
	require.Len(t, f.messenger.edited, 1)
	list := f.messenger.edited[0].msg
	assert.Equal(t, "Active tasks of Olga (6)", list.Text)
	// 5 tasks, navigation, completed toggle, back to tracker
	require.Len(t, list.Buttons, 8)

	next, err := DecodeCallback(list.Buttons[5][2].Payload)
	require.NoError(t, err)
	assert.Equal(t, olga.ID, next.ID, "paging stays on the same owner")
	assert.Equal(t, 2, next.Page)

	back, err := DecodeCallback(list.Buttons[7][0].Payload)
	require.NoError(t, err)
	assert.Equal(t, CbTaskTracker, back.Action)

	require.NoError(t, f.router.Handle(ctx, press(manager, back)))
	require.Len(t, f.messenger.edited, 2)
	assert.Contains(t, f.messenger.edited[1].msg.Text, "All time: 4 created, 1 completed")
}

func TestRouter_OthersTasksForStaffOnly(t *testing.T) {
	f := newFixture()
	f.records.tasks[1] = &entity.Task{ID: 1, Title: "Secret", CreatedBy: manager.ID, CreatedFor: manager.ID, EndAt: testNow.Add(time.Hour)}

	require.NoError(t, f.router.Handle(context.Background(), press(student, taskListCallback(manager.ID, 1, false))))
	assert.Equal(t, "Only management can view other users' tasks.", f.messenger.last().Text)
	assert.Empty(t, f.messenger.edited)

	require.NoError(t, f.router.Handle(context.Background(), press(manager, taskListCallback(99, 1, false))))
	assert.Equal(t, "The user no longer exists.", f.messenger.last().Text)
}

func TestRouter_Profile(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.router.Handle(context.Background(), message(student, "/profile")))
	assert.Equal(t, "Your profile\n\nName: Ivan\nRole: User", f.messenger.last().Text)

	require.NoError(t, f.router.Handle(context.Background(), message(manager, "/profile")))
	assert.Contains(t, f.messenger.last().Text, "Role: Management")
}

func TestRouter_SubmitSerializesConversation(t *testing.T) {
	f := newFixture()
	f.engine.advanceFunc = func(ctx context.Context, convID string, in workflow.Input) (*workflow.StepResult, error) {
		return &workflow.StepResult{Outcome: workflow.OutcomeRetry, Message: in.Text}, nil
	}

	for _, text := range []string{"one", "two", "three"} {
		f.router.Submit(context.Background(), message(student, text))
	}
	f.router.Close()

	require.Len(t, f.messenger.sent, 3)
	assert.Equal(t, "one", f.messenger.sent[0].msg.Text)
	assert.Equal(t, "three", f.messenger.sent[2].msg.Text)
}
