package bot

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/campus-assistant/internal/application/access"
	"github.com/garyjia/campus-assistant/internal/application/port"
	"github.com/garyjia/campus-assistant/internal/application/workflow"
	"github.com/garyjia/campus-assistant/internal/domain/entity"
	domainwf "github.com/garyjia/campus-assistant/internal/domain/workflow"
)

const (
	noActiveWorkflow = "Nothing is in progress. Start with /create_event, /create_task or /announce."
	genericFailure   = "Something went wrong. Please try again later."

	helpText = `Available commands:
/create_event - schedule an event
/create_task [open_id] - assign a task, to yourself by default
/announce - send an announcement to everyone
/events - today's events
/week - this week's events
/tasks - your active tasks
/done - your completed tasks
/report [YYYY-MM] - your monthly report
/profile - your role
/stats - task statistics and managers' tasks
/cancel - stop what you are doing`
)

func (r *Router) handleCommand(ctx context.Context, req request, command, args string) error {
	if req.user == nil && command != "start" && command != "help" {
		return r.reply(ctx, req.ChatID, plain(access.NoticeUnknown))
	}

	switch command {
	case "start":
		return r.cmdStart(ctx, req)
	case "help":
		return r.reply(ctx, req.ChatID, plain(helpText))
	case "cancel":
		return r.cmdCancel(ctx, req)
	case "create_event":
		return r.startWorkflow(ctx, req, workflow.StartRequest{Kind: domainwf.KindEventCreate})
	case "create_task":
		return r.cmdCreateTask(ctx, req, args)
	case "announce":
		if !req.user.CanAnnounce() {
			return r.reply(ctx, req.ChatID, plain("Only management can send announcements."))
		}
		return r.startWorkflow(ctx, req, workflow.StartRequest{Kind: domainwf.KindAnnouncementCreate})
	case "events":
		return r.showDay(ctx, req, r.records.Now(), false)
	case "week":
		return r.showWeek(ctx, req, r.records.Now(), false)
	case "tasks":
		return r.showTasks(ctx, req, 0, 1, false, false)
	case "done":
		return r.showTasks(ctx, req, 0, 1, true, false)
	case "profile":
		return r.reply(ctx, req.ChatID, plain(profile(req.user)))
	case "report":
		return r.cmdReport(ctx, req, args)
	case "stats":
		return r.showTracker(ctx, req, false)
	}
	return r.reply(ctx, req.ChatID, plain("Unknown command.\n\n"+helpText))
}

func (r *Router) cmdStart(ctx context.Context, req request) error {
	if req.user == nil {
		return r.reply(ctx, req.ChatID, port.OutgoingMessage{
			Text:    "Hello! I help schedule events, assign tasks and send announcements.",
			Buttons: [][]port.Button{{button("Create profile", Callback{Action: CbRegister})}},
		})
	}
	return r.reply(ctx, req.ChatID, plain(fmt.Sprintf("Hello, %s!\n\n%s", req.user.DisplayName(), helpText)))
}

func (r *Router) register(ctx context.Context, req request) error {
	if req.user != nil {
		return r.reply(ctx, req.ChatID, plain("You are already registered.\n\n"+helpText))
	}

	user := &entity.User{
		OpenID:       req.UserID,
		Role:         entity.RoleUser,
		RegisteredAt: r.records.Now(),
	}
	if err := r.users.Create(ctx, user); err != nil {
		_ = r.reply(ctx, req.ChatID, plain(genericFailure))
		return fmt.Errorf("register user: %w", err)
	}

	r.logger.Info("User registered", zap.Int64("user_id", user.ID), zap.String("open_id", user.OpenID))
	return r.reply(ctx, req.ChatID, plain("Your profile is ready.\n\n"+helpText))
}

func (r *Router) cmdCancel(ctx context.Context, req request) error {
	hadNote := r.clearPending(req.ConversationID)

	active, err := r.engine.Active(ctx, req.ConversationID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if err := r.engine.Cancel(ctx, req.ConversationID); err != nil {
		return fmt.Errorf("cancel workflow: %w", err)
	}

	if active == nil && !hadNote {
		return r.reply(ctx, req.ChatID, plain("Nothing to cancel."))
	}
	return r.reply(ctx, req.ChatID, plain("Cancelled."))
}

func (r *Router) startWorkflow(ctx context.Context, req request, sr workflow.StartRequest) error {
	r.clearPending(req.ConversationID)

	sr.ConversationID = req.ConversationID
	sr.UserID = req.UserID
	res, err := r.engine.Start(ctx, sr)
	return r.replyStep(ctx, req, res, err)
}

func (r *Router) cmdCreateTask(ctx context.Context, req request, args string) error {
	sr := workflow.StartRequest{Kind: domainwf.KindTaskCreate}
	if args == "" {
		return r.startWorkflow(ctx, req, sr)
	}

	assignee, err := r.users.GetByOpenID(ctx, args)
	if err != nil {
		return fmt.Errorf("resolve assignee: %w", err)
	}
	if assignee == nil || assignee.IsDeleted || assignee.IsBanned {
		return r.reply(ctx, req.ChatID, plain(fmt.Sprintf("No active user with id %s.", args)))
	}

	sr.Seed = domainwf.Fields{domainwf.FieldAssignee: domainwf.IDValue(assignee.ID)}
	return r.startWorkflow(ctx, req, sr)
}

func (r *Router) cmdReport(ctx context.Context, req request, args string) error {
	now := r.records.Now()
	year, month := now.Year(), now.Month()
	if args != "" {
		t, err := time.Parse(monthLayout, args)
		if err != nil {
			return r.reply(ctx, req.ChatID, plain("Use /report YYYY-MM, for example /report 2024-01."))
		}
		year, month = t.Year(), t.Month()
	}
	return r.showReport(ctx, req, year, month, false)
}

func (r *Router) showTracker(ctx context.Context, req request, inPlace bool) error {
	if !isStaff(req.user) {
		return r.reply(ctx, req.ChatID, plain("Statistics are available to management only."))
	}

	s, err := r.records.Stats(ctx)
	if err != nil {
		_ = r.reply(ctx, req.ChatID, plain(genericFailure))
		return err
	}
	managers, err := r.users.ListByRole(ctx, entity.RoleManagement)
	if err != nil {
		_ = r.reply(ctx, req.ChatID, plain(genericFailure))
		return err
	}
	return r.show(ctx, req, r.format.tracker(s, managers, r.records.Now()), inPlace)
}

// show helpers are shared by commands (new message) and callbacks (edit in place)

func (r *Router) show(ctx context.Context, req request, msg port.OutgoingMessage, inPlace bool) error {
	if inPlace {
		return r.replace(ctx, req, msg)
	}
	return r.reply(ctx, req.ChatID, msg)
}

func (r *Router) showDay(ctx context.Context, req request, day time.Time, inPlace bool) error {
	events, err := r.records.EventsOnDay(ctx, day)
	if err != nil {
		_ = r.reply(ctx, req.ChatID, plain(genericFailure))
		return err
	}
	return r.show(ctx, req, r.format.eventDay(day, events), inPlace)
}

func (r *Router) showWeek(ctx context.Context, req request, day time.Time, inPlace bool) error {
	events, err := r.records.EventsInWeek(ctx, day)
	if err != nil {
		_ = r.reply(ctx, req.ChatID, plain(genericFailure))
		return err
	}
	return r.show(ctx, req, r.format.eventWeek(day, events), inPlace)
}

// showTasks lists the tasks of ownerID, or of the viewer when ownerID is zero.
// Only staff may open someone else's list.
func (r *Router) showTasks(ctx context.Context, req request, ownerID int64, page int, done, inPlace bool) error {
	var owner *entity.User
	if ownerID != 0 && ownerID != req.user.ID {
		if !isStaff(req.user) {
			return r.reply(ctx, req.ChatID, plain("Only management can view other users' tasks."))
		}
		u, err := r.users.GetByID(ctx, ownerID)
		if err != nil {
			return fmt.Errorf("get task owner: %w", err)
		}
		if u == nil {
			return r.reply(ctx, req.ChatID, plain("The user no longer exists."))
		}
		owner = u
	} else {
		ownerID = req.user.ID
	}

	list := r.records.ActiveTasks
	if done {
		list = r.records.CompletedTasks
	}
	p, err := list(ctx, ownerID, page, r.pageSize)
	if err != nil {
		_ = r.reply(ctx, req.ChatID, plain(genericFailure))
		return err
	}
	return r.show(ctx, req, r.format.taskPage(owner, p, done, r.records.Now()), inPlace)
}

func (r *Router) showReport(ctx context.Context, req request, year int, month time.Month, inPlace bool) error {
	report, err := r.reports.Monthly(ctx, req.user.ID, year, month)
	if err != nil {
		_ = r.reply(ctx, req.ChatID, plain(genericFailure))
		return err
	}

	prev := time.Date(year, month-1, 1, 0, 0, 0, 0, time.UTC)
	next := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	msg := port.OutgoingMessage{
		Text: r.reports.RenderText(report),
		Buttons: [][]port.Button{{
			button("< "+prev.Month().String(), reportCallback(prev.Year(), prev.Month())),
			button(next.Month().String()+" >", reportCallback(next.Year(), next.Month())),
		}},
	}
	return r.show(ctx, req, msg, inPlace)
}
