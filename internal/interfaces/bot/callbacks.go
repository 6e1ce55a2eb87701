package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/campus-assistant/internal/application/access"
	"github.com/garyjia/campus-assistant/internal/application/port"
	"github.com/garyjia/campus-assistant/internal/application/workflow"
	"github.com/garyjia/campus-assistant/internal/domain/entity"
	domainwf "github.com/garyjia/campus-assistant/internal/domain/workflow"
)

func (r *Router) handleCallback(ctx context.Context, req request) error {
	cb := req.cb
	switch cb.Action {
	case CbNoop:
		return nil
	case CbRegister:
		return r.register(ctx, req)
	}

	if req.user == nil {
		return r.reply(ctx, req.ChatID, plain(access.NoticeUnknown))
	}

	switch cb.Action {
	case CbWorkflow:
		return r.advance(ctx, req, workflow.Input{Action: workflow.Action(cb.Arg), MessageID: req.MessageID})
	case CbSuggestion:
		return r.advance(ctx, req, workflow.Input{Text: cb.Arg, MessageID: req.MessageID})
	case CbRewind:
		res, err := r.engine.RewindToEdit(ctx, req.ConversationID, domainwf.Step(cb.Arg))
		return r.replyStep(ctx, req, res, err)

	case CbEventDay, CbEventWeek, CbEventInfo:
		day, err := cb.Day(r.records.Now().Location())
		if err != nil {
			return fmt.Errorf("decode day: %w", err)
		}
		switch cb.Action {
		case CbEventDay:
			return r.showDay(ctx, req, day, true)
		case CbEventWeek:
			return r.showWeek(ctx, req, day, true)
		}
		return r.showEventInfo(ctx, req, day, cb.Page)

	case CbEventEdit:
		return r.editEvent(ctx, req, cb.ID)
	case CbEventDelete:
		return r.deleteEvent(ctx, req, cb.ID, cb.Confirm)

	case CbTaskList:
		return r.showTasks(ctx, req, cb.ID, cb.Page, cb.Done, true)
	case CbTaskTracker:
		return r.showTracker(ctx, req, true)
	case CbTaskInfo:
		return r.showTaskInfo(ctx, req, cb.ID)
	case CbTaskEdit:
		return r.editTask(ctx, req, cb.ID)
	case CbTaskDelete:
		return r.deleteTask(ctx, req, cb.ID, cb.Confirm)
	case CbTaskComplete:
		return r.completeTask(ctx, req, cb.ID)

	case CbMonthlyReport:
		t, err := time.Parse(monthLayout, cb.Arg)
		if err != nil {
			return fmt.Errorf("decode month: %w", err)
		}
		return r.showReport(ctx, req, t.Year(), t.Month(), true)
	}

	return fmt.Errorf("%w: %q", ErrUnknownCallback, cb.Action)
}

func (r *Router) showEventInfo(ctx context.Context, req request, day time.Time, index int) error {
	events, err := r.records.EventsOnDay(ctx, day)
	if err != nil {
		_ = r.reply(ctx, req.ChatID, plain(genericFailure))
		return err
	}
	if len(events) == 0 {
		return r.replace(ctx, req, r.format.eventDay(day, events))
	}
	if index >= len(events) {
		index = len(events) - 1
	}
	ev := events[index]
	return r.replace(ctx, req, r.format.eventInfo(day, events, index, canModify(req.user, ev.CreatedBy)))
}

func (r *Router) editEvent(ctx context.Context, req request, id int64) error {
	ev, err := r.records.GetEvent(ctx, id)
	if err != nil {
		return fmt.Errorf("get event: %w", err)
	}
	if ev == nil {
		return r.reply(ctx, req.ChatID, plain("The event no longer exists."))
	}
	if !canModify(req.user, ev.CreatedBy) {
		return r.reply(ctx, req.ChatID, plain("You can only edit your own events."))
	}

	seed := domainwf.Fields{
		domainwf.FieldTitle:       domainwf.TextValue(ev.Title),
		domainwf.FieldDescription: domainwf.TextValue(ev.Description),
		domainwf.FieldStartAt:     domainwf.TimeValue(ev.StartAt),
		domainwf.FieldEndAt:       domainwf.TimeValue(ev.EndAt),
	}
	if ev.ImageKey != "" {
		seed[domainwf.FieldImage] = domainwf.AttachmentValue(ev.ImageKey)
	}
	return r.startWorkflow(ctx, req, workflow.StartRequest{
		Kind:            domainwf.KindEventCreate,
		Seed:            seed,
		EditingTargetID: ev.ID,
		EntryStep:       domainwf.StepPreview,
	})
}

func (r *Router) deleteEvent(ctx context.Context, req request, id int64, confirmed bool) error {
	ev, err := r.records.GetEvent(ctx, id)
	if err != nil {
		return fmt.Errorf("get event: %w", err)
	}
	if ev == nil {
		return r.reply(ctx, req.ChatID, plain("The event was already deleted."))
	}
	if !canModify(req.user, ev.CreatedBy) {
		return r.reply(ctx, req.ChatID, plain("You can only delete your own events."))
	}
	if !confirmed {
		return r.reply(ctx, req.ChatID, confirmDeletion("event", ev.Title, confirmCallback(CbEventDelete, id)))
	}

	if _, err := r.records.DeleteEvent(ctx, id, req.user.ID); err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return r.replace(ctx, req, plain("The event was already deleted."))
		}
		_ = r.reply(ctx, req.ChatID, plain(genericFailure))
		return err
	}
	return r.replace(ctx, req, plain(fmt.Sprintf("Event deleted: %s", ev.Title)))
}

func (r *Router) loadTask(ctx context.Context, req request, id int64) (*entity.Task, error) {
	task, err := r.records.GetTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if task == nil {
		return nil, r.reply(ctx, req.ChatID, plain("The task no longer exists."))
	}
	return task, nil
}

func (r *Router) showTaskInfo(ctx context.Context, req request, id int64) error {
	task, err := r.loadTask(ctx, req, id)
	if task == nil {
		return err
	}
	if !canComplete(req.user, task) {
		return r.reply(ctx, req.ChatID, plain("This task is not assigned to you."))
	}
	var listOwner int64
	if task.CreatedFor != req.user.ID && isStaff(req.user) {
		listOwner = task.CreatedFor
	}
	msg := r.format.taskInfo(task, listOwner, r.records.Now(), canComplete(req.user, task), canModify(req.user, task.CreatedBy))
	return r.reply(ctx, req.ChatID, msg)
}

func (r *Router) editTask(ctx context.Context, req request, id int64) error {
	task, err := r.loadTask(ctx, req, id)
	if task == nil {
		return err
	}
	if !canModify(req.user, task.CreatedBy) {
		return r.reply(ctx, req.ChatID, plain("You can only edit tasks you created."))
	}
	if task.IsCompleted {
		return r.reply(ctx, req.ChatID, plain("Completed tasks cannot be edited."))
	}

	return r.startWorkflow(ctx, req, workflow.StartRequest{
		Kind: domainwf.KindTaskCreate,
		Seed: domainwf.Fields{
			domainwf.FieldTitle:       domainwf.TextValue(task.Title),
			domainwf.FieldDescription: domainwf.TextValue(task.Description),
			domainwf.FieldEndAt:       domainwf.TimeValue(task.EndAt),
			domainwf.FieldAssignee:    domainwf.IDValue(task.CreatedFor),
		},
		EditingTargetID: task.ID,
		EntryStep:       domainwf.StepPreview,
	})
}

func (r *Router) deleteTask(ctx context.Context, req request, id int64, confirmed bool) error {
	task, err := r.loadTask(ctx, req, id)
	if task == nil {
		return err
	}
	if !canModify(req.user, task.CreatedBy) {
		return r.reply(ctx, req.ChatID, plain("You can only delete tasks you created."))
	}
	if !confirmed {
		return r.reply(ctx, req.ChatID, confirmDeletion("task", task.Title, confirmCallback(CbTaskDelete, id)))
	}

	if _, err := r.records.DeleteTask(ctx, id, req.user.ID); err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return r.replace(ctx, req, plain("The task was already deleted."))
		}
		_ = r.reply(ctx, req.ChatID, plain(genericFailure))
		return err
	}
	return r.replace(ctx, req, plain(fmt.Sprintf("Task deleted: %s", task.Title)))
}

// completeTask runs the first completion phase and waits for the note in the next message
func (r *Router) completeTask(ctx context.Context, req request, id int64) error {
	task, err := r.loadTask(ctx, req, id)
	if task == nil {
		return err
	}
	if !canComplete(req.user, task) {
		return r.reply(ctx, req.ChatID, plain("This task is not assigned to you."))
	}

	if _, err := r.records.CompleteTask(ctx, id); err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return r.reply(ctx, req.ChatID, plain("The task is already completed or deleted."))
		}
		_ = r.reply(ctx, req.ChatID, plain(genericFailure))
		return err
	}

	// A completion note supersedes any running workflow
	if err := r.engine.Cancel(ctx, req.ConversationID); err != nil {
		r.logger.Warn("Failed to cancel workflow before completion note", zap.Error(err))
	}
	r.setPending(req.ConversationID, id)
	return r.reply(ctx, req.ChatID, plain(fmt.Sprintf("Task completed: %s\n\nDescribe what was done.", task.Title)))
}
