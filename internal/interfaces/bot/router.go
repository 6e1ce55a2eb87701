// Package bot routes chat updates to the workflow engine and the record services.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/campus-assistant/internal/application/access"
	"github.com/garyjia/campus-assistant/internal/application/lifecycle"
	"github.com/garyjia/campus-assistant/internal/application/port"
	"github.com/garyjia/campus-assistant/internal/application/service"
	"github.com/garyjia/campus-assistant/internal/application/workflow"
	"github.com/garyjia/campus-assistant/internal/domain/entity"
	"github.com/garyjia/campus-assistant/pkg/utils"
)

const defaultPageSize = 5

// Update is one inbound chat event normalized by the transport adapter
type Update struct {
	// ConversationID keys the workflow session and the processing queue
	ConversationID string

	// ChatID is where replies go
	ChatID string

	// UserID is the sender's open id
	UserID string

	// MessageID is the inbound message, or the card carrying the pressed button
	MessageID string

	Text  string
	Media []string

	// Callback is the raw button payload; empty for messages
	Callback string
}

// IsCallback reports whether the update is a button press
func (u Update) IsCallback() bool {
	return u.Callback != ""
}

// AccessChecker decides whether an update may proceed
type AccessChecker interface {
	Check(ctx context.Context, req access.Request) (access.Result, error)
}

// Records is the part of the lifecycle service the router uses
type Records interface {
	Now() time.Time
	EventsOnDay(ctx context.Context, day time.Time) ([]*entity.Event, error)
	EventsInWeek(ctx context.Context, day time.Time) ([]*entity.Event, error)
	GetEvent(ctx context.Context, id int64) (*entity.Event, error)
	GetTask(ctx context.Context, id int64) (*entity.Task, error)
	DeleteEvent(ctx context.Context, id, actorID int64) (*entity.Event, error)
	DeleteTask(ctx context.Context, id, actorID int64) (*entity.Task, error)
	CompleteTask(ctx context.Context, id int64) (*entity.Task, error)
	DescribeCompletion(ctx context.Context, id int64, text string) (*entity.Task, error)
	ActiveTasks(ctx context.Context, assigneeID int64, page, pageSize int) (lifecycle.Page[*entity.Task], error)
	CompletedTasks(ctx context.Context, assigneeID int64, page, pageSize int) (lifecycle.Page[*entity.Task], error)
	Stats(ctx context.Context) (*entity.TaskStats, error)
}

// UpdateObserver counts handled updates
type UpdateObserver interface {
	UpdateHandled(updateType, status string)
}

// Router handles updates. Updates of one conversation must not be handled
// concurrently; Submit serializes them through a ConversationQueue.
type Router struct {
	gate      AccessChecker
	engine    workflow.WorkflowEngine
	records   Records
	reports   service.ReportService
	users     port.UserRepository
	messenger port.Messenger
	format    formatter
	observer  UpdateObserver
	queue     *ConversationQueue
	pageSize  int
	logger    *zap.Logger

	mu sync.Mutex
	// pendingCompletion maps a conversation to the task awaiting its completion note
	pendingCompletion map[string]int64
}

// Option configures the Router
type Option func(*Router)

// WithPageSize sets the number of tasks per list page
func WithPageSize(n int) Option {
	return func(r *Router) {
		if n > 0 {
			r.pageSize = n
		}
	}
}

// WithUpdateObserver attaches an update counter
func WithUpdateObserver(o UpdateObserver) Option {
	return func(r *Router) { r.observer = o }
}

// NewRouter creates a router
func NewRouter(
	gate AccessChecker,
	engine workflow.WorkflowEngine,
	records Records,
	reports service.ReportService,
	users port.UserRepository,
	messenger port.Messenger,
	parser port.DateParser,
	logger *zap.Logger,
	opts ...Option,
) *Router {
	r := &Router{
		gate:              gate,
		engine:            engine,
		records:           records,
		reports:           reports,
		users:             users,
		messenger:         messenger,
		format:            formatter{parser: parser},
		queue:             NewConversationQueue(),
		pageSize:          defaultPageSize,
		logger:            logger,
		pendingCompletion: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit queues the update behind earlier updates of the same conversation
func (r *Router) Submit(ctx context.Context, u Update) {
	ok := r.queue.Submit(u.ConversationID, func() {
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("Update handler panic recovered",
					zap.String("conversation_id", u.ConversationID),
					zap.Any("panic", p))
			}
		}()
		if err := r.Handle(ctx, u); err != nil {
			r.logger.Error("Failed to handle update",
				zap.String("conversation_id", u.ConversationID),
				zap.Error(err))
		}
	})
	if !ok {
		r.logger.Warn("Router closed, update dropped", zap.String("conversation_id", u.ConversationID))
	}
}

// Close stops accepting updates and waits for queued ones
func (r *Router) Close() {
	r.queue.Close()
}

// request is an update after gate and decoding
type request struct {
	Update
	user *entity.User
	cb   Callback
}

// Handle processes one update synchronously
func (r *Router) Handle(ctx context.Context, u Update) error {
	u.Text = utils.SanitizeText(u.Text)
	req := request{Update: u}
	gateReq := access.Request{UserID: u.UserID, Kind: access.InputMessage}

	updateType := string(access.InputMessage)
	command, args, isCommand := utils.ParseCommand(u.Text)

	switch {
	case u.IsCallback():
		updateType = string(access.InputCallback)
		cb, err := DecodeCallback(u.Callback)
		if err != nil {
			r.logger.Warn("Rejected callback", zap.String("payload", u.Callback), zap.Error(err))
			r.observe(updateType, "rejected")
			return r.reply(ctx, u.ChatID, plain("This button is no longer valid."))
		}
		req.cb = cb
		gateReq.Kind = access.InputCallback
		gateReq.Payload = string(cb.Action)

	case isCommand:
		updateType = string(access.InputCommand)
		gateReq.Kind = access.InputCommand
		gateReq.Payload = command
	}

	verdict, err := r.gate.Check(ctx, gateReq)
	if err != nil {
		r.observe(updateType, "error")
		return fmt.Errorf("access check: %w", err)
	}
	if !verdict.Allowed() {
		r.observe(updateType, "denied")
		return r.reply(ctx, u.ChatID, plain(verdict.Notice))
	}
	req.user = verdict.User

	switch {
	case u.IsCallback():
		err = r.handleCallback(ctx, req)
	case isCommand:
		err = r.handleCommand(ctx, req, command, args)
	default:
		err = r.handleMessage(ctx, req)
	}

	if err != nil {
		r.observe(updateType, "error")
		return err
	}
	r.observe(updateType, "ok")
	return nil
}

// handleMessage feeds plain input to the pending completion note or the active workflow
func (r *Router) handleMessage(ctx context.Context, req request) error {
	if taskID, ok := r.pending(req.ConversationID); ok {
		return r.describeCompletion(ctx, req, taskID)
	}

	in := workflow.Input{Text: req.Text, Media: req.Media, MessageID: req.MessageID}
	return r.advance(ctx, req, in)
}

func (r *Router) advance(ctx context.Context, req request, in workflow.Input) error {
	res, err := r.engine.Advance(ctx, req.ConversationID, in)
	return r.replyStep(ctx, req, res, err)
}

func (r *Router) replyStep(ctx context.Context, req request, res *workflow.StepResult, err error) error {
	switch {
	case errors.Is(err, workflow.ErrNoActiveWorkflow):
		return r.reply(ctx, req.ChatID, plain(noActiveWorkflow))
	case errors.Is(err, workflow.ErrNotAtPreview), errors.Is(err, workflow.ErrStepNotEditable):
		return r.reply(ctx, req.ChatID, plain("That field cannot be edited right now."))
	case err != nil:
		_ = r.reply(ctx, req.ChatID, plain(genericFailure))
		return err
	}

	if res.Outcome == workflow.OutcomeCommitFailed {
		r.logger.Warn("Workflow commit failed",
			zap.String("conversation_id", req.ConversationID),
			zap.Error(res.Err))
	}
	return r.reply(ctx, req.ChatID, renderStep(res))
}

func (r *Router) describeCompletion(ctx context.Context, req request, taskID int64) error {
	_, err := r.records.DescribeCompletion(ctx, taskID, req.Text)
	switch {
	case errors.Is(err, lifecycle.ErrEmptyCompletion):
		return r.reply(ctx, req.ChatID, plain("Describe what was done, or send /cancel to skip."))
	case err != nil:
		r.clearPending(req.ConversationID)
		r.logger.Error("Failed to save completion note", zap.Int64("task_id", taskID), zap.Error(err))
		return r.reply(ctx, req.ChatID, plain("Could not save the note. The task stays completed."))
	}

	r.clearPending(req.ConversationID)
	return r.reply(ctx, req.ChatID, plain("Completion note saved."))
}

func (r *Router) reply(ctx context.Context, chatID string, msg port.OutgoingMessage) error {
	if msg.Text == "" && msg.ImageKey == "" {
		return nil
	}
	if _, err := r.messenger.Send(ctx, chatID, msg); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

// replace edits the card the button was pressed on, sending a new message when that fails
func (r *Router) replace(ctx context.Context, req request, msg port.OutgoingMessage) error {
	if req.MessageID != "" {
		err := r.messenger.Edit(ctx, req.MessageID, msg)
		if err == nil {
			return nil
		}
		r.logger.Debug("Card edit failed, sending a new message", zap.String("message_id", req.MessageID), zap.Error(err))
	}
	return r.reply(ctx, req.ChatID, msg)
}

func (r *Router) pending(conversationID string) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.pendingCompletion[conversationID]
	return id, ok
}

func (r *Router) setPending(conversationID string, taskID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingCompletion[conversationID] = taskID
}

func (r *Router) clearPending(conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pendingCompletion[conversationID]
	delete(r.pendingCompletion, conversationID)
	return ok
}

func (r *Router) observe(updateType, status string) {
	if r.observer != nil {
		r.observer.UpdateHandled(updateType, status)
	}
}

func isStaff(user *entity.User) bool {
	return user != nil && (user.Role == entity.RoleManagement || user.Role == entity.RoleAdmin)
}

func canModify(user *entity.User, createdBy int64) bool {
	return user != nil && (user.ID == createdBy || isStaff(user))
}

func canComplete(user *entity.User, t *entity.Task) bool {
	return user != nil && (user.ID == t.CreatedFor || canModify(user, t.CreatedBy))
}
