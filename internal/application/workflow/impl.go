package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/campus-assistant/internal/application/dispatcher"
	"github.com/garyjia/campus-assistant/internal/application/port"
	"github.com/garyjia/campus-assistant/internal/domain/event"
	domainwf "github.com/garyjia/campus-assistant/internal/domain/workflow"
)

// Observer receives engine outcomes, typically for metrics
type Observer interface {
	StepObserved(kind domainwf.Kind, outcome Outcome)
	CommitObserved(kind domainwf.Kind, ok bool)
}

// engineImpl is the concrete implementation of WorkflowEngine.
// Callers serialize input per conversation; the session is read-modify-written without locking.
type engineImpl struct {
	sessions   port.SessionStore
	parser     port.DateParser
	schemas    map[domainwf.Kind]*Schema
	committers map[domainwf.Kind]Committer
	dispatcher dispatcher.Dispatcher
	observer   Observer
	clock      func() time.Time
	logger     *zap.Logger
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting domain events after commit
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithClock overrides the time source
func WithClock(clock func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.clock = clock
	}
}

// WithObserver sets an outcome observer
func WithObserver(o Observer) EngineOption {
	return func(e *engineImpl) {
		e.observer = o
	}
}

// WithCommitter registers the committer for a workflow kind
func WithCommitter(kind domainwf.Kind, c Committer) EngineOption {
	return func(e *engineImpl) {
		e.committers[kind] = c
	}
}

// WithSchemas replaces the default schemas
func WithSchemas(schemas ...*Schema) EngineOption {
	return func(e *engineImpl) {
		e.schemas = make(map[domainwf.Kind]*Schema, len(schemas))
		for _, s := range schemas {
			e.schemas[s.Kind] = s
		}
	}
}

// NewEngine creates a new workflow engine with the default schemas
func NewEngine(sessions port.SessionStore, parser port.DateParser, logger *zap.Logger, opts ...EngineOption) WorkflowEngine {
	e := &engineImpl{
		sessions:   sessions,
		parser:     parser,
		schemas:    make(map[domainwf.Kind]*Schema),
		committers: make(map[domainwf.Kind]Committer),
		clock:      time.Now,
		logger:     logger,
	}
	for _, s := range DefaultSchemas() {
		e.schemas[s.Kind] = s
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *engineImpl) now() time.Time {
	return e.clock().In(e.parser.Location())
}

func (e *engineImpl) format(t time.Time) string {
	return e.parser.Format(t, port.DisplayLayout)
}

// Start implements WorkflowEngine
func (e *engineImpl) Start(ctx context.Context, req StartRequest) (*StepResult, error) {
	schema, ok := e.schemas[req.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWorkflow, req.Kind)
	}

	entry := req.EntryStep
	if entry == "" {
		entry = schema.First()
	}
	if entry != domainwf.StepPreview {
		if _, _, ok := schema.Spec(entry); !ok {
			return nil, fmt.Errorf("%w: %s has no step %s", ErrStepNotEditable, req.Kind, entry)
		}
	}

	sess := domainwf.NewSession(req.ConversationID, req.UserID, req.Kind, entry, e.now())
	sess.Fields.Merge(req.Seed)
	sess.EditingTargetID = req.EditingTargetID
	sess.Resume = req.EntryStep != "" && entry != schema.First() && entry != domainwf.StepPreview

	if err := e.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	e.logger.Debug("Workflow started",
		zap.String("conversation_id", sess.ConversationID),
		zap.String("kind", sess.Kind.String()),
		zap.String("step", sess.Step.String()),
		zap.Int64("editing_target_id", sess.EditingTargetID))

	return e.present(schema, sess), nil
}

// Advance implements WorkflowEngine
func (e *engineImpl) Advance(ctx context.Context, conversationID string, in Input) (*StepResult, error) {
	stored, err := e.sessions.Get(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if stored == nil {
		return nil, ErrNoActiveWorkflow
	}

	schema, ok := e.schemas[stored.Kind]
	if !ok {
		_ = e.sessions.Delete(ctx, conversationID)
		return nil, fmt.Errorf("%w: %s", ErrUnknownWorkflow, stored.Kind)
	}

	if in.Action == ActionCancel {
		return e.cancel(ctx, stored)
	}

	var result *StepResult
	switch stored.Step {
	case domainwf.StepPreview:
		result, err = e.advancePreview(ctx, schema, stored, in)
	case domainwf.StepPhoto:
		result, err = e.advancePhoto(ctx, schema, stored, in)
	default:
		result, err = e.advanceField(ctx, schema, stored, in)
	}
	if err != nil {
		return nil, err
	}

	e.observeStep(stored.Kind, result.Outcome)
	return result, nil
}

// advanceField validates a chain step. The stored session is only replaced on success.
func (e *engineImpl) advanceField(ctx context.Context, schema *Schema, stored *domainwf.Session, in Input) (*StepResult, error) {
	spec, idx, ok := schema.Spec(stored.Step)
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", domainwf.ErrInvalidStep, stored.Step, stored.Kind)
	}
	if in.Action != "" {
		return e.retry(schema, stored, "Answer the question above, or cancel."), nil
	}

	now := e.now()
	values, err := spec.Validate(ValidationContext{Now: now, Fields: stored.Fields, Parser: e.parser}, in)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return e.retry(schema, stored, verr.Message), nil
		}
		return nil, err
	}

	sess := stored.Clone()
	sess.Fields.Merge(values)

	machine := schema.Machine(sess.Step)
	fireCtx, trigger := ctx, domainwf.TriggerSubmit
	if sess.Resume {
		trigger = domainwf.TriggerResume
		fireCtx = withTarget(ctx, schema.resumeTarget(sess.Fields, idx, now))
	}
	if err := machine.Fire(fireCtx, trigger); err != nil {
		return nil, fmt.Errorf("failed to advance from %s: %w", sess.Step, err)
	}

	sess.Step = machine.Step()
	if sess.Step == domainwf.StepPreview {
		sess.Resume = false
	}
	return e.persist(ctx, schema, sess)
}

func (e *engineImpl) advancePhoto(ctx context.Context, schema *Schema, stored *domainwf.Session, in Input) (*StepResult, error) {
	if in.Action != "" {
		return e.retry(schema, stored, "Send a photo, or cancel."), nil
	}

	values, err := validatePhoto(ValidationContext{Now: e.now(), Fields: stored.Fields, Parser: e.parser}, in)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return e.retry(schema, stored, verr.Message), nil
		}
		return nil, err
	}

	sess := stored.Clone()
	sess.Fields.Merge(values)

	machine := schema.Machine(sess.Step)
	if err := machine.Fire(ctx, domainwf.TriggerSubmit); err != nil {
		return nil, fmt.Errorf("failed to leave photo step: %w", err)
	}
	sess.Step = machine.Step()
	return e.persist(ctx, schema, sess)
}

func (e *engineImpl) advancePreview(ctx context.Context, schema *Schema, stored *domainwf.Session, in Input) (*StepResult, error) {
	machine := schema.Machine(domainwf.StepPreview)
	sess := stored.Clone()

	switch in.Action {
	case ActionConfirm:
		if err := machine.Fire(ctx, domainwf.TriggerConfirm); err != nil {
			return nil, fmt.Errorf("failed to confirm: %w", err)
		}
		return e.commit(ctx, sess), nil

	case ActionEdit:
		if err := machine.Fire(ctx, domainwf.TriggerEdit); err != nil {
			return nil, fmt.Errorf("failed to edit: %w", err)
		}
		sess.Step = machine.Step()
		sess.Resume = false
		return e.persist(ctx, schema, sess)

	case ActionAttachPhoto:
		if !machine.CanFire(domainwf.TriggerAttachPhoto) {
			return e.retry(schema, stored, "Photos cannot be attached here."), nil
		}
		if err := machine.Fire(ctx, domainwf.TriggerAttachPhoto); err != nil {
			return nil, fmt.Errorf("failed to attach photo: %w", err)
		}
		sess.Step = machine.Step()
		return e.persist(ctx, schema, sess)
	}

	return e.retry(schema, stored, "Use the buttons below the preview."), nil
}

// commit clears the session first so a failed commit never leaves a half-confirmed workflow behind
func (e *engineImpl) commit(ctx context.Context, sess *domainwf.Session) *StepResult {
	if err := e.sessions.Delete(ctx, sess.ConversationID); err != nil {
		e.logger.Warn("Failed to clear session before commit",
			zap.String("conversation_id", sess.ConversationID),
			zap.Error(err))
	}

	rec, err := e.runCommitter(ctx, sess)
	if err != nil {
		e.logger.Error("Workflow commit failed",
			zap.String("conversation_id", sess.ConversationID),
			zap.String("kind", sess.Kind.String()),
			zap.Int64("editing_target_id", sess.EditingTargetID),
			zap.Error(err))
		e.observeCommit(sess.Kind, false)
		return &StepResult{
			Outcome: OutcomeCommitFailed,
			Step:    domainwf.StepCancelled,
			Message: "Something went wrong and nothing was saved. Please start again.",
			Err:     fmt.Errorf("%w: %v", ErrCommitFailed, err),
		}
	}

	e.observeCommit(sess.Kind, true)
	e.publish(ctx, sess, rec)

	e.logger.Info("Workflow committed",
		zap.String("conversation_id", sess.ConversationID),
		zap.String("kind", sess.Kind.String()),
		zap.Bool("updated", rec.Updated))

	return &StepResult{
		Outcome: OutcomeCommitted,
		Step:    domainwf.StepCommitted,
		Message: rec.Message,
		Record:  rec,
	}
}

func (e *engineImpl) runCommitter(ctx context.Context, sess *domainwf.Session) (*Record, error) {
	committer, ok := e.committers[sess.Kind]
	if !ok {
		return nil, fmt.Errorf("no committer for %s", sess.Kind)
	}
	return committer.Commit(ctx, sess)
}

func (e *engineImpl) publish(ctx context.Context, sess *domainwf.Session, rec *Record) {
	if e.dispatcher == nil {
		return
	}

	var evt *event.Event
	switch {
	case rec.Event != nil:
		typ := event.TypeEventCreated
		if rec.Updated {
			typ = event.TypeEventUpdated
		}
		evt = event.NewEvent(typ, rec.Event.ID, map[string]interface{}{
			event.KeyTitle:     rec.Event.Title,
			event.KeyCreatorID: rec.Event.CreatedBy,
		})
	case rec.Task != nil:
		typ := event.TypeTaskCreated
		if rec.Updated {
			typ = event.TypeTaskUpdated
		}
		evt = event.NewEvent(typ, rec.Task.ID, map[string]interface{}{
			event.KeyTitle:      rec.Task.Title,
			event.KeyCreatorID:  rec.Task.CreatedBy,
			event.KeyAssigneeID: rec.Task.CreatedFor,
		})
	case rec.Report != nil:
		evt = event.NewEvent(event.TypeAnnouncementSent, 0, map[string]interface{}{
			event.KeyTotal:   rec.Report.Total,
			event.KeySuccess: rec.Report.Success,
			event.KeyFailed:  rec.Report.Failed,
		})
	default:
		return
	}

	e.dispatcher.DispatchAsync(context.WithoutCancel(ctx), evt.FromConversation(sess.ConversationID))
}

func (e *engineImpl) cancel(ctx context.Context, sess *domainwf.Session) (*StepResult, error) {
	if err := e.sessions.Delete(ctx, sess.ConversationID); err != nil {
		return nil, fmt.Errorf("failed to delete session: %w", err)
	}
	e.observeStep(sess.Kind, OutcomeCancelled)
	return &StepResult{
		Outcome: OutcomeCancelled,
		Step:    domainwf.StepCancelled,
		Message: "Cancelled.",
	}, nil
}

// Cancel implements WorkflowEngine
func (e *engineImpl) Cancel(ctx context.Context, conversationID string) error {
	if err := e.sessions.Delete(ctx, conversationID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// RewindToEdit implements WorkflowEngine
func (e *engineImpl) RewindToEdit(ctx context.Context, conversationID string, step domainwf.Step) (*StepResult, error) {
	stored, err := e.sessions.Get(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if stored == nil {
		return nil, ErrNoActiveWorkflow
	}
	if stored.Step != domainwf.StepPreview {
		return nil, ErrNotAtPreview
	}

	schema, ok := e.schemas[stored.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWorkflow, stored.Kind)
	}

	machine := schema.Machine(domainwf.StepPreview)
	if err := machine.Fire(withTarget(ctx, step), domainwf.TriggerRewind); err != nil {
		if errors.Is(err, domainwf.ErrGuardFailed) {
			return nil, fmt.Errorf("%w: %s", ErrStepNotEditable, step)
		}
		return nil, fmt.Errorf("failed to rewind: %w", err)
	}

	sess := stored.Clone()
	sess.Step = machine.Step()
	sess.Resume = true

	result, err := e.persist(ctx, schema, sess)
	if err != nil {
		return nil, err
	}
	e.observeStep(sess.Kind, result.Outcome)
	return result, nil
}

// Active implements WorkflowEngine
func (e *engineImpl) Active(ctx context.Context, conversationID string) (*domainwf.Session, error) {
	sess, err := e.sessions.Get(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return sess, nil
}

func (e *engineImpl) persist(ctx context.Context, schema *Schema, sess *domainwf.Session) (*StepResult, error) {
	sess.UpdatedAt = e.now()
	if err := e.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return e.present(schema, sess), nil
}

// present builds the result for a session that awaits input
func (e *engineImpl) present(schema *Schema, sess *domainwf.Session) *StepResult {
	prompt := e.prompt(schema, sess)
	if sess.Step == domainwf.StepPreview {
		return &StepResult{
			Outcome: OutcomeReadyForPreview,
			Step:    sess.Step,
			Message: prompt.Text,
			Prompt:  prompt,
		}
	}
	return &StepResult{
		Outcome: OutcomeAdvance,
		Step:    sess.Step,
		Prompt:  prompt,
	}
}

func (e *engineImpl) retry(schema *Schema, sess *domainwf.Session, msg string) *StepResult {
	return &StepResult{
		Outcome: OutcomeRetry,
		Step:    sess.Step,
		Message: msg,
		Prompt:  e.prompt(schema, sess),
	}
}

func (e *engineImpl) prompt(schema *Schema, sess *domainwf.Session) *Prompt {
	switch sess.Step {
	case domainwf.StepPreview:
		actions := []Action{ActionConfirm, ActionEdit}
		if schema.AllowPhoto {
			actions = append(actions, ActionAttachPhoto)
		}
		actions = append(actions, ActionCancel)
		image, _ := sess.Fields.Text(domainwf.FieldImage)
		return &Prompt{
			Text:     schema.Preview(sess, e.format),
			Actions:  actions,
			Rewind:   schema.RewindOptions(),
			ImageKey: image,
		}

	case domainwf.StepPhoto:
		return &Prompt{
			Text:    "Send a photo for the event.",
			Actions: []Action{ActionCancel},
		}
	}

	spec, _, ok := schema.Spec(sess.Step)
	if !ok {
		return &Prompt{Text: "This step is not available any more. Please cancel and start again."}
	}
	p := spec.Prompt(PromptContext{Now: e.now(), Session: sess, Format: e.format})
	return &p
}

func (e *engineImpl) observeStep(kind domainwf.Kind, outcome Outcome) {
	if e.observer != nil {
		e.observer.StepObserved(kind, outcome)
	}
}

func (e *engineImpl) observeCommit(kind domainwf.Kind, ok bool) {
	if e.observer != nil {
		e.observer.CommitObserved(kind, ok)
	}
}

var _ WorkflowEngine = (*engineImpl)(nil)
