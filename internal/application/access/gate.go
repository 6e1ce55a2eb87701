package access

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/campus-assistant/internal/application/port"
	"github.com/garyjia/campus-assistant/internal/domain/entity"
)

// InputKind classifies what the user sent
type InputKind string

const (
	InputCommand  InputKind = "command"
	InputCallback InputKind = "callback"
	InputMessage  InputKind = "message"
)

// Decision is the gate verdict
type Decision string

const (
	Allow       Decision = "allow"
	DenyUnknown Decision = "deny_unknown"
	DenyBanned  Decision = "deny_banned"
)

// Notices shown on denial
const (
	NoticeUnknown = "You are not registered yet. Send /start to register."
	NoticeBanned  = "Your access to the assistant has been restricted. Contact an administrator."
)

// Request is one inbound input as seen by the gate
type Request struct {
	UserID string
	Kind   InputKind

	// Payload is the command name without the slash, or the callback action
	Payload string
}

// Result carries the verdict and the resolved user when one exists
type Result struct {
	Decision Decision
	User     *entity.User
	Notice   string
}

// Allowed reports whether the input may proceed
func (r Result) Allowed() bool {
	return r.Decision == Allow
}

// Config lists what unregistered users may do
type Config struct {
	AllowedCommands  []string
	CallbackPatterns []string
}

// Gate decides whether an input may reach the workflow engine. It never touches sessions.
type Gate struct {
	users    port.UserRepository
	commands map[string]struct{}
	patterns []*regexp.Regexp
	logger   *zap.Logger
}

// NewGate compiles the allow-list
func NewGate(users port.UserRepository, cfg Config, logger *zap.Logger) (*Gate, error) {
	g := &Gate{
		users:    users,
		commands: make(map[string]struct{}, len(cfg.AllowedCommands)),
		logger:   logger,
	}
	for _, c := range cfg.AllowedCommands {
		g.commands[strings.TrimPrefix(strings.ToLower(c), "/")] = struct{}{}
	}
	for _, p := range cfg.CallbackPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid callback pattern %q: %w", p, err)
		}
		g.patterns = append(g.patterns, re)
	}
	return g, nil
}

// Check resolves the user and applies the allow-list to unknown users
func (g *Gate) Check(ctx context.Context, req Request) (Result, error) {
	user, err := g.users.GetByOpenID(ctx, req.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to resolve user: %w", err)
	}

	if user == nil || user.IsDeleted {
		if g.allowedAnonymously(req) {
			return Result{Decision: Allow}, nil
		}
		g.logger.Debug("Gate denied unknown user",
			zap.String("user_id", req.UserID),
			zap.String("kind", string(req.Kind)),
			zap.String("payload", req.Payload))
		return Result{Decision: DenyUnknown, Notice: NoticeUnknown}, nil
	}

	if user.IsBanned {
		g.logger.Info("Gate denied banned user",
			zap.Int64("user_id", user.ID),
			zap.String("kind", string(req.Kind)))
		return Result{Decision: DenyBanned, User: user, Notice: NoticeBanned}, nil
	}

	return Result{Decision: Allow, User: user}, nil
}

func (g *Gate) allowedAnonymously(req Request) bool {
	switch req.Kind {
	case InputCommand:
		_, ok := g.commands[strings.ToLower(req.Payload)]
		return ok
	case InputCallback:
		for _, re := range g.patterns {
			if re.MatchString(req.Payload) {
				return true
			}
		}
	}
	return false
}
