package port

import (
	"context"

	"github.com/garyjia/campus-assistant/internal/domain/workflow"
)

// SessionStore keeps at most one workflow session per conversation
type SessionStore interface {
	// Get returns nil, nil when the conversation has no session
	Get(ctx context.Context, conversationID string) (*workflow.Session, error)
	Save(ctx context.Context, session *workflow.Session) error
	Delete(ctx context.Context, conversationID string) error
}
