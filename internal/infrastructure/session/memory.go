package session

import (
	"context"
	"sync"
	"time"

	"github.com/garyjia/campus-assistant/internal/application/port"
	"github.com/garyjia/campus-assistant/internal/domain/workflow"
)

// MemoryStore keeps sessions in process memory. Stored sessions are copied on
// the way in and out so callers never share state with the store.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*workflow.Session
	ttl      time.Duration
	clock    func() time.Time
}

// MemoryOption configures a MemoryStore
type MemoryOption func(*MemoryStore)

// WithMemoryTTL expires sessions idle for longer than ttl
func WithMemoryTTL(ttl time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.ttl = ttl }
}

// WithMemoryClock overrides the time source
func WithMemoryClock(clock func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.clock = clock }
}

// NewMemoryStore creates an empty store
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]*workflow.Session),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get implements port.SessionStore. A missing or expired session is nil.
func (s *MemoryStore) Get(ctx context.Context, conversationID string) (*workflow.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[conversationID]
	if !ok {
		return nil, nil
	}
	if sess.Expired(s.clock(), s.ttl) {
		delete(s.sessions, conversationID)
		return nil, nil
	}
	return sess.Clone(), nil
}

// Save implements port.SessionStore. Expiry counts from sess.UpdatedAt.
func (s *MemoryStore) Save(ctx context.Context, sess *workflow.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.ConversationID] = sess.Clone()
	return nil
}

// Delete implements port.SessionStore. Deleting a missing session is not an error.
func (s *MemoryStore) Delete(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, conversationID)
	return nil
}

// Sweep drops expired sessions and returns how many were removed
func (s *MemoryStore) Sweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.Expired(now, s.ttl) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored sessions
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

var _ port.SessionStore = (*MemoryStore)(nil)
