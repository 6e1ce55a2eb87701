package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweeper removes expired sessions and reports how many it dropped
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// SessionSweeper periodically drops idle workflow sessions from a local store
type SessionSweeper struct {
	store    Sweeper
	interval time.Duration
	onSweep  func(removed int)
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	removed int
}

// NewSessionSweeper creates a sweeper. onSweep may be nil.
func NewSessionSweeper(store Sweeper, interval time.Duration, onSweep func(int), logger *zap.Logger) *SessionSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SessionSweeper{
		store:    store,
		interval: interval,
		onSweep:  onSweep,
		logger:   logger,
	}
}

// Start begins the sweep loop in the background
func (s *SessionSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("session sweeper already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(loopCtx, s.done)

	s.logger.Info("SessionSweeper started", zap.Duration("interval", s.interval))
	return nil
}

// Stop ends the loop and waits for an in-flight sweep
func (s *SessionSweeper) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done

	s.logger.Info("SessionSweeper stopped", zap.Int("removed_total", s.Removed()))
	return nil
}

// Name returns the worker name
func (s *SessionSweeper) Name() string {
	return "SessionSweeper"
}

// Removed returns the total number of sessions dropped so far
func (s *SessionSweeper) Removed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removed
}

func (s *SessionSweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single sweep
func (s *SessionSweeper) SweepOnce(ctx context.Context) {
	n, err := s.store.Sweep(ctx)
	if err != nil {
		s.logger.Error("Failed to sweep sessions", zap.Error(err))
		return
	}
	if n == 0 {
		return
	}

	s.mu.Lock()
	s.removed += n
	s.mu.Unlock()

	s.logger.Debug("Expired sessions removed", zap.Int("count", n))
	if s.onSweep != nil {
		s.onSweep(n)
	}
}
