package broadcast

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/garyjia/campus-assistant/internal/application/port"
	"github.com/garyjia/campus-assistant/internal/domain/entity"
)

const (
	defaultPause      = 50 * time.Millisecond
	defaultRetryAfter = time.Second
)

// Delivery results reported to the Observer
const (
	ResultDelivered = "delivered"
	ResultRetried   = "retried"
	ResultFailed    = "failed"
)

// Observer receives delivery outcomes, typically for metrics
type Observer interface {
	DeliveryObserved(result string)
	BroadcastObserved(report *entity.DeliveryReport, elapsed time.Duration)
}

// Broadcaster fans content out to recipients one delivery at a time. A
// rate-limited delivery is retried exactly once after the suggested wait;
// every other failure is recorded without retry and never aborts the batch.
type Broadcaster struct {
	sender      port.Sender
	limiter     *rate.Limiter
	retryAfter  time.Duration
	concurrency int
	sleep       func(ctx context.Context, d time.Duration) error
	observer    Observer
	clock       func() time.Time
	logger      *zap.Logger
}

// Option configures the Broadcaster
type Option func(*Broadcaster)

// WithPause sets the minimum spacing between deliveries. Zero disables pacing.
func WithPause(d time.Duration) Option {
	return func(b *Broadcaster) {
		if d <= 0 {
			b.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		b.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithDefaultRetryAfter sets the wait used when a rate limit carries no hint
func WithDefaultRetryAfter(d time.Duration) Option {
	return func(b *Broadcaster) { b.retryAfter = d }
}

// WithConcurrency delivers to up to n recipients at once. Counts and the
// single-retry rule are unchanged; failures are reported in recipient order.
func WithConcurrency(n int) Option {
	return func(b *Broadcaster) { b.concurrency = n }
}

// WithSleep replaces the backoff wait, mainly for tests
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(b *Broadcaster) { b.sleep = fn }
}

// WithObserver attaches a delivery observer
func WithObserver(o Observer) Option {
	return func(b *Broadcaster) { b.observer = o }
}

// New creates a Broadcaster
func New(sender port.Sender, logger *zap.Logger, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		sender:      sender,
		limiter:     rate.NewLimiter(rate.Every(defaultPause), 1),
		retryAfter:  defaultRetryAfter,
		concurrency: 1,
		sleep:       sleepContext,
		clock:       time.Now,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type outcome struct {
	delivered bool
	reason    string
}

// Broadcast delivers content to every recipient and returns the aggregate report
func (b *Broadcaster) Broadcast(ctx context.Context, content port.Content, recipients []string) *entity.DeliveryReport {
	started := b.clock()
	results := make([]outcome, len(recipients))

	if b.concurrency <= 1 {
		for i, id := range recipients {
			results[i] = b.deliverPaced(ctx, id, content)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(b.concurrency)
		for i, id := range recipients {
			i, id := i, id
			g.Go(func() error {
				results[i] = b.deliverPaced(gctx, id, content)
				return nil
			})
		}
		_ = g.Wait()
	}

	report := &entity.DeliveryReport{Total: len(recipients)}
	for i, r := range results {
		if r.delivered {
			report.Success++
			continue
		}
		report.Failed++
		report.Errors = append(report.Errors, entity.DeliveryError{
			RecipientID: recipients[i],
			Reason:      r.reason,
		})
	}

	elapsed := b.clock().Sub(started)
	b.logger.Info("Broadcast finished",
		zap.Int("total", report.Total),
		zap.Int("success", report.Success),
		zap.Int("failed", report.Failed),
		zap.Duration("elapsed", elapsed),
	)
	if b.observer != nil {
		b.observer.BroadcastObserved(report, elapsed)
	}
	return report
}

func (b *Broadcaster) deliverPaced(ctx context.Context, recipientID string, content port.Content) outcome {
	if err := b.limiter.Wait(ctx); err != nil {
		return b.record(outcome{reason: err.Error()}, recipientID)
	}
	return b.record(b.deliver(ctx, recipientID, content), recipientID)
}

func (b *Broadcaster) deliver(ctx context.Context, recipientID string, content port.Content) outcome {
	err := b.sender.Deliver(ctx, recipientID, content)
	if err == nil {
		return outcome{delivered: true}
	}

	rl, limited := port.AsRateLimited(err)
	if !limited {
		return outcome{reason: err.Error()}
	}

	wait := rl.RetryAfter
	if wait <= 0 {
		wait = b.retryAfter
	}
	b.logger.Warn("Delivery rate limited, retrying once",
		zap.String("recipient_id", recipientID),
		zap.Duration("retry_after", wait),
	)
	if b.observer != nil {
		b.observer.DeliveryObserved(ResultRetried)
	}

	if err := b.sleep(ctx, wait); err != nil {
		return outcome{reason: err.Error()}
	}
	// The retry is a send of its own and holds the next recipient back by a full pause.
	if err := b.limiter.Wait(ctx); err != nil {
		return outcome{reason: err.Error()}
	}
	if err := b.sender.Deliver(ctx, recipientID, content); err != nil {
		return outcome{reason: err.Error()}
	}
	return outcome{delivered: true}
}

func (b *Broadcaster) record(o outcome, recipientID string) outcome {
	if !o.delivered {
		b.logger.Warn("Delivery failed", zap.String("recipient_id", recipientID), zap.String("reason", o.reason))
	}
	if b.observer != nil {
		if o.delivered {
			b.observer.DeliveryObserved(ResultDelivered)
		} else {
			b.observer.DeliveryObserved(ResultFailed)
		}
	}
	return o
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
