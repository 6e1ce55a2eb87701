package port

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/garyjia/campus-assistant/internal/domain/entity"
)

// DisplayLayout is the user-facing date-time format
const DisplayLayout = "02.01.2006 15:04"

// DateParser turns user text into timestamps in the configured timezone
type DateParser interface {
	Parse(text string) (time.Time, error)
	Format(t time.Time, layout string) string
	Location() *time.Location
}

// Button is an inline action attached to an outgoing message
type Button struct {
	Label   string
	Payload string
}

// OutgoingMessage is a chat message with optional image and button rows
type OutgoingMessage struct {
	Text     string
	ImageKey string
	Buttons  [][]Button
}

// Messenger sends and maintains chat messages. receiveID is either a chat id or a user open id.
type Messenger interface {
	Send(ctx context.Context, receiveID string, msg OutgoingMessage) (string, error)
	Edit(ctx context.Context, messageID string, msg OutgoingMessage) error
	Delete(ctx context.Context, messageID string) error
}

// Content is what a broadcast delivers to every recipient
type Content struct {
	Text            string
	ImageKey        string
	SourceMessageID string
}

// Sender delivers broadcast content to a single recipient
type Sender interface {
	Deliver(ctx context.Context, recipientID string, content Content) error
}

// RateLimitedError is returned by a Sender when the platform throttles delivery
type RateLimitedError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rate limited, retry after %s: %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

func (e *RateLimitedError) Unwrap() error {
	return e.Err
}

// AsRateLimited extracts a RateLimitedError from the chain
func AsRateLimited(err error) (*RateLimitedError, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

// ReportWriter renders a monthly completion report as a spreadsheet
type ReportWriter interface {
	WriteMonthly(w io.Writer, report *entity.MonthlyReport) error
}
