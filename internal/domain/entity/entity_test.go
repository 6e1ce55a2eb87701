package entity

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvent_Overlaps(t *testing.T) {
	day := func(d, h int) time.Time { return time.Date(2024, 1, d, h, 0, 0, 0, time.UTC) }
	ev := &Event{StartAt: day(10, 9), EndAt: day(10, 12)}

	tests := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"same day", day(10, 0), day(11, 0), true},
		{"window before", day(9, 0), day(10, 0), false},
		{"window after", day(11, 0), day(12, 0), false},
		{"window starts at end", day(10, 12), day(10, 13), true},
		{"window ends at start", day(10, 8), day(10, 9), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ev.Overlaps(tt.start, tt.end))
		})
	}
}

func TestEvent_Validate(t *testing.T) {
	start := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	valid := Event{Title: "Fair", CreatedBy: 1, StartAt: start, EndAt: start.Add(time.Hour)}
	assert.NoError(t, valid.Validate())

	noTitle := valid
	noTitle.Title = "  "
	assert.ErrorIs(t, noTitle.Validate(), ErrEmptyTitle)

	zeroLength := valid
	zeroLength.EndAt = start
	assert.ErrorIs(t, zeroLength.Validate(), ErrInvalidTimeRange)
}

func TestEventPatch_Apply(t *testing.T) {
	ev := &Event{Title: "Old", Description: "keep"}
	title := "New"
	EventPatch{Title: &title}.Apply(ev)

	assert.Equal(t, "New", ev.Title)
	assert.Equal(t, "keep", ev.Description)
}

func TestTask_Deadlines(t *testing.T) {
	deadline := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	task := &Task{EndAt: deadline}

	assert.False(t, task.Overdue(deadline))
	assert.True(t, task.Overdue(deadline.Add(time.Minute)))
	assert.Equal(t, 2, task.DaysLeft(deadline.Add(-50*time.Hour)))

	late := deadline.Add(time.Hour)
	task.IsCompleted = true
	task.CompletedAt = &late
	assert.True(t, task.CompletedLate())
	assert.False(t, task.Overdue(deadline.Add(time.Hour)))
}

func TestDeliveryReport_Summary(t *testing.T) {
	r := &DeliveryReport{Total: 15, Success: 3, Failed: 12}
	for i := 0; i < 12; i++ {
		r.Errors = append(r.Errors, DeliveryError{RecipientID: "ou_x", Reason: "blocked"})
	}

	s := r.Summary(10)
	assert.Contains(t, s, "Recipients: 15")
	assert.Contains(t, s, "Delivered: 3")
	assert.Contains(t, s, "Failed: 12")
	assert.Equal(t, 10, strings.Count(s, "ou_x: blocked"))
	assert.Contains(t, s, "and 2 more")
}

func TestUser_CanAnnounce(t *testing.T) {
	assert.False(t, (&User{Role: RoleUser}).CanAnnounce())
	assert.True(t, (&User{Role: RoleManagement}).CanAnnounce())
	assert.True(t, (&User{Role: RoleAdmin}).CanAnnounce())
}
