package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/campus-assistant/internal/application/lifecycle"
	"github.com/garyjia/campus-assistant/internal/application/port"
	"github.com/garyjia/campus-assistant/internal/application/workflow"
	"github.com/garyjia/campus-assistant/internal/domain/entity"
	"github.com/garyjia/campus-assistant/pkg/utils"
)

const listTitleLimit = 40

var actionLabels = map[workflow.Action]string{
	workflow.ActionConfirm:     "Confirm",
	workflow.ActionEdit:        "Edit",
	workflow.ActionAttachPhoto: "Attach photo",
	workflow.ActionCancel:      "Cancel",
}

func button(label string, cb Callback) port.Button {
	return port.Button{Label: label, Payload: cb.Encode()}
}

// renderStep turns an engine result into a chat message with its keyboard
func renderStep(res *workflow.StepResult) port.OutgoingMessage {
	var msg port.OutgoingMessage
	var parts []string

	p := res.Prompt
	if res.Message != "" && (p == nil || res.Message != p.Text) {
		parts = append(parts, res.Message)
	}
	if p == nil {
		msg.Text = strings.Join(parts, "\n\n")
		return msg
	}

	parts = append(parts, p.Text)
	msg.Text = strings.Join(parts, "\n\n")
	msg.ImageKey = p.ImageKey

	for _, s := range p.Suggestions {
		msg.Buttons = append(msg.Buttons, []port.Button{button(s, suggestionCallback(s))})
	}

	var row []port.Button
	for _, opt := range p.Rewind {
		row = append(row, button("Edit "+opt.Label, rewindCallback(opt.Step.String())))
		if len(row) == 2 {
			msg.Buttons = append(msg.Buttons, row)
			row = nil
		}
	}
	if len(row) > 0 {
		msg.Buttons = append(msg.Buttons, row)
	}

	if len(p.Actions) > 0 {
		actions := make([]port.Button, 0, len(p.Actions))
		for _, a := range p.Actions {
			actions = append(actions, button(actionLabels[a], workflowCallback(string(a))))
		}
		msg.Buttons = append(msg.Buttons, actions)
	}
	return msg
}

type formatter struct {
	parser port.DateParser
}

func (f formatter) time(t time.Time) string {
	return f.parser.Format(t, port.DisplayLayout)
}

func (f formatter) clock(t time.Time) string {
	return f.parser.Format(t, "15:04")
}

func (f formatter) day(t time.Time) string {
	return f.parser.Format(t, "02.01.2006")
}

// eventDay renders the events overlapping one day with day navigation
func (f formatter) eventDay(day time.Time, events []*entity.Event) port.OutgoingMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "Events on %s (%s)", f.day(day), day.Weekday())

	msg := port.OutgoingMessage{}
	if len(events) == 0 {
		b.WriteString("\n\nNo events.")
	}
	for i, ev := range events {
		fmt.Fprintf(&b, "\n\n%d. %s\n   %s - %s", i+1, ev.Title, f.time(ev.StartAt), f.time(ev.EndAt))
		label := fmt.Sprintf("%d. %s", i+1, utils.Truncate(ev.Title, listTitleLimit))
		msg.Buttons = append(msg.Buttons, []port.Button{button(label, eventInfoCallback(day, i))})
	}
	msg.Text = b.String()
	msg.Buttons = append(msg.Buttons, []port.Button{
		button("< Previous day", dayCallback(CbEventDay, day.AddDate(0, 0, -1))),
		button("Week", dayCallback(CbEventWeek, day)),
		button("Next day >", dayCallback(CbEventDay, day.AddDate(0, 0, 1))),
	})
	return msg
}

// eventWeek renders the events of a Monday-based week grouped by day
func (f formatter) eventWeek(day time.Time, events []*entity.Event) port.OutgoingMessage {
	start, end := lifecycle.WeekBounds(day)

	var b strings.Builder
	fmt.Fprintf(&b, "Week %s - %s", f.day(start), f.day(end.AddDate(0, 0, -1)))

	msg := port.OutgoingMessage{}
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		dayStart, dayEnd := lifecycle.DayBounds(d)
		var lines []string
		for _, ev := range events {
			if ev.Overlaps(dayStart, dayEnd) {
				lines = append(lines, fmt.Sprintf("   %s %s", f.clock(ev.StartAt), ev.Title))
			}
		}
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n\n%s, %s\n%s", d.Weekday(), f.day(d), strings.Join(lines, "\n"))
		msg.Buttons = append(msg.Buttons, []port.Button{button(fmt.Sprintf("%s %s", d.Weekday(), f.day(d)), dayCallback(CbEventDay, d))})
	}
	if len(events) == 0 {
		b.WriteString("\n\nNo events this week.")
	}
	msg.Text = b.String()
	msg.Buttons = append(msg.Buttons, []port.Button{
		button("< Previous week", dayCallback(CbEventWeek, start.AddDate(0, 0, -7))),
		button("Next week >", dayCallback(CbEventWeek, start.AddDate(0, 0, 7))),
	})
	return msg
}

// eventInfo renders one event of a day with index navigation
func (f formatter) eventInfo(day time.Time, events []*entity.Event, index int, canModify bool) port.OutgoingMessage {
	ev := events[index]

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", ev.Title)
	if ev.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", ev.Description)
	}
	fmt.Fprintf(&b, "Start: %s\nEnd: %s\n\nEvent %d of %d", f.time(ev.StartAt), f.time(ev.EndAt), index+1, len(events))

	msg := port.OutgoingMessage{Text: b.String(), ImageKey: ev.ImageKey}
	if len(events) > 1 {
		prev := (index - 1 + len(events)) % len(events)
		next := (index + 1) % len(events)
		msg.Buttons = append(msg.Buttons, []port.Button{
			button("<", eventInfoCallback(day, prev)),
			button(fmt.Sprintf("%d/%d", index+1, len(events)), Callback{Action: CbNoop}),
			button(">", eventInfoCallback(day, next)),
		})
	}
	if canModify {
		msg.Buttons = append(msg.Buttons, []port.Button{
			button("Edit", idCallback(CbEventEdit, ev.ID)),
			button("Delete", idCallback(CbEventDelete, ev.ID)),
		})
	}
	msg.Buttons = append(msg.Buttons, []port.Button{button("Back", dayCallback(CbEventDay, day))})
	return msg
}

// taskPage renders one page of a task list. owner is nil for the viewer's own list.
func (f formatter) taskPage(owner *entity.User, page lifecycle.Page[*entity.Task], done bool, now time.Time) port.OutgoingMessage {
	var ownerID int64
	var b strings.Builder
	if done {
		b.WriteString("Completed tasks")
	} else {
		b.WriteString("Active tasks")
	}
	if owner != nil {
		ownerID = owner.ID
		fmt.Fprintf(&b, " of %s", owner.DisplayName())
	}
	fmt.Fprintf(&b, " (%d)", page.Total)
	if page.Total == 0 {
		b.WriteString("\n\nNothing here.")
	}

	msg := port.OutgoingMessage{}
	for _, t := range page.Items {
		label := utils.Truncate(t.Title, listTitleLimit)
		if t.Overdue(now) {
			label = "! " + label
		}
		msg.Buttons = append(msg.Buttons, []port.Button{button(label, idCallback(CbTaskInfo, t.ID))})
	}

	if page.TotalPages > 1 {
		msg.Buttons = append(msg.Buttons, []port.Button{
			button("<", taskListCallback(ownerID, page.PrevPage, done)),
			button(fmt.Sprintf("%d/%d", page.Page, page.TotalPages), Callback{Action: CbNoop}),
			button(">", taskListCallback(ownerID, page.NextPage, done)),
		})
	}
	if done {
		msg.Buttons = append(msg.Buttons, []port.Button{button("Active tasks", taskListCallback(ownerID, 1, false))})
	} else {
		msg.Buttons = append(msg.Buttons, []port.Button{button("Completed tasks", taskListCallback(ownerID, 1, true))})
	}
	if owner != nil {
		msg.Buttons = append(msg.Buttons, []port.Button{button("Back", Callback{Action: CbTaskTracker})})
	}
	msg.Text = b.String()
	return msg
}

// taskInfo renders a task card with the actions available to the viewer.
// listOwner is the list the Back button returns to.
func (f formatter) taskInfo(t *entity.Task, listOwner int64, now time.Time, canComplete, canModify bool) port.OutgoingMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n\n", t.Title)
	if t.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", t.Description)
	}
	fmt.Fprintf(&b, "Deadline: %s", f.time(t.EndAt))

	switch {
	case t.IsCompleted && t.CompletedAt != nil:
		fmt.Fprintf(&b, "\nCompleted: %s", f.time(*t.CompletedAt))
		if t.CompleteDesc != "" {
			fmt.Fprintf(&b, "\n\n%s", t.CompleteDesc)
		}
	case t.Overdue(now):
		b.WriteString("\nOverdue")
	default:
		fmt.Fprintf(&b, "\nDays left: %d", t.DaysLeft(now))
	}

	msg := port.OutgoingMessage{Text: b.String()}
	if !t.IsCompleted && canComplete {
		msg.Buttons = append(msg.Buttons, []port.Button{button("Complete", idCallback(CbTaskComplete, t.ID))})
	}
	if canModify {
		var row []port.Button
		if !t.IsCompleted {
			row = append(row, button("Edit", idCallback(CbTaskEdit, t.ID)))
		}
		row = append(row, button("Delete", idCallback(CbTaskDelete, t.ID)))
		msg.Buttons = append(msg.Buttons, row)
	}
	msg.Buttons = append(msg.Buttons, []port.Button{button("Back", taskListCallback(listOwner, 1, t.IsCompleted))})
	return msg
}

func confirmDeletion(what, title string, cb Callback) port.OutgoingMessage {
	return port.OutgoingMessage{
		Text: fmt.Sprintf("Delete %s \"%s\"?", what, title),
		Buttons: [][]port.Button{{
			button("Delete", cb),
			button("Keep", Callback{Action: CbNoop}),
		}},
	}
}

// tracker renders task statistics with a button per manager whose tasks can be opened
func (f formatter) tracker(s *entity.TaskStats, managers []*entity.User, now time.Time) port.OutgoingMessage {
	msg := port.OutgoingMessage{Text: stats(s, now)}
	if len(managers) == 0 {
		return msg
	}
	msg.Text += "\n\nOpen a manager's tasks:"
	for _, m := range managers {
		msg.Buttons = append(msg.Buttons, []port.Button{button(utils.Truncate(m.DisplayName(), listTitleLimit), taskListCallback(m.ID, 1, false))})
	}
	return msg
}

// profile describes the viewer's account
func profile(u *entity.User) string {
	text := fmt.Sprintf("Your profile\n\nName: %s\nRole: %s", u.DisplayName(), roleTitle(u.Role))
	if u.Description != "" {
		text += fmt.Sprintf("\nAbout: %s", u.Description)
	}
	return text
}

func roleTitle(role string) string {
	switch role {
	case entity.RoleAdmin:
		return "Administrator"
	case entity.RoleManagement:
		return "Management"
	}
	return "User"
}

func stats(s *entity.TaskStats, now time.Time) string {
	return fmt.Sprintf("Task statistics\n\nAll time: %d created, %d completed\n%s %d: %d created, %d completed",
		s.Total, s.Completed, now.Month(), now.Year(), s.MonthTotal, s.MonthCompleted)
}

func plain(s string) port.OutgoingMessage {
	return port.OutgoingMessage{Text: s}
}
