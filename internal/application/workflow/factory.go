package workflow

import (
	"fmt"
	"strings"
	"time"

	domainwf "github.com/garyjia/campus-assistant/internal/domain/workflow"
)

// DefaultSchemas returns the schemas of every supported workflow kind
func DefaultSchemas() []*Schema {
	return []*Schema{
		EventSchema(),
		TaskSchema(),
		AnnouncementSchema(),
	}
}

// EventSchema is title → description → start → end → preview, with photo attachment
func EventSchema() *Schema {
	steps := []FieldSpec{
		titleStep("event title"),
		descriptionStep("event description"),
		{
			Step:  domainwf.StepStart,
			Field: domainwf.FieldStartAt,
			Label: "start",
			Prompt: timePrompt(domainwf.FieldStartAt,
				"Enter the start date and time as DD.MM.YYYY HH:MM, for example %s, or choose \"now\".",
				[]string{NowToken}),
			Validate: timeRule{
				field:    domainwf.FieldStartAt,
				allowNow: true,
			}.validate,
		},
		{
			Step:  domainwf.StepEnd,
			Field: domainwf.FieldEndAt,
			Label: "end",
			Prompt: timePrompt(domainwf.FieldEndAt,
				"Enter the end date and time as DD.MM.YYYY HH:MM, for example %s, or choose a duration from the start.",
				offsetLabels(eventEndOffsets)),
			Validate: timeRule{
				field:    domainwf.FieldEndAt,
				anchor:   fieldTime(domainwf.FieldStartAt),
				offsets:  eventEndOffsets,
				after:    fieldTime(domainwf.FieldStartAt),
				tooEarly: "The end must be after the start (%s). Enter the end again.",
			}.validate,
			Valid: func(f domainwf.Fields, _ time.Time) bool {
				start, ok := f.Time(domainwf.FieldStartAt)
				end, ok2 := f.Time(domainwf.FieldEndAt)
				return ok && ok2 && end.After(start)
			},
		},
	}
	return NewSchema(domainwf.KindEventCreate, steps, true, renderEvent)
}

// TaskSchema is title → description → deadline → preview
func TaskSchema() *Schema {
	steps := []FieldSpec{
		titleStep("task title"),
		descriptionStep("task description"),
		{
			Step:  domainwf.StepEnd,
			Field: domainwf.FieldEndAt,
			Label: "deadline",
			Prompt: timePrompt(domainwf.FieldEndAt,
				"Enter the deadline as DD.MM.YYYY HH:MM, for example %s, or choose a period from now.",
				offsetLabels(taskDeadlineOffsets)),
			Validate: timeRule{
				field:    domainwf.FieldEndAt,
				anchor:   currentTime,
				offsets:  taskDeadlineOffsets,
				after:    currentTime,
				tooEarly: "The deadline must be in the future (now is %s). Enter the deadline again.",
			}.validate,
			Valid: func(f domainwf.Fields, now time.Time) bool {
				end, ok := f.Time(domainwf.FieldEndAt)
				return ok && end.After(now)
			},
		},
	}
	return NewSchema(domainwf.KindTaskCreate, steps, false, renderTask)
}

// AnnouncementSchema is content → preview
func AnnouncementSchema() *Schema {
	steps := []FieldSpec{
		{
			Step:  domainwf.StepContent,
			Field: domainwf.FieldText,
			Label: "content",
			Prompt: func(pc PromptContext) Prompt {
				return Prompt{
					Text:    "Send the announcement. Text, a photo or a photo with a caption are accepted.",
					Actions: []Action{ActionCancel},
				}
			},
			Validate: validateAnnouncement,
		},
	}
	return NewSchema(domainwf.KindAnnouncementCreate, steps, false, renderAnnouncement)
}

func titleStep(label string) FieldSpec {
	return FieldSpec{
		Step:     domainwf.StepTitle,
		Field:    domainwf.FieldTitle,
		Label:    "title",
		Prompt:   textPrompt(label, domainwf.FieldTitle),
		Validate: requireText(domainwf.FieldTitle, fmt.Sprintf("The %s cannot be empty. Enter the %s:", label, label)),
	}
}

func descriptionStep(label string) FieldSpec {
	return FieldSpec{
		Step:     domainwf.StepDescription,
		Field:    domainwf.FieldDescription,
		Label:    "description",
		Prompt:   textPrompt(label, domainwf.FieldDescription),
		Validate: requireText(domainwf.FieldDescription, fmt.Sprintf("The %s cannot be empty. Enter the %s:", label, label)),
	}
}

func textPrompt(label, field string) func(PromptContext) Prompt {
	return func(pc PromptContext) Prompt {
		p := Prompt{
			Text:    fmt.Sprintf("Enter the %s:", label),
			Actions: []Action{ActionCancel},
		}
		if cur, ok := pc.Session.Fields.Text(field); ok && cur != "" {
			p.Suggestions = []string{cur}
		}
		return p
	}
}

// timePrompt offers the current value first when one is stored, then the quick tokens
func timePrompt(field, text string, quick []string) func(PromptContext) Prompt {
	return func(pc PromptContext) Prompt {
		p := Prompt{
			Text:    fmt.Sprintf(text, pc.Format(pc.Now)),
			Actions: []Action{ActionCancel},
		}
		if cur, ok := pc.Session.Fields.Time(field); ok {
			p.Suggestions = append(p.Suggestions, pc.Format(cur))
		}
		p.Suggestions = append(p.Suggestions, quick...)
		return p
	}
}

func renderEvent(s *domainwf.Session, format func(time.Time) string) string {
	var b strings.Builder
	title, _ := s.Fields.Text(domainwf.FieldTitle)
	desc, _ := s.Fields.Text(domainwf.FieldDescription)
	b.WriteString(title)
	b.WriteString("\n\n")
	b.WriteString(desc)
	b.WriteString("\n\n")
	if start, ok := s.Fields.Time(domainwf.FieldStartAt); ok {
		fmt.Fprintf(&b, "Start: %s\n", format(start))
	}
	if end, ok := s.Fields.Time(domainwf.FieldEndAt); ok {
		fmt.Fprintf(&b, "End: %s\n", format(end))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderTask(s *domainwf.Session, format func(time.Time) string) string {
	var b strings.Builder
	title, _ := s.Fields.Text(domainwf.FieldTitle)
	desc, _ := s.Fields.Text(domainwf.FieldDescription)
	fmt.Fprintf(&b, "Task: %s\n\n%s\n\n", title, desc)
	if end, ok := s.Fields.Time(domainwf.FieldEndAt); ok {
		fmt.Fprintf(&b, "Deadline: %s\n", format(end))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderAnnouncement(s *domainwf.Session, _ func(time.Time) string) string {
	text, _ := s.Fields.Text(domainwf.FieldText)
	if text == "" {
		return "Announcement preview:\n\n(photo without caption)"
	}
	return "Announcement preview:\n\n" + text
}
