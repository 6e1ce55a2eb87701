package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/campus-assistant/internal/application/port"
	domainwf "github.com/garyjia/campus-assistant/internal/domain/workflow"
)

// QuickOffset is a shortcut reply that resolves relative to an anchor time
type QuickOffset struct {
	Label string
	Apply func(anchor time.Time) time.Time
}

func hours(n int) func(time.Time) time.Time {
	return func(t time.Time) time.Time { return t.Add(time.Duration(n) * time.Hour) }
}

func days(n int) func(time.Time) time.Time {
	return func(t time.Time) time.Time { return t.AddDate(0, 0, n) }
}

// NowToken selects the current time at the event start step
const NowToken = "now"

var (
	eventEndOffsets = []QuickOffset{
		{Label: "+1 hour", Apply: hours(1)},
		{Label: "+12 hours", Apply: hours(12)},
		{Label: "+1 day", Apply: days(1)},
		{Label: "+3 days", Apply: days(3)},
		{Label: "+1 week", Apply: days(7)},
	}

	taskDeadlineOffsets = []QuickOffset{
		{Label: "+1 day", Apply: days(1)},
		{Label: "+7 days", Apply: days(7)},
		{Label: "+14 days", Apply: days(14)},
		{Label: "+21 days", Apply: days(21)},
		{Label: "+28 days", Apply: days(28)},
	}
)

func offsetLabels(offsets []QuickOffset) []string {
	labels := make([]string, 0, len(offsets))
	for _, o := range offsets {
		labels = append(labels, o.Label)
	}
	return labels
}

func matchOffset(offsets []QuickOffset, text string) (QuickOffset, bool) {
	norm := strings.ToLower(strings.Join(strings.Fields(text), " "))
	for _, o := range offsets {
		if o.Label == norm {
			return o, true
		}
	}
	return QuickOffset{}, false
}

// requireText accepts any non-blank text and stores it trimmed
func requireText(field, emptyMessage string) func(ValidationContext, Input) (domainwf.Fields, error) {
	return func(vc ValidationContext, in Input) (domainwf.Fields, error) {
		text := strings.TrimSpace(in.Text)
		if text == "" {
			return nil, invalid(emptyMessage)
		}
		return domainwf.Fields{field: domainwf.TextValue(text)}, nil
	}
}

// timeRule validates a date-time step
type timeRule struct {
	field string

	// allowNow accepts NowToken as the current time
	allowNow bool

	// anchor resolves quick offsets; offsets are ignored when it reports false
	anchor  func(vc ValidationContext) (time.Time, bool)
	offsets []QuickOffset

	// after is a strict lower bound
	after    func(vc ValidationContext) (time.Time, bool)
	tooEarly string
}

func (r timeRule) validate(vc ValidationContext, in Input) (domainwf.Fields, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, invalid(formatHint(vc))
	}

	var (
		at    time.Time
		found bool
	)
	if r.allowNow && strings.EqualFold(text, NowToken) {
		at, found = vc.Now, true
	}
	if !found && r.anchor != nil {
		if o, ok := matchOffset(r.offsets, text); ok {
			anchor, ok := r.anchor(vc)
			if !ok {
				return nil, invalid(formatHint(vc))
			}
			at, found = o.Apply(anchor), true
		}
	}
	if !found {
		parsed, err := vc.Parser.Parse(text)
		if err != nil {
			return nil, invalid(formatHint(vc))
		}
		at = parsed
	}

	if r.after != nil {
		if bound, ok := r.after(vc); ok && !at.After(bound) {
			return nil, invalid(fmt.Sprintf(r.tooEarly, vc.Parser.Format(bound, port.DisplayLayout)))
		}
	}

	return domainwf.Fields{r.field: domainwf.TimeValue(at)}, nil
}

func formatHint(vc ValidationContext) string {
	return fmt.Sprintf("Could not read the date. Use the format DD.MM.YYYY HH:MM, for example %s.",
		vc.Parser.Format(vc.Now, port.DisplayLayout))
}

func fieldTime(field string) func(vc ValidationContext) (time.Time, bool) {
	return func(vc ValidationContext) (time.Time, bool) {
		return vc.Fields.Time(field)
	}
}

func currentTime(vc ValidationContext) (time.Time, bool) {
	return vc.Now, true
}

// lastMedia keeps the largest rendition of an attachment set
func lastMedia(media []string) (string, bool) {
	for i := len(media) - 1; i >= 0; i-- {
		if key := strings.TrimSpace(media[i]); key != "" {
			return key, true
		}
	}
	return "", false
}

func validatePhoto(vc ValidationContext, in Input) (domainwf.Fields, error) {
	key, ok := lastMedia(in.Media)
	if !ok {
		return nil, invalid("Send a photo, or cancel.")
	}
	return domainwf.Fields{domainwf.FieldImage: domainwf.AttachmentValue(key)}, nil
}

// validateAnnouncement accepts text, a photo or both. Every field is written
// so that re-entering the step replaces the previous content entirely.
func validateAnnouncement(vc ValidationContext, in Input) (domainwf.Fields, error) {
	text := strings.TrimSpace(in.Text)
	key, hasMedia := lastMedia(in.Media)
	if text == "" && !hasMedia {
		return nil, invalid("The announcement is empty. Send text, a photo or a photo with a caption.")
	}
	return domainwf.Fields{
		domainwf.FieldText:          domainwf.TextValue(text),
		domainwf.FieldImage:         domainwf.AttachmentValue(key),
		domainwf.FieldSourceMessage: domainwf.MessageValue(in.MessageID),
	}, nil
}
