package datetime

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/garyjia/campus-assistant/internal/application/port"
)

var (
	// ErrEmptyInput is returned for blank input
	ErrEmptyInput = errors.New("empty date input")

	// ErrUnrecognized is returned when no layout matches
	ErrUnrecognized = errors.New("unrecognized date")
)

// DateLayout is the day-only user format
const DateLayout = "02.01.2006"

// Layouts tried before falling back to dateparse. Day-first formats come first
// so that 03.04.2024 is the 3rd of April; the fallback is day-first as well.
var layouts = []string{
	port.DisplayLayout,
	"02.01.2006 15:04:05",
	DateLayout,
	"02.01.06 15:04",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	time.RFC3339,
}

// Parser parses user date input in a fixed timezone
type Parser struct {
	loc *time.Location
}

// NewParser creates a Parser for the given location
func NewParser(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.Local
	}
	return &Parser{loc: loc}
}

// LoadLocation resolves an IANA name, falling back to a fixed offset in hours
// when the zone database is unavailable.
func LoadLocation(name string, fallbackOffsetHours int) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.FixedZone(fmt.Sprintf("UTC%+d", fallbackOffsetHours), fallbackOffsetHours*3600)
}

// Parse turns free-form text into a timestamp. Input without a time of day resolves to midnight.
func (p *Parser) Parse(text string) (time.Time, error) {
	s := strings.Join(strings.Fields(text), " ")
	if s == "" {
		return time.Time{}, ErrEmptyInput
	}

	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, p.loc); err == nil {
			return t.In(p.loc), nil
		}
	}

	// Bare numbers are years or unix stamps to dateparse, never a user's date.
	if isDigits(s) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnrecognized, text)
	}

	t, err := dateparse.ParseIn(s, p.loc, dateparse.PreferMonthFirst(false))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnrecognized, text)
	}
	return t.In(p.loc), nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Format renders t in the parser location. The zero time renders as an empty string.
func (p *Parser) Format(t time.Time, layout string) string {
	if t.IsZero() {
		return ""
	}
	return t.In(p.loc).Format(layout)
}

// Location returns the parser timezone
func (p *Parser) Location() *time.Location {
	return p.loc
}

// Now returns the current time in the parser location, truncated to seconds
func (p *Parser) Now() time.Time {
	return time.Now().In(p.loc).Truncate(time.Second)
}

var _ port.DateParser = (*Parser)(nil)
