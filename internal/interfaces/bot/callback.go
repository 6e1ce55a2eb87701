package bot

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/campus-assistant/internal/application/workflow"
	domainwf "github.com/garyjia/campus-assistant/internal/domain/workflow"
)

// Callback decoding errors
var (
	ErrUnknownCallback   = errors.New("unknown callback action")
	ErrMalformedCallback = errors.New("malformed callback payload")
)

// CallbackAction tags the variant carried by a Callback
type CallbackAction string

const (
	CbWorkflow      CallbackAction = "wf" // Arg: workflow action
	CbSuggestion    CallbackAction = "sg" // Arg: quick reply text
	CbRewind        CallbackAction = "rw" // Arg: step to re-enter
	CbRegister      CallbackAction = "create_profile"
	CbEventDay      CallbackAction = "ed" // Date
	CbEventWeek     CallbackAction = "ew" // Date
	CbEventInfo     CallbackAction = "ei" // Date, Page: index among the day's events
	CbEventEdit     CallbackAction = "ee" // ID
	CbEventDelete   CallbackAction = "ex" // ID, Confirm
	CbTaskList      CallbackAction = "tl" // ID: list owner, zero for the caller; Page, Done
	CbTaskTracker   CallbackAction = "tk"
	CbTaskInfo      CallbackAction = "ti" // ID
	CbTaskEdit      CallbackAction = "te" // ID
	CbTaskDelete    CallbackAction = "tx" // ID, Confirm
	CbTaskComplete  CallbackAction = "tc" // ID
	CbMonthlyReport CallbackAction = "rp" // Arg: YYYY-MM
	CbNoop          CallbackAction = "nop"
)

// dateLayout is the Date encoding used in callbacks
const dateLayout = "2006-01-02"

// monthLayout is the Arg encoding of CbMonthlyReport
const monthLayout = "2006-01"

// Callback is the decoded payload of a button press. Only the members listed
// next to its action are meaningful.
type Callback struct {
	Action  CallbackAction `json:"a"`
	ID      int64          `json:"i,omitempty"`
	Page    int            `json:"p,omitempty"`
	Arg     string         `json:"s,omitempty"`
	Date    string         `json:"d,omitempty"`
	Done    bool           `json:"f,omitempty"`
	Confirm bool           `json:"c,omitempty"`
}

// Encode serializes the callback for a button value
func (c Callback) Encode() string {
	b, err := json.Marshal(c)
	if err != nil {
		// Callback only holds scalars
		panic(err)
	}
	return string(b)
}

// Day returns Date parsed in loc
func (c Callback) Day(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(dateLayout, c.Date, loc)
}

// DecodeCallback parses and validates a button payload
func DecodeCallback(payload string) (Callback, error) {
	var c Callback
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return Callback{}, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	if err := c.validate(); err != nil {
		return Callback{}, err
	}
	return c, nil
}

func (c Callback) validate() error {
	switch c.Action {
	case CbWorkflow:
		if !workflow.Action(c.Arg).IsValid() {
			return fmt.Errorf("%w: unknown workflow action %q", ErrMalformedCallback, c.Arg)
		}
	case CbRewind:
		if !domainwf.Step(c.Arg).IsValid() {
			return fmt.Errorf("%w: unknown step %q", ErrMalformedCallback, c.Arg)
		}
	case CbSuggestion:
		if c.Arg == "" {
			return fmt.Errorf("%w: empty suggestion", ErrMalformedCallback)
		}
	case CbEventDay, CbEventWeek, CbEventInfo:
		if _, err := time.Parse(dateLayout, c.Date); err != nil {
			return fmt.Errorf("%w: %s has bad date %q", ErrMalformedCallback, c.Action, c.Date)
		}
		if c.Page < 0 {
			return fmt.Errorf("%w: negative index", ErrMalformedCallback)
		}
	case CbEventEdit, CbEventDelete, CbTaskInfo, CbTaskEdit, CbTaskDelete, CbTaskComplete:
		if c.ID <= 0 {
			return fmt.Errorf("%w: %s needs an id", ErrMalformedCallback, c.Action)
		}
	case CbMonthlyReport:
		if _, err := time.Parse(monthLayout, c.Arg); err != nil {
			return fmt.Errorf("%w: bad month %q", ErrMalformedCallback, c.Arg)
		}
	case CbTaskList:
		if c.ID < 0 {
			return fmt.Errorf("%w: negative owner", ErrMalformedCallback)
		}
	case CbTaskTracker, CbRegister, CbNoop:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCallback, c.Action)
	}
	return nil
}

// Constructors used when building keyboards

func workflowCallback(action string) Callback {
	return Callback{Action: CbWorkflow, Arg: action}
}

func suggestionCallback(text string) Callback {
	return Callback{Action: CbSuggestion, Arg: text}
}

func rewindCallback(step string) Callback {
	return Callback{Action: CbRewind, Arg: step}
}

func dayCallback(action CallbackAction, day time.Time) Callback {
	return Callback{Action: action, Date: day.Format(dateLayout)}
}

func eventInfoCallback(day time.Time, index int) Callback {
	return Callback{Action: CbEventInfo, Date: day.Format(dateLayout), Page: index}
}

func idCallback(action CallbackAction, id int64) Callback {
	return Callback{Action: action, ID: id}
}

func confirmCallback(action CallbackAction, id int64) Callback {
	return Callback{Action: action, ID: id, Confirm: true}
}

func taskListCallback(ownerID int64, page int, done bool) Callback {
	return Callback{Action: CbTaskList, ID: ownerID, Page: page, Done: done}
}

func reportCallback(year int, month time.Month) Callback {
	return Callback{Action: CbMonthlyReport, Arg: fmt.Sprintf("%04d-%02d", year, month)}
}

// OpenTaskPayload is the button payload that opens a task card
func OpenTaskPayload(taskID int64) string {
	return idCallback(CbTaskInfo, taskID).Encode()
}
