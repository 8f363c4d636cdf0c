package models

import (
	"fmt"
	"time"
)

// TimestampFormat is the prefix format for rendered log lines
const TimestampFormat = "2006-01-02 15:04:05"

// Event is one structured supervisor log entry. The supervisor emits these
// instead of writing freeform lines; Text renders the legacy line format.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Phase     Phase     `json:"phase"`
	PID       int       `json:"pid"`
	ExitCode  int       `json:"exit_code"`
	Message   string    `json:"message"`
}

// NewEvent creates an event stamped with the given time
func NewEvent(ts time.Time, phase Phase, message string) Event {
	return Event{
		Timestamp: ts,
		Phase:     phase,
		Message:   message,
	}
}

// Text renders the event as a timestamped log line
func (e Event) Text() string {
	return fmt.Sprintf("[%s] %s", e.Timestamp.Format(TimestampFormat), e.Message)
}
