package models

import (
	"time"
)

// Cycle records one pass through the restart loop: launch, exit, cooldown.
// Immutable once EndedAt is set; the history store persists them as-is.
type Cycle struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Seq         int       `json:"seq"`
	PID         int       `json:"pid"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
	ExitCode    int       `json:"exit_code"`
	LaunchError string    `json:"launch_error,omitempty"`
}

// Duration returns how long the child ran (or has been running)
func (c *Cycle) Duration() time.Duration {
	if c.EndedAt.IsZero() {
		return time.Since(c.StartedAt)
	}
	return c.EndedAt.Sub(c.StartedAt)
}

// Failed reports whether the cycle ended abnormally. Informational only:
// the supervisor restarts regardless of outcome.
func (c *Cycle) Failed() bool {
	return c.ExitCode != 0 || c.LaunchError != ""
}
