package models

import (
	"fmt"
)

// Phase is the supervisor's position in the restart cycle.
type Phase string

// Strict supervisor phases for the FSM
const (
	PhaseIdle      Phase = "idle"      // Supervisor constructed, loop not yet entered
	PhaseLaunching Phase = "launching" // Child launch in progress
	PhaseRunning   Phase = "running"   // Child alive, supervisor blocked on its exit
	PhaseCooldown  Phase = "cooldown"  // Child exited, waiting the fixed delay
	PhaseStopped   Phase = "stopped"   // Supervisor shut down, no further transitions
)

// validTransitions maps from-phase to allowed to-phases
var validTransitions = map[Phase]map[Phase]bool{
	PhaseIdle: {
		PhaseLaunching: true, // Idle → Launching (first cycle begins)
		PhaseStopped:   true, // Idle → Stopped (cancelled before first launch)
	},
	PhaseLaunching: {
		PhaseRunning:  true, // Launching → Running (child started)
		PhaseCooldown: true, // Launching → Cooldown (launch failed, treated as an exit)
		PhaseStopped:  true, // Launching → Stopped (cancelled mid-launch)
	},
	PhaseRunning: {
		PhaseCooldown: true, // Running → Cooldown (child exited, any code)
		PhaseStopped:  true, // Running → Stopped (shutdown kills the child)
	},
	PhaseCooldown: {
		PhaseLaunching: true, // Cooldown → Launching (delay elapsed, relaunch)
		PhaseStopped:   true, // Cooldown → Stopped (cancelled while sleeping)
	},
	// Terminal phase (no transitions allowed)
	PhaseStopped: {},
}

// ValidateTransition checks if a phase transition is valid
func ValidateTransition(from, to Phase) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("unknown source phase: %s", from)
	}

	if !allowed[to] {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}

	return nil
}

// IsTerminalPhase returns true if the phase is terminal (no further transitions)
func IsTerminalPhase(p Phase) bool {
	return p == PhaseStopped
}

// IsChildPhase returns true while the supervisor is launching or holding a live child
func IsChildPhase(p Phase) bool {
	return p == PhaseLaunching || p == PhaseRunning
}
