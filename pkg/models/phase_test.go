package models

import (
	"testing"
)

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    Phase
		to      Phase
		wantErr bool
	}{
		// Valid transitions
		{"Idle to Launching", PhaseIdle, PhaseLaunching, false},
		{"Idle to Stopped", PhaseIdle, PhaseStopped, false},
		{"Launching to Running", PhaseLaunching, PhaseRunning, false},
		{"Launching to Cooldown", PhaseLaunching, PhaseCooldown, false},
		{"Launching to Stopped", PhaseLaunching, PhaseStopped, false},
		{"Running to Cooldown", PhaseRunning, PhaseCooldown, false},
		{"Running to Stopped", PhaseRunning, PhaseStopped, false},
		{"Cooldown to Launching", PhaseCooldown, PhaseLaunching, false},
		{"Cooldown to Stopped", PhaseCooldown, PhaseStopped, false},

		// Invalid transitions
		{"Idle to Running", PhaseIdle, PhaseRunning, true},
		{"Idle to Cooldown", PhaseIdle, PhaseCooldown, true},
		{"Running to Launching", PhaseRunning, PhaseLaunching, true},
		{"Cooldown to Running", PhaseCooldown, PhaseRunning, true},
		{"Stopped to Launching", PhaseStopped, PhaseLaunching, true},
		{"Stopped to anything", PhaseStopped, PhaseCooldown, true},

		// Unknown phase
		{"Unknown source phase", Phase("paused"), PhaseRunning, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTransition(%v, %v) error = %v, wantErr %v",
					tt.from, tt.to, err, tt.wantErr)
			}
		})
	}
}

func TestIsTerminalPhase(t *testing.T) {
	tests := []struct {
		name     string
		phase    Phase
		expected bool
	}{
		{"Stopped is terminal", PhaseStopped, true},
		{"Idle is not terminal", PhaseIdle, false},
		{"Launching is not terminal", PhaseLaunching, false},
		{"Running is not terminal", PhaseRunning, false},
		{"Cooldown is not terminal", PhaseCooldown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsTerminalPhase(tt.phase)
			if result != tt.expected {
				t.Errorf("IsTerminalPhase(%v) = %v, want %v", tt.phase, result, tt.expected)
			}
		})
	}
}

func TestIsChildPhase(t *testing.T) {
	tests := []struct {
		name     string
		phase    Phase
		expected bool
	}{
		{"Launching is a child phase", PhaseLaunching, true},
		{"Running is a child phase", PhaseRunning, true},
		{"Idle is not a child phase", PhaseIdle, false},
		{"Cooldown is not a child phase", PhaseCooldown, false},
		{"Stopped is not a child phase", PhaseStopped, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsChildPhase(tt.phase)
			if result != tt.expected {
				t.Errorf("IsChildPhase(%v) = %v, want %v", tt.phase, result, tt.expected)
			}
		})
	}
}
