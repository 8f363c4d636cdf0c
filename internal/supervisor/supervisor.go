package supervisor

import (
	"context"
	"fmt"
	"io"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/psantana5/botkeeper/pkg/logging"
	"github.com/psantana5/botkeeper/pkg/models"
)

// Config holds everything the restart cycle needs. Supplied at startup;
// nothing in the loop is hardcoded.
type Config struct {
	Interpreter string
	Script      string
	WorkDir     string
	LogDir      string
	ChildLog    string
	Cooldown    time.Duration
}

// maxEvents bounds the in-memory event ring served over the API
const maxEvents = 256

// Supervisor owns the restart cycle for one child process: launch, block
// until exit, cool down for a fixed delay, relaunch. Every exit is treated
// the same; there is no backoff and no retry cutoff. The loop ends only
// when the context is cancelled.
type Supervisor struct {
	cfg      Config
	log      *logging.Logger
	clock    Clock
	launcher Launcher

	onEvent func(models.Event)
	onCycle func(models.Cycle)

	mu           sync.RWMutex
	phase        models.Phase
	sessionID    string
	sessionStart time.Time
	seq          int
	completed    int
	lastExit     int
	current      *models.Cycle
	proc         Process
	events       []models.Event
}

// New creates a supervisor with the real clock and the exec launcher.
// Use the setters to swap either before calling Run.
func New(cfg Config, log *logging.Logger) *Supervisor {
	if log == nil {
		log = logging.NewLogger(logging.INFO, false)
	}
	return &Supervisor{
		cfg:       cfg,
		log:       log,
		clock:     NewClock(),
		launcher:  NewExecLauncher(cfg.Interpreter, cfg.Script, cfg.WorkDir, cfg.ChildLog),
		phase:     models.PhaseIdle,
		sessionID: uuid.New().String(),
	}
}

// SetClock replaces the clock. Call before Run.
func (s *Supervisor) SetClock(c Clock) {
	s.clock = c
}

// SetLauncher replaces the launcher. Call before Run.
func (s *Supervisor) SetLauncher(l Launcher) {
	s.launcher = l
}

// SetEventHook registers a callback invoked for every emitted event
func (s *Supervisor) SetEventHook(fn func(models.Event)) {
	s.onEvent = fn
}

// SetCycleHook registers a callback invoked when a cycle finishes
func (s *Supervisor) SetCycleHook(fn func(models.Cycle)) {
	s.onCycle = fn
}

// Run executes the restart loop until ctx is cancelled. On entry it ensures
// the log directory exists (idempotent) and appends the session banner.
func (s *Supervisor) Run(ctx context.Context) error {
	if s.cfg.LogDir != "" {
		logging.ResolveDir(s.cfg.LogDir)
	}

	s.mu.Lock()
	s.sessionStart = s.clock.Now()
	s.mu.Unlock()

	s.emit(models.PhaseIdle, 0, 0, "=== bot session started ===")

	for {
		if ctx.Err() != nil {
			s.transition(models.PhaseStopped)
			return ctx.Err()
		}

		s.transition(models.PhaseLaunching)
		cycle := s.beginCycle()
		s.emit(models.PhaseLaunching, 0, 0, "starting bot")

		proc, err := s.launcher.Launch(ctx)
		if err != nil {
			// A failed launch is just another exit: record it and fall
			// through to the same stop/cooldown path.
			cycle.ExitCode = -1
			cycle.LaunchError = err.Error()
			cycle.EndedAt = s.clock.Now()
			s.log.Error("bot launch failed", map[string]interface{}{"error": err.Error()})
		} else {
			s.setRunning(proc, cycle)
			status := proc.Wait()
			s.clearProc()
			cycle.ExitCode = status.Code
			cycle.EndedAt = s.clock.Now()
		}

		if ctx.Err() != nil {
			// Shutdown took the child down with it; record the cycle but
			// do not announce a restart that will not happen.
			s.finishCycle(cycle)
			s.transition(models.PhaseStopped)
			return ctx.Err()
		}

		s.transition(models.PhaseCooldown)
		s.finishCycle(cycle)
		s.emit(models.PhaseCooldown, cycle.PID, cycle.ExitCode,
			fmt.Sprintf("bot stopped, restarting in %s", s.cfg.Cooldown))

		if err := s.clock.Sleep(ctx, s.cfg.Cooldown); err != nil {
			s.transition(models.PhaseStopped)
			return err
		}
	}
}

// RestartChild kills the running child; the loop then takes the normal
// stop, cooldown, relaunch path.
func (s *Supervisor) RestartChild() error {
	s.mu.RLock()
	proc := s.proc
	phase := s.phase
	s.mu.RUnlock()

	if proc == nil {
		return fmt.Errorf("no child running (phase %s)", phase)
	}
	return proc.Signal(syscall.SIGKILL)
}

// Phase returns the current phase
func (s *Supervisor) Phase() models.Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// CurrentPID returns the live child's PID, or 0 when no child is running
func (s *Supervisor) CurrentPID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return 0
	}
	return s.current.PID
}

// SessionID returns this supervisor session's id
func (s *Supervisor) SessionID() string {
	return s.sessionID
}

// Events returns a copy of the recent event ring
func (s *Supervisor) Events() []models.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Snapshot is a point-in-time view of the supervisor for the status API
type Snapshot struct {
	Phase          models.Phase  `json:"phase"`
	SessionID      string        `json:"session_id"`
	SessionStarted time.Time     `json:"session_started_at"`
	PID            int           `json:"pid"`
	CyclesStarted  int           `json:"cycles_started"`
	CyclesDone     int           `json:"cycles_completed"`
	LastExitCode   int           `json:"last_exit_code"`
	CooldownSecs   float64       `json:"cooldown_seconds"`
	ChildUptime    float64       `json:"child_uptime_seconds"`
	CurrentCycle   *models.Cycle `json:"current_cycle,omitempty"`
}

// Snapshot captures the current supervisor state
func (s *Supervisor) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Phase:          s.phase,
		SessionID:      s.sessionID,
		SessionStarted: s.sessionStart,
		CyclesStarted:  s.seq,
		CyclesDone:     s.completed,
		LastExitCode:   s.lastExit,
		CooldownSecs:   s.cfg.Cooldown.Seconds(),
	}
	if s.current != nil {
		cp := *s.current
		snap.CurrentCycle = &cp
		snap.PID = cp.PID
		snap.ChildUptime = s.clock.Now().Sub(cp.StartedAt).Seconds()
	}
	return snap
}

// WriteReport writes a human-readable session summary
func (s *Supervisor) WriteReport(out io.Writer) error {
	snap := s.Snapshot()

	fmt.Fprintf(out, "=== Bot Supervisor Report ===\n")
	fmt.Fprintf(out, "Session: %s\n", snap.SessionID)
	fmt.Fprintf(out, "Phase: %s\n", snap.Phase)
	fmt.Fprintf(out, "Cycles Started: %d\n", snap.CyclesStarted)
	fmt.Fprintf(out, "Cycles Completed: %d\n", snap.CyclesDone)
	fmt.Fprintf(out, "Last Exit Code: %d\n", snap.LastExitCode)
	fmt.Fprintf(out, "\nRecent Events:\n")
	for _, event := range s.Events() {
		fmt.Fprintf(out, "  [%s] %s: %s\n",
			event.Timestamp.Format("15:04:05"), event.Phase, event.Message)
	}

	return nil
}

// beginCycle opens the next cycle record
func (s *Supervisor) beginCycle() *models.Cycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return &models.Cycle{
		ID:        uuid.New().String(),
		SessionID: s.sessionID,
		Seq:       s.seq,
		StartedAt: s.clock.Now(),
	}
}

// setRunning publishes the live child and moves to Running
func (s *Supervisor) setRunning(proc Process, cycle *models.Cycle) {
	cycle.PID = proc.PID()

	s.mu.Lock()
	s.proc = proc
	cp := *cycle
	s.current = &cp
	s.mu.Unlock()

	s.transition(models.PhaseRunning)
}

func (s *Supervisor) clearProc() {
	s.mu.Lock()
	s.proc = nil
	s.mu.Unlock()
}

// finishCycle closes the record and notifies the cycle hook
func (s *Supervisor) finishCycle(cycle *models.Cycle) {
	s.mu.Lock()
	s.current = nil
	s.completed++
	s.lastExit = cycle.ExitCode
	hook := s.onCycle
	s.mu.Unlock()

	if hook != nil {
		hook(*cycle)
	}
}

// transition moves the FSM, refusing transitions the table forbids
func (s *Supervisor) transition(to models.Phase) {
	s.mu.Lock()
	from := s.phase
	if err := models.ValidateTransition(from, to); err != nil {
		s.mu.Unlock()
		s.log.Error("phase transition rejected", map[string]interface{}{
			"from": string(from),
			"to":   string(to),
		})
		return
	}
	s.phase = to
	s.mu.Unlock()
}

// emit records an event, writes it through the log adapter, and fans out
func (s *Supervisor) emit(phase models.Phase, pid, exitCode int, message string) {
	e := models.Event{
		Timestamp: s.clock.Now(),
		Phase:     phase,
		PID:       pid,
		ExitCode:  exitCode,
		Message:   message,
	}

	s.mu.Lock()
	s.events = append(s.events, e)
	if len(s.events) > maxEvents {
		s.events = s.events[len(s.events)-maxEvents:]
	}
	hook := s.onEvent
	s.mu.Unlock()

	s.log.Event(e)
	if hook != nil {
		hook(e)
	}
}
