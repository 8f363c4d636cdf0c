package supervisor

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/psantana5/botkeeper/pkg/models"
)

// fakeClock advances instantly and records every sleep
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  []time.Duration
	onSleep func(n int)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	n := len(c.sleeps)
	hook := c.onSleep
	c.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return ctx.Err()
}

func (c *fakeClock) recorded() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}

// fakeProcess is a scripted child
type fakeProcess struct {
	pid   int
	exit  ExitStatus
	block chan struct{}
	ctx   context.Context
	once  sync.Once
}

func (p *fakeProcess) PID() int {
	return p.pid
}

func (p *fakeProcess) Wait() ExitStatus {
	if p.block == nil {
		return p.exit
	}
	select {
	case <-p.block:
		return p.exit
	case <-p.ctx.Done():
		return ExitStatus{Code: -1, Err: p.ctx.Err()}
	}
}

func (p *fakeProcess) Signal(sig os.Signal) error {
	p.once.Do(func() {
		if p.block != nil {
			close(p.block)
		}
	})
	return nil
}

// fakeLauncher hands out scripted processes per launch attempt
type fakeLauncher struct {
	mu       sync.Mutex
	launches int
	plan     func(n int, ctx context.Context) (Process, error)
}

func (l *fakeLauncher) Launch(ctx context.Context) (Process, error) {
	l.mu.Lock()
	l.launches++
	n := l.launches
	plan := l.plan
	l.mu.Unlock()
	return plan(n, ctx)
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

func testConfig() Config {
	return Config{
		Interpreter: "python3",
		Script:      "bot.py",
		Cooldown:    10 * time.Second,
	}
}

// newTestSupervisor wires a supervisor with fakes and a cycle recorder
func newTestSupervisor(clock *fakeClock, launcher *fakeLauncher) (*Supervisor, *[]models.Cycle, *sync.Mutex) {
	s := New(testConfig(), nil)
	s.SetClock(clock)
	s.SetLauncher(launcher)

	var mu sync.Mutex
	cycles := &[]models.Cycle{}
	s.SetCycleHook(func(c models.Cycle) {
		mu.Lock()
		*cycles = append(*cycles, c)
		mu.Unlock()
	})
	return s, cycles, &mu
}

func TestThreeCleanCycles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := newFakeClock()
	clock.onSleep = func(n int) {
		if n == 3 {
			cancel()
		}
	}
	launcher := &fakeLauncher{plan: func(n int, _ context.Context) (Process, error) {
		return &fakeProcess{pid: 100 + n, exit: ExitStatus{Code: 0}}, nil
	}}

	s, cycles, mu := newTestSupervisor(clock, launcher)

	if err := s.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}

	events := s.Events()
	if len(events) != 7 {
		t.Fatalf("got %d events, want 7 (banner + 3 cycles)", len(events))
	}
	if events[0].Phase != models.PhaseIdle || events[0].Message != "=== bot session started ===" {
		t.Errorf("banner event wrong: %+v", events[0])
	}
	for i := 1; i < len(events); i += 2 {
		if events[i].Phase != models.PhaseLaunching || events[i].Message != "starting bot" {
			t.Errorf("event %d: got %+v, want starting line", i, events[i])
		}
		if events[i+1].Phase != models.PhaseCooldown || events[i+1].Message != "bot stopped, restarting in 10s" {
			t.Errorf("event %d: got %+v, want stop line", i+1, events[i+1])
		}
	}

	sleeps := clock.recorded()
	if len(sleeps) != 3 {
		t.Fatalf("got %d sleeps, want 3", len(sleeps))
	}
	for i, d := range sleeps {
		if d != 10*time.Second {
			t.Errorf("sleep %d = %v, want 10s", i, d)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(*cycles) != 3 {
		t.Fatalf("got %d recorded cycles, want 3", len(*cycles))
	}
	for i, c := range *cycles {
		if c.Seq != i+1 {
			t.Errorf("cycle %d seq = %d, want %d", i, c.Seq, i+1)
		}
		if c.ExitCode != 0 {
			t.Errorf("cycle %d exit = %d, want 0", i, c.ExitCode)
		}
		if c.PID == 0 {
			t.Errorf("cycle %d has no PID", i)
		}
	}

	if got := s.Phase(); got != models.PhaseStopped {
		t.Errorf("final phase = %v, want stopped", got)
	}
}

func TestNonzeroExitStillRestarts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := newFakeClock()
	clock.onSleep = func(n int) {
		if n == 2 {
			cancel()
		}
	}
	launcher := &fakeLauncher{plan: func(n int, _ context.Context) (Process, error) {
		return &fakeProcess{pid: 200 + n, exit: ExitStatus{Code: 7, Err: errors.New("exit status 7")}}, nil
	}}

	s, cycles, mu := newTestSupervisor(clock, launcher)
	s.Run(ctx)

	if launcher.count() != 2 {
		t.Errorf("launches = %d, want 2 (crash must not stop the loop)", launcher.count())
	}

	mu.Lock()
	defer mu.Unlock()
	for i, c := range *cycles {
		if c.ExitCode != 7 {
			t.Errorf("cycle %d exit = %d, want 7", i, c.ExitCode)
		}
	}

	// The stop line is identical to a clean exit: no classification
	events := s.Events()
	last := events[len(events)-1]
	if last.Message != "bot stopped, restarting in 10s" {
		t.Errorf("stop message = %q, want uniform stop line", last.Message)
	}
	if last.ExitCode != 7 {
		t.Errorf("stop event exit code = %d, want 7", last.ExitCode)
	}
}

func TestLaunchFailureTreatedAsExit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := newFakeClock()
	clock.onSleep = func(n int) {
		if n == 2 {
			cancel()
		}
	}
	launcher := &fakeLauncher{plan: func(n int, _ context.Context) (Process, error) {
		return nil, errors.New("exec: no such file or directory")
	}}

	s, cycles, mu := newTestSupervisor(clock, launcher)
	s.Run(ctx)

	// Exactly one starting + one stopped line per attempt, same as a real exit
	events := s.Events()
	if len(events) != 5 {
		t.Fatalf("got %d events, want 5 (banner + 2 attempts)", len(events))
	}
	for i := 1; i < len(events); i += 2 {
		if events[i].Message != "starting bot" {
			t.Errorf("event %d = %q, want starting line", i, events[i].Message)
		}
		if events[i+1].Message != "bot stopped, restarting in 10s" {
			t.Errorf("event %d = %q, want stop line", i+1, events[i+1].Message)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(*cycles) != 2 {
		t.Fatalf("got %d cycles, want 2", len(*cycles))
	}
	for i, c := range *cycles {
		if c.ExitCode != -1 {
			t.Errorf("cycle %d exit = %d, want -1", i, c.ExitCode)
		}
		if c.LaunchError == "" {
			t.Errorf("cycle %d missing launch error", i)
		}
		if c.PID != 0 {
			t.Errorf("cycle %d PID = %d, want 0 (never started)", i, c.PID)
		}
	}
}

func TestCooldownIsConstant(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := newFakeClock()
	clock.onSleep = func(n int) {
		if n == 4 {
			cancel()
		}
	}
	// Mixed outcomes: clean exit, crash, launch failure, clean exit
	launcher := &fakeLauncher{plan: func(n int, _ context.Context) (Process, error) {
		switch n {
		case 2:
			return &fakeProcess{pid: 300 + n, exit: ExitStatus{Code: 3}}, nil
		case 3:
			return nil, errors.New("interpreter missing")
		default:
			return &fakeProcess{pid: 300 + n, exit: ExitStatus{Code: 0}}, nil
		}
	}}

	s, _, _ := newTestSupervisor(clock, launcher)
	s.Run(ctx)

	sleeps := clock.recorded()
	if len(sleeps) != 4 {
		t.Fatalf("got %d sleeps, want 4", len(sleeps))
	}
	for i, d := range sleeps {
		if d != 10*time.Second {
			t.Errorf("sleep %d = %v, want constant 10s (no backoff)", i, d)
		}
	}
}

func TestCancelDuringRunKillsChildQuietly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := newFakeClock()
	launcher := &fakeLauncher{plan: func(n int, lctx context.Context) (Process, error) {
		return &fakeProcess{pid: 400, block: make(chan struct{}), ctx: lctx}, nil
	}}

	s, cycles, mu := newTestSupervisor(clock, launcher)

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	waitForPhase(t, s, models.PhaseRunning)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if got := s.Phase(); got != models.PhaseStopped {
		t.Errorf("final phase = %v, want stopped", got)
	}

	// The killed cycle is recorded, but no restart line is written
	mu.Lock()
	recorded := len(*cycles)
	mu.Unlock()
	if recorded != 1 {
		t.Errorf("recorded cycles = %d, want 1", recorded)
	}
	events := s.Events()
	last := events[len(events)-1]
	if last.Message != "starting bot" {
		t.Errorf("last event = %q, want no stop line after shutdown", last.Message)
	}
}

func TestRestartChild(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := newFakeClock()
	launcher := &fakeLauncher{plan: func(n int, lctx context.Context) (Process, error) {
		return &fakeProcess{
			pid:   500 + n,
			exit:  ExitStatus{Code: -1, Err: errors.New("signal: killed")},
			block: make(chan struct{}),
			ctx:   lctx,
		}, nil
	}}

	s, _, _ := newTestSupervisor(clock, launcher)

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	waitForPhase(t, s, models.PhaseRunning)
	if err := s.RestartChild(); err != nil {
		t.Fatalf("RestartChild: %v", err)
	}

	// The kill runs the ordinary cycle: stop line, cooldown, relaunch
	waitForLaunches(t, launcher, 2)
	waitForPhase(t, s, models.PhaseRunning)

	found := false
	for _, e := range s.Events() {
		if e.Phase == models.PhaseCooldown && e.PID == 501 {
			found = true
		}
	}
	if !found {
		t.Error("no stop event recorded for the killed child")
	}

	cancel()
	<-done
}

func TestRestartChildWithoutChild(t *testing.T) {
	s := New(testConfig(), nil)
	if err := s.RestartChild(); err == nil {
		t.Error("RestartChild() with no child = nil, want error")
	}
}

func TestEventRingIsBounded(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := newFakeClock()
	clock.onSleep = func(n int) {
		if n == 200 {
			cancel()
		}
	}
	launcher := &fakeLauncher{plan: func(n int, _ context.Context) (Process, error) {
		return &fakeProcess{pid: n, exit: ExitStatus{Code: 0}}, nil
	}}

	s, _, _ := newTestSupervisor(clock, launcher)
	s.Run(ctx)

	if got := len(s.Events()); got != maxEvents {
		t.Errorf("event ring holds %d, want capped at %d", got, maxEvents)
	}
}

func TestSnapshotFields(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := newFakeClock()
	launcher := &fakeLauncher{plan: func(n int, lctx context.Context) (Process, error) {
		return &fakeProcess{pid: 600, block: make(chan struct{}), ctx: lctx}, nil
	}}

	s, _, _ := newTestSupervisor(clock, launcher)

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	waitForPhase(t, s, models.PhaseRunning)

	snap := s.Snapshot()
	if snap.Phase != models.PhaseRunning {
		t.Errorf("snapshot phase = %v, want running", snap.Phase)
	}
	if snap.PID != 600 {
		t.Errorf("snapshot pid = %d, want 600", snap.PID)
	}
	if snap.CyclesStarted != 1 || snap.CyclesDone != 0 {
		t.Errorf("snapshot cycles = %d/%d, want 1 started, 0 done", snap.CyclesStarted, snap.CyclesDone)
	}
	if snap.CooldownSecs != 10 {
		t.Errorf("snapshot cooldown = %v, want 10", snap.CooldownSecs)
	}
	if snap.CurrentCycle == nil {
		t.Error("snapshot missing current cycle")
	}
	if snap.SessionID != s.SessionID() {
		t.Errorf("snapshot session = %q, want %q", snap.SessionID, s.SessionID())
	}

	cancel()
	<-done
}

func waitForPhase(t *testing.T, s *Supervisor, want models.Phase) {
	t.Helper()
	for i := 0; i < 200; i++ {
		if s.Phase() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("supervisor never reached phase %s (now %s)", want, s.Phase())
}

func waitForLaunches(t *testing.T, l *fakeLauncher, want int) {
	t.Helper()
	for i := 0; i < 200; i++ {
		if l.count() >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("launcher reached %d launches, want %d", l.count(), want)
}
