package pidfile

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "botkeeper.pid")

	pf, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	pid, err := readPid(path)
	if err != nil {
		t.Fatalf("readPid: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("pidfile holds %d, want %d", pid, os.Getpid())
	}

	if err := pf.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("pidfile still exists after Release")
	}
}

func TestSecondAcquireRefused(t *testing.T) {
	path := filepath.Join(t.TempDir(), "botkeeper.pid")

	pf, err := Acquire(path)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	defer pf.Release()

	// The test process itself is the live holder
	if _, err := Acquire(path); err == nil {
		t.Error("second Acquire succeeded, want refusal while holder is alive")
	}
}

func TestStalePidfileTakenOver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "botkeeper.pid")

	// A PID far above pid_max never names a live process
	if err := os.WriteFile(path, []byte("99999999\n"), 0644); err != nil {
		t.Fatalf("seed stale pidfile: %v", err)
	}

	pf, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire over stale pidfile: %v", err)
	}
	defer pf.Release()

	pid, _ := readPid(path)
	if pid != os.Getpid() {
		t.Errorf("pidfile holds %d, want takeover by %d", pid, os.Getpid())
	}
}

func TestMalformedPidfileTakenOver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "botkeeper.pid")
	if err := os.WriteFile(path, []byte("not a pid"), 0644); err != nil {
		t.Fatalf("seed malformed pidfile: %v", err)
	}

	pf, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire over malformed pidfile: %v", err)
	}
	defer pf.Release()
}

func TestReleaseLeavesForeignPidfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "botkeeper.pid")

	pf, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	// Another instance rewrote the file after a stale takeover
	foreign := strconv.Itoa(os.Getpid() + 1)
	if err := os.WriteFile(path, []byte(foreign+"\n"), 0644); err != nil {
		t.Fatalf("rewrite pidfile: %v", err)
	}

	if err := pf.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("Release removed a pidfile it no longer owns")
	}
}

func TestAcquireCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "nested", "botkeeper.pid")

	pf, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire with missing directory: %v", err)
	}
	defer pf.Release()
}
