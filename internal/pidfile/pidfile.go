package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// PidFile guards against a second supervisor managing the same bot.
// The file holds the daemon's PID; a live PID in an existing file refuses
// the new start, a stale one is replaced.
type PidFile struct {
	path string
	pid  int
}

// Acquire writes the pidfile for the current process. It fails when the
// file names a process that is still alive.
func Acquire(path string) (*PidFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create pidfile directory: %w", err)
	}

	if existing, err := readPid(path); err == nil {
		if processAlive(existing) {
			return nil, fmt.Errorf("another instance is running (pid %d, %s)", existing, path)
		}
		// Stale pidfile from a dead instance, take it over
	}

	pid := os.Getpid()
	if err := writePidAtomic(path, pid); err != nil {
		return nil, err
	}

	return &PidFile{path: path, pid: pid}, nil
}

// Release removes the pidfile. Only the owning instance removes it;
// a file rewritten by someone else is left alone.
func (p *PidFile) Release() error {
	current, err := readPid(p.path)
	if err != nil {
		return nil
	}
	if current != p.pid {
		return nil
	}
	return os.Remove(p.path)
}

// Path returns the pidfile location
func (p *PidFile) Path() string {
	return p.path
}

func readPid(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("malformed pidfile %s: %w", path, err)
	}
	return pid, nil
}

// writePidAtomic writes via tmp file + rename so readers never see a
// partial pid
func writePidAtomic(path string, pid int) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write pidfile: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move pidfile into place: %w", err)
	}
	return nil
}

// processAlive probes the PID with signal 0
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
