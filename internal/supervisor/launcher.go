package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// ExitStatus is the outcome of a finished child
type ExitStatus struct {
	Code int
	Err  error
}

// Process is a launched child the supervisor can wait on or signal
type Process interface {
	PID() int
	// Wait blocks until the child exits and reports its status
	Wait() ExitStatus
	Signal(sig os.Signal) error
}

// Launcher starts the child program. Injected so tests can simulate launch
// failures and scripted exits without spawning real processes.
type Launcher interface {
	Launch(ctx context.Context) (Process, error)
}

// ExecLauncher launches the bot via os/exec: fixed interpreter, the script
// path as its sole argument, a fixed working directory. The child's combined
// stdout and stderr are appended to ChildLog, reopened each launch.
type ExecLauncher struct {
	Interpreter string
	Script      string
	WorkDir     string
	ChildLog    string
}

func NewExecLauncher(interpreter, script, workDir, childLog string) *ExecLauncher {
	return &ExecLauncher{
		Interpreter: interpreter,
		Script:      script,
		WorkDir:     workDir,
		ChildLog:    childLog,
	}
}

// Launch starts the child. The returned Process owns the log handle and
// releases it when Wait observes the exit.
func (l *ExecLauncher) Launch(ctx context.Context) (Process, error) {
	logFile, err := os.OpenFile(l.ChildLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open child log %s: %w", l.ChildLog, err)
	}

	cmd := exec.CommandContext(ctx, l.Interpreter, l.Script)
	cmd.Dir = l.WorkDir

	// Own process group so a supervisor crash does not take the bot down
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    0,
	}

	// Combined stdout+stderr, raw append, no framing
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, fmt.Errorf("failed to start: %w", err)
	}

	return &execProcess{cmd: cmd, logFile: logFile}, nil
}

type execProcess struct {
	cmd     *exec.Cmd
	logFile *os.File
}

func (p *execProcess) PID() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Wait() ExitStatus {
	err := p.cmd.Wait()
	p.logFile.Close()

	if err == nil {
		return ExitStatus{Code: 0}
	}

	code := -1
	if exitErr, ok := err.(*exec.ExitError); ok {
		code = exitErr.ExitCode()
	}
	return ExitStatus{Code: code, Err: err}
}

func (p *execProcess) Signal(sig os.Signal) error {
	return p.cmd.Process.Signal(sig)
}
