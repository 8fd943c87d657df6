package standalone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
)

type ProcessSpec struct {
	// Path of the executable script
	Command string
	Dir     string
	// Added to the environment of the scheduler process
	Env []string
	// Receives both stdout and stderr
	OutputPath string
}

// Launcher starts the process of a task. Start must not block until the
// process exits.
type Launcher interface {
	Start(ctx context.Context, spec ProcessSpec) (Process, error)
}

type Process interface {
	ID() int
	// Wait blocks until the process exits and returns its exit code.
	Wait() (int, error)
	// Kill terminates the process and everything it started.
	Kill() error
}

type ExecLauncher struct {
	log *slog.Logger
}

func NewExecLauncher(logger *slog.Logger) *ExecLauncher {
	return &ExecLauncher{log: logger.With("component", "launcher")}
}

func (l *ExecLauncher) Start(ctx context.Context, spec ProcessSpec) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	output, err := os.OpenFile(spec.OutputPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	// The process outlives the context of the submission
	cmd := exec.Command(spec.Command)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.Stdout = output
	cmd.Stderr = output
	// Own process group, so that Kill reaches the children of the script
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		_ = output.Close()
		return nil, fmt.Errorf("failed to start '%s': %w", spec.Command, err)
	}

	l.log.Debug("Process started", "command", spec.Command, "pid", cmd.Process.Pid)
	return &execProcess{cmd: cmd, output: output}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	output *os.File
}

func (p *execProcess) ID() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	_ = p.output.Close()

	var exitErr *exec.ExitError
	if err == nil || errors.As(err, &exitErr) {
		return p.cmd.ProcessState.ExitCode(), nil
	}
	return -1, err
}

func (p *execProcess) Kill() error {
	err := syscall.Kill(-p.cmd.Process.Pid, syscall.SIGKILL)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}
