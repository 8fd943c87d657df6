// Package local implements remote.Remote on the machine running the process.
// It serves development setups where sbatch is reachable locally, and the
// workspace of the standalone scheduler.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path"
	"strings"

	"github.com/gammadia/batchd/remote"
)

type Remote struct {
	root  string
	shell string
	log   *slog.Logger
}

// Remote implements remote.Remote
var _ remote.Remote = (*Remote)(nil)

// New returns a Remote resolving relative paths against root. Absolute paths
// are used as is.
func New(root string, logger *slog.Logger) *Remote {
	return &Remote{
		root:  strings.TrimRight(root, "/"),
		shell: "/bin/sh",
		log:   logger,
	}
}

func (r *Remote) HostPath(p string) string {
	if path.IsAbs(p) || r.root == "" {
		return p
	}
	return path.Join(r.root, p)
}

func (r *Remote) Run(ctx context.Context, command string) (string, error) {
	cmd := exec.CommandContext(ctx, r.shell, "-c", command)
	if r.root != "" {
		cmd.Dir = r.root
	}

	r.log.Debug("Running command", "command", command)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("command failed: %w", err)
	}
	return string(output), nil
}

func (r *Remote) MkDirs(_ context.Context, dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(r.HostPath(dir), 0755); err != nil {
			return fmt.Errorf("failed to create directory '%s': %w", dir, err)
		}
	}
	return nil
}

func (r *Remote) Upload(_ context.Context, p, content string) error {
	if err := os.WriteFile(r.HostPath(p), []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write file '%s': %w", p, err)
	}
	return nil
}

func (r *Remote) Download(_ context.Context, p string) (string, error) {
	content, err := os.ReadFile(r.HostPath(p))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("failed to read file '%s': %w", p, remote.ErrNotExist)
	} else if err != nil {
		return "", fmt.Errorf("failed to read file '%s': %w", p, err)
	}
	return string(content), nil
}

func (r *Remote) Delete(_ context.Context, p string) error {
	err := os.Remove(r.HostPath(p))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove file '%s': %w", p, remote.ErrNotExist)
	} else if err != nil {
		return fmt.Errorf("failed to remove file '%s': %w", p, err)
	}
	return nil
}

func (r *Remote) MakeExecutable(_ context.Context, p string) error {
	info, err := os.Stat(r.HostPath(p))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to stat file '%s': %w", p, remote.ErrNotExist)
	} else if err != nil {
		return fmt.Errorf("failed to stat file '%s': %w", p, err)
	}

	if err := os.Chmod(r.HostPath(p), info.Mode()|0111); err != nil {
		return fmt.Errorf("failed to make file '%s' executable: %w", p, err)
	}
	return nil
}
