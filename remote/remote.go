// Package remote defines how the SLURM adapter reaches the machine it submits
// jobs from, and how workspace files are managed there.
package remote

import (
	"context"
	"errors"
)

// ErrNotExist is wrapped by Download and Delete when the file does not exist.
var ErrNotExist = errors.New("file does not exist")

type Remote interface {
	// Run executes a shell command line and returns its combined output. The
	// output is returned even when the command fails.
	Run(ctx context.Context, command string) (string, error)
	MkDirs(ctx context.Context, dirs ...string) error
	Upload(ctx context.Context, path, content string) error
	Download(ctx context.Context, path string) (string, error)
	Delete(ctx context.Context, path string) error
	MakeExecutable(ctx context.Context, path string) error
}
