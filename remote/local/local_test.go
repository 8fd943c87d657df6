package local

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path"
	"testing"

	"github.com/gammadia/batchd/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var silentLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestFiles(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	r := New(root, silentLogger)

	require.NoError(t, r.MkDirs(ctx, "jobs/a", "jobs/b"))
	assert.DirExists(t, path.Join(root, "jobs/a"))
	assert.DirExists(t, path.Join(root, "jobs/b"))

	require.NoError(t, r.Upload(ctx, "jobs/a/run.sh", "#!/bin/sh\necho hello\n"))
	require.NoError(t, r.MakeExecutable(ctx, "jobs/a/run.sh"))

	info, err := os.Stat(path.Join(root, "jobs/a/run.sh"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0100, "file should be executable")

	content, err := r.Download(ctx, path.Join(root, "jobs/a/run.sh"))
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\necho hello\n", content)

	require.NoError(t, r.Delete(ctx, "jobs/a/run.sh"))
	assert.NoFileExists(t, path.Join(root, "jobs/a/run.sh"))
}

func TestMissingFiles(t *testing.T) {
	ctx := context.Background()
	r := New(t.TempDir(), silentLogger)

	_, err := r.Download(ctx, "missing.out")
	assert.ErrorIs(t, err, remote.ErrNotExist)

	assert.ErrorIs(t, r.Delete(ctx, "missing.out"), remote.ErrNotExist)
	assert.ErrorIs(t, r.MakeExecutable(ctx, "missing.sh"), remote.ErrNotExist)
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	r := New(root, silentLogger)

	output, err := r.Run(ctx, "echo hello; echo oops >&2")
	require.NoError(t, err)
	assert.Contains(t, output, "hello\n")
	assert.Contains(t, output, "oops\n")

	output, err = r.Run(ctx, "pwd")
	require.NoError(t, err)
	assert.Equal(t, root+"\n", output)

	output, err = r.Run(ctx, "echo failing; exit 3")
	assert.Error(t, err)
	assert.Equal(t, "failing\n", output)
}
