package main

import (
	"bytes"
	"os"
	"path"
	"testing"

	"github.com/gammadia/batchd/cluster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	clusterctlCmd.SetOut(&stdout)
	clusterctlCmd.SetErr(&stderr)
	clusterctlCmd.SetArgs(args)
	err := clusterctlCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestGresCommand(t *testing.T) {
	stdout, _, err := execute(t, "gres", "gpu:a100:2", "mem:1K")
	require.NoError(t, err)
	assert.Contains(t, stdout, "name=gpu type=a100 count=2")
	assert.Contains(t, stdout, "name=mem type=- count=1024")

	_, _, err = execute(t, "gres", "gpu:-1")
	assert.Error(t, err)
}

func TestRunStandalone(t *testing.T) {
	dir := t.TempDir()
	file := path.Join(dir, "job.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
version: "1"
name: hello
array: 2
script: |
  #!/bin/sh
  echo "hello $SLURM_ARRAY_TASK_ID"
`), 0o644))

	stdout, stderr, err := execute(t, "run", file, "--backend=standalone", "--no-spinner", "--standalone-cpus=2")
	require.NoError(t, err, stderr)
	assert.Equal(t, "hello 1\nhello 2\n", stdout)
	assert.Contains(t, stderr, "_1: success")
	assert.Contains(t, stderr, "_2: success")
	assert.NoFileExists(t, path.Join(dir, "hello.sh"))
}

func TestCommandsOnSubmittedJobsNeedSlurm(t *testing.T) {
	_, _, err := execute(t, "reason", "42", "--backend=standalone")
	assert.ErrorIs(t, err, errStandaloneOnly)
}

func TestProgressMessage(t *testing.T) {
	launch := &cluster.LaunchResult{JobID: "42"}
	assert.Equal(t, "Job 42 running", progressMessage(launch, "running", ""))
	assert.Equal(t, "Job 42 pending: Waiting for dependencies: 12", progressMessage(launch, "pending", "Waiting for dependencies: 12"))
}
