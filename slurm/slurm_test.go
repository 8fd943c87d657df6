package slurm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gammadia/batchd/cluster"
	"github.com/gammadia/batchd/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock remote ---

type mockRemote struct {
	// Answers commands, by default with an empty output
	runFunc func(command string) (string, error)

	mu       sync.Mutex
	commands []string
	files    map[string]string
	execs    []string
	dirs     []string
}

func newMockRemote() *mockRemote {
	return &mockRemote{files: make(map[string]string)}
}

func (r *mockRemote) Run(_ context.Context, command string) (string, error) {
	r.mu.Lock()
	r.commands = append(r.commands, command)
	r.mu.Unlock()

	if r.runFunc != nil {
		return r.runFunc(command)
	}
	return "", nil
}

func (r *mockRemote) MkDirs(_ context.Context, dirs ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirs = append(r.dirs, dirs...)
	return nil
}

func (r *mockRemote) Upload(_ context.Context, path, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[path] = content
	return nil
}

func (r *mockRemote) Download(_ context.Context, path string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	content, ok := r.files[path]
	if !ok {
		return "", remote.ErrNotExist
	}
	return content, nil
}

func (r *mockRemote) Delete(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[path]; !ok {
		return remote.ErrNotExist
	}
	delete(r.files, path)
	return nil
}

func (r *mockRemote) MakeExecutable(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[path]; !ok {
		return remote.ErrNotExist
	}
	r.execs = append(r.execs, path)
	return nil
}

func (r *mockRemote) getCommands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commands...)
}

// --- Helpers ---

var silentLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

func newTestCluster(r remote.Remote) *Cluster {
	return New(r, Config{
		Logger:       silentLogger,
		Queues:       []string{"main", "gpu"},
		DefaultQueue: "main",
	})
}

func submitted(id string) func(string) (string, error) {
	return func(string) (string, error) {
		return "Submitted batch job " + id + "\n", nil
	}
}

// --- Tests ---

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Validate(Config{}))
	assert.NoError(t, Validate(Config{Queues: []string{"main"}, DefaultQueue: "main"}))
	assert.NoError(t, Validate(Config{DefaultQueue: "main"}))
	assert.EqualError(t, Validate(Config{Queues: []string{"main", "main"}}), "queues must be unique")
	assert.EqualError(t,
		Validate(Config{Queues: []string{"main"}, DefaultQueue: "gpu"}),
		"default-queue 'gpu' must be one of the queues",
	)
}

func TestSubmitCommand(t *testing.T) {
	c := newTestCluster(newMockRemote())

	job := &cluster.Job{
		Name:       "ctf",
		Dir:        "/work",
		Args:       []string{"--mem=1G", ""},
		Env:        []cluster.EnvVar{{Name: "A", Value: "x y"}},
		ArraySize:  3,
		BundleSize: 2,
	}
	assert.Equal(t,
		"export A='x y'; sbatch --output=/work/cluster-%A_%a.out --chdir=/work --mem=1G --dependency=afterany:1,2_3 --partition=main --array=1-3%2 --job-name=ctf /work/run.sh",
		c.submitCommand(job, []string{"1", "2_3"}, "/work/run.sh"),
	)
}

func TestSubmitCommandKeepsExplicitQueue(t *testing.T) {
	c := newTestCluster(newMockRemote())

	job := &cluster.Job{Dir: "/work", Args: []string{"-p", "gpu", "--comment=two words"}}
	assert.Equal(t,
		"sbatch --output=/work/cluster-%j.out --chdir=/work -p gpu '--comment=two words' '/work/my script.sh'",
		c.submitCommand(job, nil, "/work/my script.sh"),
	)
}

func TestLaunch(t *testing.T) {
	r := newMockRemote()
	r.runFunc = submitted("4242")
	c := newTestCluster(r)

	job := &cluster.Job{Name: "ctf", Dir: "/work"}
	result, err := c.Launch(context.Background(), job, []string{"12"}, "/work/run.sh")
	require.NoError(t, err)

	assert.Equal(t, "4242", result.JobID)
	assert.Equal(t, "Submitted batch job 4242\n", result.Console)
	assert.Equal(t, r.getCommands(), []string{result.Command})
}

func TestLaunchUnexpectedResponse(t *testing.T) {
	r := newMockRemote()
	r.runFunc = func(string) (string, error) {
		return "sbatch: error: invalid partition specified: nope\n", errors.New("exit status 1")
	}
	c := newTestCluster(r)

	_, err := c.Launch(context.Background(), &cluster.Job{Dir: "/work"}, nil, "/work/run.sh")

	var launchErr *cluster.LaunchError
	require.ErrorAs(t, err, &launchErr)
	assert.Equal(t, "sbatch --output=/work/cluster-%j.out --chdir=/work --partition=main /work/run.sh", launchErr.Command)
	assert.Equal(t, "sbatch: error: invalid partition specified: nope\n", launchErr.Console)
	assert.Contains(t, err.Error(), "exit status 1")
	assert.Contains(t, err.Error(), "invalid partition specified")

	r.runFunc = func(string) (string, error) { return "Something else\n", nil }
	_, err = c.Launch(context.Background(), &cluster.Job{Dir: "/work"}, nil, "/work/run.sh")
	require.ErrorAs(t, err, &launchErr)
	assert.Contains(t, err.Error(), "unexpected sbatch response")
}

func TestLaunchValidation(t *testing.T) {
	r := newMockRemote()
	c := newTestCluster(r)
	ctx := context.Background()

	var validationErr *cluster.ValidationError

	_, err := c.Launch(ctx, &cluster.Job{Args: []string{"--array=1-4"}}, nil, "run.sh")
	assert.ErrorAs(t, err, &validationErr)

	_, err = c.Launch(ctx, &cluster.Job{Args: []string{"--partition=nope"}}, nil, "run.sh")
	assert.ErrorAs(t, err, &validationErr)

	_, err = c.Launch(ctx, &cluster.Job{}, []string{"12_x"}, "run.sh")
	assert.ErrorAs(t, err, &validationErr)

	_, err = c.Launch(ctx, &cluster.Job{Env: []cluster.EnvVar{{Name: "A; rm -rf ~", Value: "x"}}}, nil, "run.sh")
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "invalid environment variable name 'A; rm -rf ~'", validationErr.Reason)

	assert.Empty(t, r.getCommands(), "nothing is submitted when validation fails")
}

func TestLaunchSkipsCanceledJob(t *testing.T) {
	r := newMockRemote()
	r.runFunc = submitted("1")
	c := newTestCluster(r)

	job := &cluster.Job{Dir: "/work", Log: cluster.JobLogFunc(func() bool { return true })}
	_, err := c.Launch(context.Background(), job, nil, "/work/run.sh")

	assert.ErrorIs(t, err, cluster.ErrCanceledBeforeLaunch)
	assert.Empty(t, r.getCommands())
}

func TestJobResult(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   cluster.Result
	}{
		{
			name:   "success",
			output: "hello\n",
			want:   cluster.Result{Type: cluster.ResultSuccess, Output: "hello\n"},
		},
		{
			name:   "canceled with reason",
			output: "working\nslurmstepd: error: *** JOB 42 ON node1 CANCELLED AT 2023-05-04T10:11:12 DUE TO TIME LIMIT ***\n",
			want: cluster.Result{
				Type:   cluster.ResultCanceled,
				Output: "working\nslurmstepd: error: *** JOB 42 ON node1 CANCELLED AT 2023-05-04T10:11:12 DUE TO TIME LIMIT ***\n",
				Reason: "TIME LIMIT",
			},
		},
		{
			name:   "canceled without reason",
			output: "slurmstepd: error: *** JOB 42 ON node1 CANCELLED AT 2023-05-04T10:11:12 ***\n",
			want: cluster.Result{
				Type:   cluster.ResultCanceled,
				Output: "slurmstepd: error: *** JOB 42 ON node1 CANCELLED AT 2023-05-04T10:11:12 ***\n",
			},
		},
		{
			name:   "banner lookalike",
			output: "*** JOB CANCELLED ***\n",
			want:   cluster.Result{Type: cluster.ResultSuccess, Output: "*** JOB CANCELLED ***\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newMockRemote()
			r.files["/work/cluster-42.out"] = tt.output
			c := newTestCluster(r)

			result, err := c.JobResult(context.Background(), &cluster.Job{Dir: "/work", ClusterID: "42"}, cluster.NoArrayIndex)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *result)
			assert.NotContains(t, r.files, "/work/cluster-42.out", "output must be deleted once read")
		})
	}
}

func TestJobResultOfArrayElement(t *testing.T) {
	r := newMockRemote()
	r.files["/work/cluster-42_3.out"] = "third\n"
	c := newTestCluster(r)

	result, err := c.JobResult(context.Background(), &cluster.Job{Dir: "/work", ClusterID: "42", ArraySize: 3}, 3)
	require.NoError(t, err)
	assert.Equal(t, "third\n", result.Output)
}

func TestJobResultWithoutOutput(t *testing.T) {
	c := newTestCluster(newMockRemote())

	result, err := c.JobResult(context.Background(), &cluster.Job{Dir: "/work", ClusterID: "42"}, cluster.NoArrayIndex)
	require.NoError(t, err)
	assert.Equal(t, cluster.Result{Type: cluster.ResultSuccess}, *result)

	_, err = c.JobResult(context.Background(), &cluster.Job{Dir: "/work"}, cluster.NoArrayIndex)
	assert.Error(t, err, "jobs which were not launched have no result")
}

func TestWaitingReason(t *testing.T) {
	tests := []struct {
		name   string
		output string
		err    error
		want   string
	}{
		{"known reason", "PENDING|Dependency\n", nil, "This job is waiting for a dependent job to complete"},
		{"reason with details", "PENDING|ReqNodeNotAvail, UnavailableNodes:node[01-02]\n", nil, ReasonReqNodeNotAvail.Description() + " (UnavailableNodes:node[01-02])"},
		{"unknown reason", "PENDING|SomethingNew\n", nil, "SomethingNew"},
		{"no reason", "RUNNING|None\n", nil, ""},
		{"gone", "", nil, ""},
		{"invalid job id", "slurm_load_jobs error: Invalid job id specified\n", errors.New("exit status 1"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newMockRemote()
			r.runFunc = func(string) (string, error) { return tt.output, tt.err }
			c := newTestCluster(r)

			reason, err := c.WaitingReason(context.Background(), &cluster.LaunchResult{JobID: "42"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, reason)
			assert.Equal(t, []string{"squeue --noheader --jobs=42 '--format=%T|%r'"}, r.getCommands())
		})
	}
}

func TestWaitingReasonFailure(t *testing.T) {
	r := newMockRemote()
	r.runFunc = func(string) (string, error) { return "connection refused", errors.New("exit status 1") }
	c := newTestCluster(r)

	_, err := c.WaitingReason(context.Background(), &cluster.LaunchResult{JobID: "42"})
	assert.Error(t, err)
}

func TestCancel(t *testing.T) {
	r := newMockRemote()
	c := newTestCluster(r)
	ctx := context.Background()

	require.NoError(t, c.Cancel(ctx, nil))
	require.NoError(t, c.Cancel(ctx, []*cluster.Job{{Name: "not launched"}}))
	assert.Empty(t, r.getCommands())

	require.NoError(t, c.Cancel(ctx, []*cluster.Job{{ClusterID: "1"}, {}, {ClusterID: "2"}}))
	assert.Equal(t, []string{"scancel 1 2"}, r.getCommands())

	r.runFunc = func(string) (string, error) {
		return "scancel: error: Kill job error on job id 1: Invalid job id specified\n", errors.New("exit status 1")
	}
	assert.NoError(t, c.Cancel(ctx, []*cluster.Job{{ClusterID: "1"}}), "jobs already gone are not an error")

	r.runFunc = func(string) (string, error) { return "", errors.New("connection lost") }
	assert.Error(t, c.Cancel(ctx, []*cluster.Job{{ClusterID: "1"}}))
}

func TestMakeFoldersAndWriteFiles(t *testing.T) {
	r := newMockRemote()
	c := newTestCluster(r)
	ctx := context.Background()

	require.NoError(t, c.MakeFoldersAndWriteFiles(ctx, nil, nil))
	assert.Empty(t, r.dirs)

	require.NoError(t, c.MakeFoldersAndWriteFiles(ctx, []string{"/work/a"}, []cluster.File{
		{Path: "/work/a/run.sh", Content: "#!/bin/sh\n", Executable: true},
		{Path: "/work/a/input.txt", Content: "data"},
	}))
	assert.Equal(t, []string{"/work/a"}, r.dirs)
	assert.Equal(t, "data", r.files["/work/a/input.txt"])
	assert.Equal(t, []string{"/work/a/run.sh"}, r.execs)
}

func TestDeleteFiles(t *testing.T) {
	r := newMockRemote()
	r.files["/work/a"] = "a"
	c := newTestCluster(r)

	require.NoError(t, c.DeleteFiles(context.Background(), []string{"/work/a", "/work/missing"}))
	assert.Empty(t, r.files)
}

func TestReasonDescription(t *testing.T) {
	assert.Equal(t, "The job is waiting for resources to become available", ReasonResources.Description())
	assert.Equal(t, "Whatever", Reason("Whatever").Description())
	assert.True(t, strings.HasPrefix(ReasonDependency.Description(), "This job is waiting"))
}

func TestWait(t *testing.T) {
	r := newMockRemote()
	polls := 0
	r.runFunc = func(string) (string, error) {
		polls++
		switch polls {
		case 1:
			return "PENDING|Priority\n", nil
		case 2:
			return "RUNNING|None\n", nil
		default:
			return "", nil
		}
	}
	c := newTestCluster(r)

	var states, reasons []string
	err := c.Wait(context.Background(), &cluster.LaunchResult{JobID: "42"}, time.Millisecond, func(state, reason string) {
		states = append(states, state)
		reasons = append(reasons, reason)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"PENDING", "RUNNING"}, states)
	assert.Equal(t, []string{ReasonPriority.Description(), ""}, reasons)

	state, err := c.State(context.Background(), &cluster.LaunchResult{JobID: "42"})
	require.NoError(t, err)
	assert.Empty(t, state)
}

func TestWaitStopsWithContext(t *testing.T) {
	r := newMockRemote()
	r.runFunc = func(string) (string, error) { return "PENDING|Resources\n", nil }
	c := newTestCluster(r)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.Wait(ctx, &cluster.LaunchResult{JobID: "42"}, time.Millisecond, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
