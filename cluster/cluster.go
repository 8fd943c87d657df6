// Package cluster defines the contract every job execution backend implements,
// along with the job description and outcome types shared by all of them.
package cluster

import (
	"context"
)

// Cluster is implemented by the SLURM adapter and by the standalone scheduler.
// Callers depend on nothing else.
type Cluster interface {
	// Validate rejects jobs whose arguments try to control what the cluster
	// itself controls (output files, working directory, arrays, dependencies)
	// or that name an unknown queue.
	Validate(job *Job) error

	// ValidateDependency checks the syntax of a dependency id. It is cheap.
	ValidateDependency(id string) error

	// MakeFoldersAndWriteFiles ensures that the folders exist and that the
	// files are written before a submission. It does nothing on empty input.
	MakeFoldersAndWriteFiles(ctx context.Context, folders []string, files []File) error

	// Launch submits the job. It returns ErrCanceledBeforeLaunch if the job log
	// reports the job as canceled right before submission, and a *LaunchError
	// if the acknowledgment of the backend could not be understood.
	Launch(ctx context.Context, job *Job, depIDs []string, scriptPath string) (*LaunchResult, error)

	// WaitingReason describes why a submitted job has not started yet.
	// It returns an empty string when no reason can be determined.
	WaitingReason(ctx context.Context, launch *LaunchResult) (string, error)

	// Cancel asks the backend to stop the jobs and returns once asked.
	// Jobs without a ClusterID are skipped.
	Cancel(ctx context.Context, jobs []*Job) error

	// JobResult returns the outcome of the job, or of one of its array
	// elements when arrayIndex is not NoArrayIndex, and removes the output
	// file of the backend once read.
	JobResult(ctx context.Context, job *Job, arrayIndex int) (*Result, error)

	// DeleteFiles removes files. A missing file is not an error.
	DeleteFiles(ctx context.Context, paths []string) error
}

// File is written by MakeFoldersAndWriteFiles.
type File struct {
	Path       string
	Content    string
	Executable bool
}
