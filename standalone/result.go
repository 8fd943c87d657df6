package standalone

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gammadia/batchd/cluster"
	"github.com/gammadia/batchd/remote"
	"github.com/gammadia/batchd/standalone/internal/ledger"
)

// JobResult waits for the task to finish, then reads and deletes its output.
// The result of a task can only be read once.
func (s *Scheduler) JobResult(ctx context.Context, job *cluster.Job, arrayIndex int) (*cluster.Result, error) {
	id, err := strconv.ParseInt(job.ClusterID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("job '%s' was not launched", job)
	}
	key := taskKey{id, arrayIndex}

	s.mu.Lock()
	task, ok := s.results[key]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no result for job %d, array index %d", id, arrayIndex)
	}

	select {
	case <-task.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.Lock()
	_, ok = s.results[key]
	delete(s.results, key)
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("result of job %d, array index %d was already read", id, arrayIndex)
	}

	output, err := s.files.Download(ctx, task.OutputPath)
	if errors.Is(err, remote.ErrNotExist) {
		output = ""
	} else if err != nil {
		// Kept for a retry
		s.mu.Lock()
		s.results[key] = task
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to read job output: %w", err)
	} else if err := s.files.Delete(ctx, task.OutputPath); err != nil && !errors.Is(err, remote.ErrNotExist) {
		task.log.Warn("Failed to delete job output", "path", task.OutputPath, "error", err)
	}

	// Task fields are written before done is closed
	switch {
	case task.canceled:
		return &cluster.Result{Type: cluster.ResultCanceled, Output: output, Reason: "canceled"}, nil
	case task.err != nil:
		return &cluster.Result{Type: cluster.ResultFailure, Output: output, Reason: task.err.Error()}, nil
	default:
		return &cluster.Result{Type: cluster.ResultSuccess, Output: output}, nil
	}
}

// WaitingReason explains why the first waiting task of the job is not running.
func (s *Scheduler) WaitingReason(ctx context.Context, launch *cluster.LaunchResult) (string, error) {
	id, err := strconv.ParseInt(launch.JobID, 10, 64)
	if err != nil {
		return "", nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return "", nil
	}

	position := -1
	for i, task := range s.queue {
		if task.Job == job {
			position = i
			break
		}
	}
	if position < 0 {
		return "", nil
	}

	if pending := s.pendingDependencies(job); len(pending) > 0 {
		return fmt.Sprintf("Waiting for dependencies: %s", strings.Join(pending, ", ")), nil
	}
	if !s.pool.Fits(ledger.CPU, job.CPUs) {
		return fmt.Sprintf("Waiting for resources: %d CPUs requested, %d of %d available",
			job.CPUs, s.pool.Available(ledger.CPU), s.pool.Total(ledger.CPU)), nil
	}
	if position > 0 {
		return fmt.Sprintf("Waiting for %d task(s) queued before", position), nil
	}
	return "", nil
}

func (s *Scheduler) MakeFoldersAndWriteFiles(ctx context.Context, folders []string, files []cluster.File) error {
	if len(folders) == 0 && len(files) == 0 {
		return nil
	}

	if err := s.files.MkDirs(ctx, folders...); err != nil {
		return err
	}
	for _, file := range files {
		if err := s.files.Upload(ctx, file.Path, file.Content); err != nil {
			return err
		}
		if file.Executable {
			if err := s.files.MakeExecutable(ctx, file.Path); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Scheduler) DeleteFiles(ctx context.Context, paths []string) error {
	var errs []error
	for _, path := range paths {
		if err := s.files.Delete(ctx, path); err != nil && !errors.Is(err, remote.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
