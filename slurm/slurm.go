// Package slurm submits jobs to a SLURM cluster through the login node.
package slurm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/alessio/shellescape"
	"github.com/gammadia/batchd/cluster"
	"github.com/gammadia/batchd/remote"
	"github.com/samber/lo"
)

var (
	submittedRegex = regexp.MustCompile(`^Submitted batch job ([0-9]+)`)
	// Written by slurmstepd in the job output when the job is canceled, e.g.
	// "slurmstepd: error: *** JOB 42 ON node1 CANCELLED AT 2023-05-04T10:11:12 DUE TO TIME LIMIT ***"
	cancelledRegex = regexp.MustCompile(`\*\*\* JOB ([0-9]+) ON (\S+) CANCELLED AT (\S+)(?: DUE TO (.+?))? \*\*\*`)
	// squeue prints this on stderr for jobs it no longer knows about
	invalidJobRegex = regexp.MustCompile(`(?i)invalid job id`)
)

type Cluster struct {
	remote remote.Remote
	config Config
	log    *slog.Logger
}

// Cluster implements cluster.Cluster
var _ cluster.Cluster = (*Cluster)(nil)

func New(remote remote.Remote, config Config) *Cluster {
	config = config.withDefaults()
	return &Cluster{
		remote: remote,
		config: config,
		log:    config.Logger,
	}
}

func (c *Cluster) Validate(job *cluster.Job) error {
	if err := cluster.CheckEnv(job.Env); err != nil {
		return err
	}
	return cluster.CheckArgs(job.Args, c.config.Queues)
}

func (c *Cluster) ValidateDependency(id string) error {
	return cluster.ValidDependencyID(id)
}

func (c *Cluster) MakeFoldersAndWriteFiles(ctx context.Context, folders []string, files []cluster.File) error {
	if len(folders) == 0 && len(files) == 0 {
		return nil
	}

	if err := c.remote.MkDirs(ctx, folders...); err != nil {
		return err
	}

	for _, file := range files {
		if err := c.remote.Upload(ctx, file.Path, file.Content); err != nil {
			return err
		}
		if file.Executable {
			if err := c.remote.MakeExecutable(ctx, file.Path); err != nil {
				return err
			}
		}
	}

	return nil
}

func (c *Cluster) Launch(ctx context.Context, job *cluster.Job, depIDs []string, scriptPath string) (*cluster.LaunchResult, error) {
	if err := c.Validate(job); err != nil {
		return nil, err
	}
	for _, id := range depIDs {
		if err := c.ValidateDependency(id); err != nil {
			return nil, err
		}
	}

	command := c.submitCommand(job, depIDs, scriptPath)
	log := c.log.With("job", job.String())

	// The job might have been canceled while its files were being prepared:
	// don't submit something that would be killed right away.
	if job.WasCanceled() {
		log.Info("Job canceled before launch, skipping submission")
		return nil, cluster.ErrCanceledBeforeLaunch
	}

	log.Debug("Submitting job", "command", command)
	console, runErr := c.remote.Run(ctx, command)

	firstLine, _, _ := strings.Cut(strings.TrimLeft(console, "\n"), "\n")
	matches := submittedRegex.FindStringSubmatch(strings.TrimSpace(firstLine))
	if matches == nil {
		err := &cluster.LaunchError{
			Command: command,
			Console: console,
			Err:     lo.Ternary(runErr != nil, runErr, errors.New("unexpected sbatch response")),
		}
		log.Error("Job submission failed", "command", command, "console", console, "error", runErr)
		return nil, err
	}

	log.Info("Job submitted", "cluster-id", matches[1])
	return &cluster.LaunchResult{
		JobID:   matches[1],
		Console: console,
		Command: command,
	}, nil
}

// State returns the SLURM state of the job (PENDING, RUNNING...), or an empty
// string once squeue no longer knows about it.
func (c *Cluster) State(ctx context.Context, launch *cluster.LaunchResult) (string, error) {
	state, _, err := c.queue(ctx, launch.JobID)
	return state, err
}

func (c *Cluster) WaitingReason(ctx context.Context, launch *cluster.LaunchResult) (string, error) {
	state, code, err := c.queue(ctx, launch.JobID)
	if err != nil || state == "" {
		return "", err
	}
	return describeReason(code), nil
}

// describeReason turns the reason column of squeue into a sentence, e.g.
// "ReqNodeNotAvail, UnavailableNodes:node[01-02]".
func describeReason(code string) string {
	reasonCode, details, _ := strings.Cut(code, ",")
	reason := Reason(strings.TrimSpace(reasonCode))
	if reason == "" || reason == ReasonNone {
		return ""
	}

	description := reason.Description()
	if details = strings.TrimSpace(details); details != "" {
		description = fmt.Sprintf("%s (%s)", description, details)
	}
	return description
}

// queue asks squeue for the state and the reason code of a job.
func (c *Cluster) queue(ctx context.Context, jobID string) (string, string, error) {
	command := shellescape.QuoteCommand([]string{
		c.config.Squeue,
		"--noheader",
		"--jobs=" + jobID,
		"--format=%T|%r",
	})

	output, err := c.remote.Run(ctx, command)
	if err != nil {
		if invalidJobRegex.MatchString(output) {
			return "", "", nil
		}
		return "", "", fmt.Errorf("failed to query job '%s': %w", jobID, err)
	}

	// Array jobs have one line per pending range or running element
	for _, line := range strings.Split(output, "\n") {
		if state, reason, found := strings.Cut(strings.TrimSpace(line), "|"); found {
			return state, reason, nil
		}
	}
	return "", "", nil
}

// Wait polls squeue until the job left the queue. progress, when not nil,
// receives the state of the job and why it waits after each poll.
func (c *Cluster) Wait(ctx context.Context, launch *cluster.LaunchResult, interval time.Duration, progress func(state, reason string)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		state, code, err := c.queue(ctx, launch.JobID)
		if err != nil {
			c.log.Warn("Failed to query job state", "cluster-id", launch.JobID, "error", err)
		} else if state == "" {
			return nil
		} else if progress != nil {
			progress(state, describeReason(code))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Cluster) Cancel(ctx context.Context, jobs []*cluster.Job) error {
	ids := lo.FilterMap(jobs, func(job *cluster.Job, _ int) (string, bool) {
		return job.ClusterID, job.ClusterID != ""
	})
	if len(ids) == 0 {
		return nil
	}

	command := shellescape.QuoteCommand(append([]string{c.config.Scancel}, ids...))
	c.log.Info("Canceling jobs", "cluster-ids", ids)

	output, err := c.remote.Run(ctx, command)
	if err != nil {
		// Jobs which already ended are exactly what we wanted
		if invalidJobRegex.MatchString(output) {
			c.log.Debug("Some jobs were already gone", "output", output)
			return nil
		}
		return fmt.Errorf("failed to cancel jobs %s: %w\n%s", strings.Join(ids, ", "), err, output)
	}
	return nil
}

func (c *Cluster) JobResult(ctx context.Context, job *cluster.Job, arrayIndex int) (*cluster.Result, error) {
	if job.ClusterID == "" {
		return nil, fmt.Errorf("job '%s' was not launched", job)
	}

	outputPath := cluster.OutputPath(job.Dir, job.ClusterID, arrayIndex)
	log := c.log.With("job", job.String(), "cluster-id", job.ClusterID, "array-index", arrayIndex)

	output, err := c.remote.Download(ctx, outputPath)
	if errors.Is(err, remote.ErrNotExist) {
		log.Debug("Job output not found, the job did not write anything", "path", outputPath)
		return &cluster.Result{Type: cluster.ResultSuccess}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to download job output: %w", err)
	}

	if err := c.remote.Delete(ctx, outputPath); err != nil && !errors.Is(err, remote.ErrNotExist) {
		log.Warn("Failed to delete job output", "path", outputPath, "error", err)
	}

	return classifyOutput(output), nil
}

// classifyOutput looks for the cancellation banner of slurmstepd. Jobs without
// it are successful: exit codes are for the caller to interpret.
func classifyOutput(output string) *cluster.Result {
	for _, line := range strings.Split(output, "\n") {
		if matches := cancelledRegex.FindStringSubmatch(line); matches != nil {
			return &cluster.Result{
				Type:   cluster.ResultCanceled,
				Output: output,
				Reason: strings.TrimSpace(matches[4]),
			}
		}
	}
	return &cluster.Result{Type: cluster.ResultSuccess, Output: output}
}

func (c *Cluster) DeleteFiles(ctx context.Context, paths []string) error {
	var errs []error
	for _, path := range paths {
		if err := c.remote.Delete(ctx, path); err != nil && !errors.Is(err, remote.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
