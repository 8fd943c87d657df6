package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gammadia/batchd/cluster"
	"github.com/gammadia/batchd/clusterctl/flags"
	"github.com/gammadia/batchd/clusterctl/jobfile"
	"github.com/gammadia/batchd/clusterctl/log"
	"github.com/gammadia/batchd/clusterctl/ui"
	"github.com/gammadia/batchd/slurm"
	"github.com/gammadia/batchd/standalone"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var submitCmd = &cobra.Command{
	Use:   "submit JOBFILE",
	Short: "Submit a job and print its id",
	Long:  "Submit a job and print its id. Standalone jobs run in this process, so the command waits for them.",
	Args:  cobra.ExactArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		c, submission, launch, err := submitJobfile(cmd, args[0])
		if err != nil {
			return err
		}

		if _, ok := c.(*standalone.Scheduler); ok {
			return await(cmd, c, submission, launch)
		}
		cmd.Println(launch.JobID)
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run JOBFILE",
	Short: "Submit a job, wait for it to end and print its output",
	Args:  cobra.ExactArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		c, submission, launch, err := submitJobfile(cmd, args[0])
		if err != nil {
			return err
		}
		return await(cmd, c, submission, launch)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{submitCmd, runCmd} {
		cmd.Flags().String("name", "", "override the name of the job")
		cmd.Flags().StringSlice("after", nil, "ids of the jobs (or job_index array elements) to wait for")
	}
}

func submitJobfile(cmd *cobra.Command, file string) (cluster.Cluster, *jobfile.Submission, *cluster.LaunchResult, error) {
	ctx := cmd.Context()

	submission, err := jobfile.Read(file, jobfile.Overrides{
		Name:         lo.Must(cmd.Flags().GetString("name")),
		Dependencies: lo.Must(cmd.Flags().GetStringSlice("after")),
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read jobfile '%s': %w", file, err)
	}

	c, err := connect(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	launch, err := submit(ctx, c, submission)
	if err != nil {
		return nil, nil, nil, err
	}
	return c, submission, launch, nil
}

func submit(ctx context.Context, c cluster.Cluster, submission *jobfile.Submission) (*cluster.LaunchResult, error) {
	job := submission.Job
	// An interruption while the files are written must not leave a job behind
	job.Log = cluster.JobLogFunc(func() bool { return ctx.Err() != nil })

	if err := c.Validate(job); err != nil {
		return nil, err
	}
	for _, id := range submission.Dependencies {
		if err := c.ValidateDependency(id); err != nil {
			return nil, err
		}
	}

	if err := c.MakeFoldersAndWriteFiles(ctx, submission.Folders(), []cluster.File{submission.Script}); err != nil {
		return nil, fmt.Errorf("failed to write job files: %w", err)
	}

	launch, err := c.Launch(ctx, job, submission.Dependencies, submission.Script.Path)
	if errors.Is(err, cluster.ErrCanceledBeforeLaunch) {
		cleanup(c, submission)
		return nil, fmt.Errorf("job '%s' not submitted: interrupted", job.Name)
	} else if err != nil {
		return nil, err
	}

	job.ClusterID = launch.JobID
	log.Debug("Job submitted", "job", job.Name, "cluster-id", launch.JobID)
	return launch, nil
}

// await waits for every task of the job, then prints their outputs on stdout
// and their outcome on stderr. An interruption cancels the job.
func await(cmd *cobra.Command, c cluster.Cluster, submission *jobfile.Submission, launch *cluster.LaunchResult) error {
	ctx := cmd.Context()
	job := submission.Job
	spin := ui.NewSpinner(fmt.Sprintf("Job %s submitted", launch.JobID), !noSpinner)

	if err := waitForEnd(ctx, c, launch, spin); err != nil {
		if ctx.Err() == nil {
			spin.Done(cluster.ResultFailure, fmt.Sprintf("Failed to wait for job %s", launch.JobID))
			return err
		}

		spin.Done(cluster.ResultCanceled, fmt.Sprintf("Interrupted, canceling job %s", launch.JobID))
		ctx = context.WithoutCancel(ctx)
		if err := c.Cancel(ctx, []*cluster.Job{job}); err != nil {
			return err
		}
		// SLURM writes the outputs of canceled jobs a bit later
		if c, ok := c.(*slurm.Cluster); ok {
			if err := c.Wait(ctx, launch, viper.GetDuration(flags.PollInterval), nil); err != nil {
				return err
			}
		}
	} else {
		spin.Done(cluster.ResultSuccess, fmt.Sprintf("Job %s ended", launch.JobID))
	}

	indices := []int{cluster.NoArrayIndex}
	if job.IsArray() {
		indices = lo.RangeFrom(1, job.ArraySize)
	}

	succeeded := true
	for _, index := range indices {
		result, err := c.JobResult(ctx, job, index)
		if err != nil {
			return err
		}
		printResult(cmd, launch.JobID, index, result)
		succeeded = succeeded && result.Type == cluster.ResultSuccess
	}

	cleanup(c, submission)
	if !succeeded {
		return fmt.Errorf("job %s did not succeed", launch.JobID)
	}
	return nil
}

func waitForEnd(ctx context.Context, c cluster.Cluster, launch *cluster.LaunchResult, spin *ui.Spinner) error {
	interval := viper.GetDuration(flags.PollInterval)

	switch c := c.(type) {
	case *slurm.Cluster:
		return c.Wait(ctx, launch, interval, func(state, reason string) {
			spin.Update(progressMessage(launch, strings.ToLower(state), reason))
		})

	case *standalone.Scheduler:
		events, unsub := c.Subscribe()
		defer unsub()

		if c.Completed(launch) {
			return nil
		}
		id := launch.JobID

		for {
			if reason, err := c.WaitingReason(ctx, launch); err == nil && reason != "" {
				spin.Update(progressMessage(launch, "pending", reason))
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case event := <-events:
				switch event := event.(type) {
				case standalone.EventTaskRunning:
					if fmt.Sprint(event.Job) == id {
						spin.Update(progressMessage(launch, "running", ""))
					}
				case standalone.EventJobCompleted:
					if fmt.Sprint(event.Job) == id {
						return nil
					}
				}
			}
		}

	default:
		return fmt.Errorf("cannot wait for jobs of %T", c)
	}
}

func progressMessage(launch *cluster.LaunchResult, state, reason string) string {
	if reason == "" {
		return fmt.Sprintf("Job %s %s", launch.JobID, state)
	}
	return fmt.Sprintf("Job %s %s: %s", launch.JobID, state, reason)
}

func printResult(cmd *cobra.Command, jobID string, index int, result *cluster.Result) {
	cmd.Print(result.Output)

	name := jobID
	if index != cluster.NoArrayIndex {
		name = fmt.Sprintf("%s_%d", jobID, index)
	}
	line := fmt.Sprintf("%s %s: %s", ui.Symbol(result.Type), name, result.Type)
	if result.Reason != "" {
		line += fmt.Sprintf(" (%s)", result.Reason)
	}
	cmd.PrintErrln(line)
}

func cleanup(c cluster.Cluster, submission *jobfile.Submission) {
	if err := c.DeleteFiles(context.Background(), []string{submission.Script.Path}); err != nil {
		log.Warn("Failed to delete job script", "path", submission.Script.Path, "error", err)
	}
}
