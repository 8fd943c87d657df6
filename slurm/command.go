package slurm

import (
	"fmt"
	"strings"

	"github.com/alessio/shellescape"
	"github.com/gammadia/batchd/cluster"
	"github.com/samber/lo"
)

// submitCommand builds the shell command line submitting job with sbatch.
func (c *Cluster) submitCommand(job *cluster.Job, depIDs []string, scriptPath string) string {
	var b strings.Builder

	for _, env := range job.Env {
		fmt.Fprintf(&b, "export %s=%s; ", env.Name, shellescape.Quote(env.Value))
	}

	args := []string{
		c.config.Sbatch,
		"--output=" + cluster.OutputMask(job.Dir, job.IsArray()),
	}
	if job.Dir != "" {
		args = append(args, "--chdir="+job.Dir)
	}

	// sbatch chokes on empty arguments
	args = append(args, lo.WithoutEmpty(job.Args)...)

	if len(depIDs) > 0 {
		args = append(args, "--dependency=afterany:"+strings.Join(depIDs, ","))
	}

	if c.config.DefaultQueue != "" && !cluster.HasQueueArg(job.Args) {
		args = append(args, "--partition="+c.config.DefaultQueue)
	}

	if job.IsArray() {
		array := fmt.Sprintf("--array=1-%d", job.ArraySize)
		if job.BundleSize > 0 {
			array += fmt.Sprintf("%%%d", job.BundleSize)
		}
		args = append(args, array)
	}

	if job.Name != "" {
		args = append(args, "--job-name="+job.Name)
	}

	args = append(args, scriptPath)

	b.WriteString(shellescape.QuoteCommand(args))
	return b.String()
}
