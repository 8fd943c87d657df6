package standalone

import (
	"fmt"
	"strconv"

	"github.com/gammadia/batchd/cluster"
	"github.com/samber/lo"
)

// taskEnv returns the environment of a task: the variables of the job, then
// the ones SLURM would set, so that scripts read the same values under both.
func taskEnv(task *Task) []string {
	job := task.Job
	env := lo.Map(job.Env, func(v cluster.EnvVar, _ int) string {
		return v.String()
	})

	set := func(name string, value any) {
		env = append(env, fmt.Sprintf("%s=%v", name, value))
	}

	set("SLURM_JOB_ID", job.ID)
	set("SLURM_JOB_NAME", job.Name)
	set("SLURM_SUBMIT_DIR", job.Dir)
	if job.CPUs > 0 {
		set("SLURM_CPUS_PER_TASK", job.CPUs)
	}

	if job.IsArray() {
		set("SLURM_ARRAY_JOB_ID", job.ID)
		set("SLURM_ARRAY_TASK_ID", strconv.Itoa(task.ArrayIndex))
		set("SLURM_ARRAY_TASK_COUNT", job.ArraySize)
		set("SLURM_ARRAY_TASK_MIN", 1)
		set("SLURM_ARRAY_TASK_MAX", job.ArraySize)
	}

	return env
}
