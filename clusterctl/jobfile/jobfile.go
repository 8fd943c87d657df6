package jobfile

import (
	"fmt"
	"regexp"

	"github.com/gammadia/batchd/cluster"
)

const JobfileVersion = "1"

// Jobfile describes a job in YAML:
//
//	version: "1"
//	name: align
//	dir: /scratch/align
//	args: [--mem=4G, --cpus-per-task=2]
//	env:
//	  SAMPLE: s1
//	array: 10
//	bundle: 2
//	dependencies: ["1234"]
//	script: |
//	  #!/bin/sh
//	  ./align.sh "$SAMPLE" "$SLURM_ARRAY_TASK_ID"
type Jobfile struct {
	path string

	Version      string
	Name         string
	Dir          string
	Args         []string
	Env          map[string]string
	Array        int
	Bundle       int
	Dependencies []string
	Script       string
}

var nameRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]+$`)

func (jobfile Jobfile) Validate() error {
	if jobfile.Version != JobfileVersion {
		return fmt.Errorf("unsupported version '%s'", jobfile.Version)
	}

	if jobfile.Name != "" && !nameRegex.MatchString(jobfile.Name) {
		return fmt.Errorf("name must be a valid identifier")
	}

	if jobfile.Script == "" {
		return fmt.Errorf("script is required")
	}

	if jobfile.Array < 0 {
		return fmt.Errorf("array must not be negative")
	}
	if jobfile.Bundle < 0 {
		return fmt.Errorf("bundle must not be negative")
	}
	if jobfile.Bundle > 0 && jobfile.Array == 0 {
		return fmt.Errorf("bundle requires array")
	}

	for key := range jobfile.Env {
		if !cluster.ValidEnvName(key) {
			return fmt.Errorf("env[%s] must be a valid environment variable identifier", key)
		}
	}

	for i, id := range jobfile.Dependencies {
		if err := cluster.ValidDependencyID(id); err != nil {
			return fmt.Errorf("dependencies[%d]: %w", i, err)
		}
	}

	return nil
}
