package jobfile

import (
	"fmt"
	"os"
	"path"
	"sort"

	"github.com/gammadia/batchd/cluster"
	"github.com/gammadia/batchd/namegen"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

type Overrides struct {
	Name         string
	Dependencies []string
}

// Submission is everything needed to submit a jobfile to a cluster.
type Submission struct {
	Job          *cluster.Job
	Dependencies []string
	Script       cluster.File
}

func (s *Submission) Folders() []string {
	return []string{s.Job.Dir}
}

type UnmarshalError struct {
	error
	Source string
}

func Read(p string, overrides Overrides) (*Submission, error) {
	buf, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var jobfile Jobfile
	if err := yaml.Unmarshal(buf, &jobfile); err != nil {
		return nil, UnmarshalError{fmt.Errorf("unmarshal: %w", err), string(buf)}
	}
	jobfile.path = path.Dir(p)
	if err := jobfile.Validate(); err != nil {
		return nil, UnmarshalError{fmt.Errorf("validate: %w", err), string(buf)}
	}

	return jobfile.submission(overrides), nil
}

func (jobfile Jobfile) submission(overrides Overrides) *Submission {
	name := lo.Must(lo.Coalesce(overrides.Name, jobfile.Name, namegen.JobName()))

	// Relative to the jobfile
	dir := jobfile.Dir
	if !path.IsAbs(dir) {
		workDir := path.Join(lo.Must(os.Getwd()), jobfile.path)
		if path.IsAbs(jobfile.path) {
			workDir = jobfile.path
		}
		dir = path.Join(workDir, dir)
	}

	keys := lo.Keys(jobfile.Env)
	sort.Strings(keys)
	env := lo.Map(keys, func(key string, _ int) cluster.EnvVar {
		return cluster.EnvVar{Name: key, Value: jobfile.Env[key]}
	})

	return &Submission{
		Job: &cluster.Job{
			ID:         name,
			Name:       name,
			Args:       jobfile.Args,
			Dir:        dir,
			Env:        env,
			ArraySize:  jobfile.Array,
			BundleSize: jobfile.Bundle,
		},
		Dependencies: append(jobfile.Dependencies, overrides.Dependencies...),
		Script: cluster.File{
			Path:       path.Join(dir, name+".sh"),
			Content:    jobfile.Script,
			Executable: true,
		},
	}
}
