package cluster

import (
	"fmt"
	"regexp"
	"strings"
)

// NoArrayIndex designates a job which is not an array. Array indices start at 1.
const NoArrayIndex = 0

type EnvVar struct {
	Name  string
	Value string
}

func (v EnvVar) String() string {
	return fmt.Sprintf("%s=%s", v.Name, v.Value)
}

var envNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidEnvName reports whether name can be exported by a POSIX shell.
func ValidEnvName(name string) bool {
	return envNameRegex.MatchString(name)
}

// CheckEnv validates the names of the variables set on a job.
func CheckEnv(env []EnvVar) error {
	for _, v := range env {
		if !ValidEnvName(v.Name) {
			return &ValidationError{Reason: fmt.Sprintf("invalid environment variable name '%s'", v.Name)}
		}
	}
	return nil
}

// JobLog is the record the caller keeps for a job.
type JobLog interface {
	// WasCanceled reports whether the job has been marked as canceled.
	WasCanceled() bool
}

// JobLogFunc adapts a function to JobLog.
type JobLogFunc func() bool

func (f JobLogFunc) WasCanceled() bool {
	return f()
}

// Job is the backend-independent description of a job. It is owned by the caller.
type Job struct {
	// ID is the identifier of the job on the caller side, only used in logs.
	ID string

	// ClusterID is the handle given by the backend (LaunchResult.JobID).
	// The caller records it once the job is launched.
	ClusterID string

	Name string

	// Args are passed to the backend submission verbatim. They are only
	// inspected to reject the flags the cluster controls.
	Args []string
	Dir  string
	Env  []EnvVar

	// ArraySize expands the job into the tasks 1..ArraySize when positive.
	ArraySize int
	// BundleSize limits how many array elements run at the same time.
	BundleSize int

	Log JobLog
}

func (j *Job) IsArray() bool {
	return j.ArraySize > 0
}

// WasCanceled is safe to call on jobs without a log.
func (j *Job) WasCanceled() bool {
	return j.Log != nil && j.Log.WasCanceled()
}

func (j *Job) String() string {
	return strings.TrimSpace(fmt.Sprintf("%s %s", j.ID, j.Name))
}

// LaunchResult is what a backend answers to a submission. It is immutable.
type LaunchResult struct {
	JobID   string
	Console string
	Command string
}

type ResultType string

const (
	ResultSuccess  ResultType = "success"
	ResultFailure  ResultType = "failure"
	ResultCanceled ResultType = "canceled"
)

type Result struct {
	Type   ResultType
	Output string
	Reason string
}
