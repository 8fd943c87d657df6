package cluster

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var dependencyRegex = regexp.MustCompile(`^[0-9]+(_[0-9]+)?$`)

// ValidDependencyID checks the "jobId" or "jobId_arrayIndex" syntax.
func ValidDependencyID(id string) error {
	if !dependencyRegex.MatchString(id) {
		return &ValidationError{Reason: fmt.Sprintf("invalid dependency id '%s', expected 'job' or 'job_index'", id)}
	}
	return nil
}

// SplitDependencyID returns the job part of a dependency id and its array
// index, NoArrayIndex when the dependency is on the whole job.
func SplitDependencyID(id string) (string, int, error) {
	if err := ValidDependencyID(id); err != nil {
		return "", NoArrayIndex, err
	}

	jobID, index, found := strings.Cut(id, "_")
	if !found {
		return jobID, NoArrayIndex, nil
	}

	arrayIndex, err := strconv.Atoi(index)
	if err != nil || arrayIndex < 1 {
		return "", NoArrayIndex, &ValidationError{Reason: fmt.Sprintf("invalid array index in dependency id '%s'", id)}
	}
	return jobID, arrayIndex, nil
}
