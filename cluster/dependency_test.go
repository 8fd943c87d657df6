package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidDependencyID(t *testing.T) {
	for _, id := range []string{"1", "123456", "42_1", "42_17"} {
		assert.NoError(t, ValidDependencyID(id), id)
	}
	for _, id := range []string{"", "abc", "42_", "_1", "42_1_2", "42-1", " 42"} {
		assert.Error(t, ValidDependencyID(id), id)
	}
}

func TestSplitDependencyID(t *testing.T) {
	jobID, index, err := SplitDependencyID("42")
	require.NoError(t, err)
	assert.Equal(t, "42", jobID)
	assert.Equal(t, NoArrayIndex, index)

	jobID, index, err = SplitDependencyID("42_7")
	require.NoError(t, err)
	assert.Equal(t, "42", jobID)
	assert.Equal(t, 7, index)

	_, _, err = SplitDependencyID("42_0")
	assert.Error(t, err)

	_, _, err = SplitDependencyID("nope")
	assert.Error(t, err)
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "/work/cluster-42.out", OutputPath("/work", "42", NoArrayIndex))
	assert.Equal(t, "/work/cluster-42_3.out", OutputPath("/work", "42", 3))
	assert.Equal(t, "/work/cluster-%j.out", OutputMask("/work", false))
	assert.Equal(t, "/work/cluster-%A_%a.out", OutputMask("/work", true))
}

func TestLaunchErrorKeepsDiagnostics(t *testing.T) {
	err := &LaunchError{Command: "sbatch job.sh", Console: "sbatch: error: invalid partition\n"}
	assert.Equal(t, "failed to launch job\ncommand: sbatch job.sh\nconsole:\nsbatch: error: invalid partition", err.Error())
}
