package cluster

import (
	"fmt"
	"path"
)

const outputPrefix = "cluster-"

// OutputPath is where the output of a job, or of one of its array elements,
// lands. Both backends agree on it.
func OutputPath(dir, jobID string, arrayIndex int) string {
	if arrayIndex == NoArrayIndex {
		return path.Join(dir, fmt.Sprintf("%s%s.out", outputPrefix, jobID))
	}
	return path.Join(dir, fmt.Sprintf("%s%s_%d.out", outputPrefix, jobID, arrayIndex))
}

// OutputMask is the sbatch --output filename pattern producing OutputPath.
func OutputMask(dir string, array bool) string {
	if array {
		return path.Join(dir, outputPrefix+"%A_%a.out")
	}
	return path.Join(dir, outputPrefix+"%j.out")
}
