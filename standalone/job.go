package standalone

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gammadia/batchd/cluster"
	"github.com/gammadia/batchd/standalone/internal/ledger"
)

type Job struct {
	ID            int64
	Name          string
	Dir           string
	Env           []cluster.EnvVar
	ArraySize     int
	DependencyIDs []string
	ScriptPath    string
	CreatedAt     time.Time
	// CPUs requested by each task, 0 when the job did not ask
	CPUs  int
	Tasks []*Task

	canceled bool
}

func (j *Job) FQN() string {
	return fmt.Sprintf("%s-%d", j.Name, j.ID)
}

func (j *Job) IDString() string {
	return strconv.FormatInt(j.ID, 10)
}

// task returns the task of the given array index, nil if there is none.
func (j *Job) task(arrayIndex int) *Task {
	for _, task := range j.Tasks {
		if task.ArrayIndex == arrayIndex {
			return task
		}
	}
	return nil
}

func (j *Job) IsArray() bool {
	return j.ArraySize > 0
}

func (j *Job) finished() bool {
	for _, task := range j.Tasks {
		if task.Status != TaskStatusFinished {
			return false
		}
	}
	return true
}

type TaskStatus string

const (
	TaskStatusWaiting  TaskStatus = "waiting"
	TaskStatusRunning  TaskStatus = "running"
	TaskStatusFinished TaskStatus = "finished"
)

type Task struct {
	Job *Job
	// Index in Job.Tasks
	Index int
	// 1-based index in the job array, cluster.NoArrayIndex for plain jobs
	ArrayIndex int
	Status     TaskStatus
	OutputPath string

	process      Process
	reservations []*ledger.Reservation
	// Set as soon as Wait returns, before the scheduler lock is taken again
	exited atomic.Bool

	// Outcome, set before done is closed
	canceled bool
	exitCode int
	err      error
	done     chan struct{}

	log *slog.Logger
}

func (t *Task) FQN() string {
	if t.ArrayIndex == cluster.NoArrayIndex {
		return t.Job.FQN()
	}
	return fmt.Sprintf("%s_%d", t.Job.FQN(), t.ArrayIndex)
}

type taskKey struct {
	job        int64
	arrayIndex int
}

func (t *Task) key() taskKey {
	return taskKey{t.Job.ID, t.ArrayIndex}
}
