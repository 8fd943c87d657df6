// Package standalone runs jobs as local processes when no resource manager
// is available, mimicking the behavior of SLURM closely enough for the same
// scripts to run unchanged.
package standalone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gammadia/batchd/cluster"
	"github.com/gammadia/batchd/namegen"
	"github.com/gammadia/batchd/remote"
	"github.com/gammadia/batchd/standalone/internal/ledger"
	"github.com/samber/lo"
)

// ErrIDSpaceExhausted is returned by Launch when no free job id could be found.
var ErrIDSpaceExhausted = errors.New("could not find a free job id")

type Scheduler struct {
	launcher Launcher
	config   Config
	log      *slog.Logger
	files    remote.Remote

	// Guards everything below
	mu sync.Mutex

	jobs     map[int64]*Job
	finished map[int64]struct{}
	queue    []*Task
	running  map[*Task]struct{}
	pool     *ledger.Pool
	// Tasks whose result was not read yet. They outlive the retirement of their job.
	results map[taskKey]*Task

	listeners []chan Event

	wg sync.WaitGroup
}

// Scheduler implements cluster.Cluster
var _ cluster.Cluster = (*Scheduler)(nil)

func New(launcher Launcher, config Config) *Scheduler {
	config = config.withDefaults()
	return &Scheduler{
		launcher: launcher,
		config:   config,
		log:      config.Logger.With("component", "standalone"),
		files:    config.Files,

		jobs:     make(map[int64]*Job),
		finished: make(map[int64]struct{}),
		running:  make(map[*Task]struct{}),
		pool:     ledger.NewPool(map[ledger.Type]int{ledger.CPU: config.CPUs}),
		results:  make(map[taskKey]*Task),
	}
}

func (s *Scheduler) Validate(job *cluster.Job) error {
	if err := cluster.CheckEnv(job.Env); err != nil {
		return err
	}
	if err := cluster.CheckArgs(job.Args, nil); err != nil {
		return err
	}

	// Only CPUs are accounted for on this machine
	requested, err := cluster.Gres(job.Args)
	if err != nil {
		return err
	}
	if len(requested) > 0 {
		return &cluster.ValidationError{
			Arg:    cluster.OptionGres.String(),
			Reason: fmt.Sprintf("gres '%s' requested but this machine has no generic resources", requested[0]),
		}
	}

	cpus, err := cluster.CPUsPerTask(job.Args)
	if err != nil {
		return err
	}
	if cpus > s.config.CPUs {
		return &cluster.ValidationError{
			Arg:    cluster.OptionCPUs.String(),
			Reason: fmt.Sprintf("%d CPUs requested but this machine only has %d", cpus, s.config.CPUs),
		}
	}

	if job.ArraySize < 0 {
		return &cluster.ValidationError{Reason: fmt.Sprintf("invalid array size %d", job.ArraySize)}
	}
	return nil
}

func (s *Scheduler) ValidateDependency(id string) error {
	return cluster.ValidDependencyID(id)
}

func (s *Scheduler) Launch(ctx context.Context, job *cluster.Job, depIDs []string, scriptPath string) (*cluster.LaunchResult, error) {
	if err := s.Validate(job); err != nil {
		return nil, err
	}
	for _, id := range depIDs {
		if err := s.ValidateDependency(id); err != nil {
			return nil, err
		}
	}
	cpus := lo.Must(cluster.CPUsPerTask(job.Args))

	if job.WasCanceled() {
		s.log.Info("Job canceled before launch, skipping submission", "job", job.String())
		return nil, cluster.ErrCanceledBeforeLaunch
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range depIDs {
		if _, err := s.dependencySatisfied(id); err != nil {
			return nil, err
		}
	}

	id, err := s.newID()
	if err != nil {
		return nil, err
	}

	j := &Job{
		ID:            id,
		Name:          lo.Ternary(job.Name != "", job.Name, namegen.JobName()),
		Dir:           job.Dir,
		Env:           append([]cluster.EnvVar(nil), job.Env...),
		ArraySize:     job.ArraySize,
		DependencyIDs: append([]string(nil), depIDs...),
		ScriptPath:    scriptPath,
		CreatedAt:     time.Now(),
		CPUs:          cpus,
	}

	count := max(job.ArraySize, 1)
	for i := 0; i < count; i++ {
		task := &Task{
			Job:        j,
			Index:      i,
			ArrayIndex: lo.Ternary(j.IsArray(), i+1, cluster.NoArrayIndex),
			Status:     TaskStatusWaiting,
			done:       make(chan struct{}),
		}
		task.OutputPath = cluster.OutputPath(j.Dir, j.IDString(), task.ArrayIndex)
		task.log = s.log.With("task", task.FQN())

		j.Tasks = append(j.Tasks, task)
		s.queue = append(s.queue, task)
		s.results[task.key()] = task
	}
	s.jobs[id] = j

	s.log.Info("Job queued", "job", j.FQN(), "tasks", count, "cpus", cpus, "dependencies", depIDs)
	s.broadcast(EventJobQueued{Job: id, Name: j.Name, Tasks: count})
	s.admit()

	return &cluster.LaunchResult{
		JobID:   j.IDString(),
		Console: fmt.Sprintf("Submitted batch job %d\n", id),
		Command: scriptPath,
	}, nil
}

// newID draws random ids until one is free. Retired ids are not reused since
// dependencies may still refer to them.
func (s *Scheduler) newID() (int64, error) {
	for attempt := 0; attempt < s.config.IDAttempts; attempt++ {
		id := s.config.IDSource()
		if id <= 0 {
			continue
		}
		_, live := s.jobs[id]
		_, retired := s.finished[id]
		if !live && !retired {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w after %d attempts", ErrIDSpaceExhausted, s.config.IDAttempts)
}

// dependencySatisfied tells whether the job, or the array element, a
// dependency id refers to is finished. Unknown jobs are an error since they
// would never finish.
func (s *Scheduler) dependencySatisfied(id string) (bool, error) {
	jobPart, arrayIndex, err := cluster.SplitDependencyID(id)
	if err != nil {
		return false, err
	}
	jobID, err := strconv.ParseInt(jobPart, 10, 64)
	if err != nil {
		return false, &cluster.ValidationError{Reason: fmt.Sprintf("invalid dependency id '%s'", id)}
	}

	if _, ok := s.finished[jobID]; ok {
		return true, nil
	}
	job, ok := s.jobs[jobID]
	if !ok {
		return false, &cluster.ValidationError{Reason: fmt.Sprintf("dependency '%s' is not a known job", id)}
	}
	if arrayIndex == cluster.NoArrayIndex {
		return false, nil
	}

	task := job.task(arrayIndex)
	if task == nil {
		return false, &cluster.ValidationError{Reason: fmt.Sprintf("dependency '%s': job has no array element %d", id, arrayIndex)}
	}
	return task.Status == TaskStatusFinished, nil
}

// pendingDependencies returns the dependencies of the job which are not satisfied yet.
func (s *Scheduler) pendingDependencies(job *Job) []string {
	return lo.Filter(job.DependencyIDs, func(id string, _ int) bool {
		satisfied, err := s.dependencySatisfied(id)
		return err != nil || !satisfied
	})
}

func (s *Scheduler) runnable(task *Task) bool {
	return len(s.pendingDependencies(task.Job)) == 0 && s.pool.Fits(ledger.CPU, task.Job.CPUs)
}

// admit starts tasks from the head of the queue until one cannot run.
// Tasks behind a blocked one wait, even if they could run.
func (s *Scheduler) admit() {
	for len(s.queue) > 0 {
		task := s.queue[0]
		if !s.runnable(task) {
			return
		}
		s.queue = s.queue[1:]
		s.dispatch(task)
	}
}

func (s *Scheduler) dispatch(task *Task) {
	reservation, err := s.pool.Reserve(ledger.CPU, task.Job.CPUs)
	if err != nil {
		panic(fmt.Sprintf("standalone: runnable task %s could not reserve its CPUs: %v", task.FQN(), err))
	}
	task.reservations = append(task.reservations, reservation)
	task.Status = TaskStatusRunning
	s.running[task] = struct{}{}

	task.log.Debug("Task dispatched", "cpus", task.Job.CPUs, "cpus-available", s.pool.Available(ledger.CPU))
	s.broadcast(EventTaskRunning{Job: task.Job.ID, ArrayIndex: task.ArrayIndex})

	s.wg.Add(1)
	go s.run(task)
}

// run starts the process of a dispatched task and waits for it. The lock is
// only held to record state transitions.
func (s *Scheduler) run(task *Task) {
	defer s.wg.Done()

	s.mu.Lock()
	if task.Job.canceled {
		task.log.Info("Job was canceled, not starting task")
		task.canceled = true
		s.finish(task)
		s.mu.Unlock()
		return
	}
	spec := ProcessSpec{
		Command:    task.Job.ScriptPath,
		Dir:        task.Job.Dir,
		Env:        taskEnv(task),
		OutputPath: task.OutputPath,
	}
	s.mu.Unlock()

	process, err := s.launcher.Start(context.Background(), spec)

	s.mu.Lock()
	if err != nil {
		task.log.Error("Failed to start task", "error", err)
		task.err = err
		s.finish(task)
		s.mu.Unlock()
		return
	}
	task.process = process
	task.log.Info("Task started", "pid", process.ID())
	// Cancel happened while the process was starting
	if task.Job.canceled {
		s.kill(task)
	}
	s.mu.Unlock()

	exitCode, err := process.Wait()
	task.exited.Store(true)

	s.mu.Lock()
	defer s.mu.Unlock()
	task.exitCode = exitCode
	if err != nil {
		task.log.Error("Failed to wait for task", "error", err)
		task.err = err
	}
	s.finish(task)
}

// finish records the end of a task, releases what it held, retires its job
// when it was the last one running and admits the tasks that can now run.
func (s *Scheduler) finish(task *Task) {
	task.Status = TaskStatusFinished
	for _, reservation := range task.reservations {
		s.pool.Release(reservation)
	}
	task.reservations = nil
	delete(s.running, task)
	close(task.done)

	task.log.Info("Task finished", "exit-code", task.exitCode, "canceled", task.canceled)
	s.broadcast(EventTaskFinished{
		Job:        task.Job.ID,
		ArrayIndex: task.ArrayIndex,
		Canceled:   task.canceled,
		ExitCode:   task.exitCode,
	})

	if job := task.Job; job.finished() {
		s.finished[job.ID] = struct{}{}
		delete(s.jobs, job.ID)
		s.log.Info("Job completed", "job", job.FQN())
		s.broadcast(EventJobCompleted{Job: job.ID})
	}

	s.admit()
}

// kill leaves a task whose process already exited with its own outcome.
func (s *Scheduler) kill(task *Task) {
	if task.exited.Load() {
		return
	}
	task.canceled = true
	if err := task.process.Kill(); err != nil {
		task.log.Warn("Failed to kill task", "pid", task.process.ID(), "error", err)
	}
}

func (s *Scheduler) Cancel(ctx context.Context, jobs []*cluster.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range jobs {
		if job.ClusterID == "" {
			continue
		}
		id, err := strconv.ParseInt(job.ClusterID, 10, 64)
		if err != nil {
			s.log.Warn("Ignoring cancel of an unknown job", "cluster-id", job.ClusterID)
			continue
		}

		j, ok := s.jobs[id]
		if !ok || j.canceled {
			continue
		}
		j.canceled = true
		s.log.Info("Canceling job", "job", j.FQN())
		s.broadcast(EventJobCanceled{Job: id})

		// Waiting tasks see the flag when dispatched, starting ones right after starting
		for _, task := range j.Tasks {
			if task.Status == TaskStatusRunning && task.process != nil {
				s.kill(task)
			}
		}
	}
	return nil
}

// Wait blocks until every dispatched task has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Completed reports whether every task of the job has finished.
func (s *Scheduler) Completed(launch *cluster.LaunchResult) bool {
	id, err := strconv.ParseInt(launch.JobID, 10, 64)
	if err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.finished[id]
	return ok
}
