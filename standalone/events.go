package standalone

import (
	"fmt"

	"github.com/samber/lo"
)

type Event interface{}

type EventJobQueued struct {
	Job   int64
	Name  string
	Tasks int
}

type EventJobCanceled struct {
	Job int64
}

// EventJobCompleted is sent once every task of the job finished. The job id
// is retired: dependencies on it are satisfied from then on.
type EventJobCompleted struct {
	Job int64
}

type EventTaskRunning struct {
	Job        int64
	ArrayIndex int
}

type EventTaskFinished struct {
	Job        int64
	ArrayIndex int
	Canceled   bool
	ExitCode   int
}

const listenerBuffer = 256

// Subscribe returns a channel receiving every event from now on, and a
// function to stop receiving them. Slow listeners miss events.
func (s *Scheduler) Subscribe() (<-chan Event, func()) {
	listener := make(chan Event, listenerBuffer)

	s.mu.Lock()
	s.listeners = append(s.listeners, listener)
	s.mu.Unlock()

	return listener, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.listeners = lo.Without(s.listeners, listener)
	}
}

// broadcast must be called with the lock held.
func (s *Scheduler) broadcast(event Event) {
	for _, listener := range s.listeners {
		select {
		case listener <- event:
		default:
			s.log.Warn("Listener is too slow, dropping event", "event", fmt.Sprintf("%T", event))
		}
	}
}
