package ui

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/gammadia/batchd/cluster"
)

// Spinner shows what a job is waiting for. A nil Spinner prints nothing.
type Spinner struct {
	*spinner.Spinner
	msg string
}

// NewSpinner starts a spinner on stderr, or returns nil when disabled or
// when stderr is not a terminal.
func NewSpinner(msg string, enabled bool) *Spinner {
	if !enabled || !Interactive() {
		return nil
	}

	s := &Spinner{
		spinner.New(
			spinner.CharSets[14],
			200*time.Millisecond,
			spinner.WithHiddenCursor(true),
			spinner.WithWriter(os.Stderr),
			spinner.WithSuffix(" "+fit(msg)),
		),
		msg,
	}
	s.Start()
	return s
}

func (s *Spinner) Update(msg string) {
	if s == nil || msg == s.msg {
		return
	}
	s.Spinner.Suffix = " " + fit(msg)
	s.msg = msg
}

// Done stops the spinner with a line colored after the outcome of the job.
func (s *Spinner) Done(outcome cluster.ResultType, msg string) {
	if s == nil {
		return
	}
	s.Spinner.FinalMSG = fmt.Sprintf("%s %s\n", Symbol(outcome), msg)
	s.Stop()
}

func Symbol(outcome cluster.ResultType) string {
	switch outcome {
	case cluster.ResultSuccess:
		return color.HiGreenString("✓")
	case cluster.ResultCanceled:
		return color.HiYellowString("!")
	default:
		return color.HiRedString("✗")
	}
}
