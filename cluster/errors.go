package cluster

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCanceledBeforeLaunch is returned by Launch when the job was canceled
// before it could be submitted. Nothing was submitted.
var ErrCanceledBeforeLaunch = errors.New("job was canceled before launch")

// ValidationError is returned before anything is sent to the backend.
type ValidationError struct {
	Arg    string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Arg == "" {
		return e.Reason
	}
	return fmt.Sprintf("argument '%s': %s", e.Arg, e.Reason)
}

// LaunchError is returned when the backend acknowledgment of a submission
// could not be understood. Command and Console are kept verbatim for operators.
type LaunchError struct {
	Command string
	Console string
	Err     error
}

func (e *LaunchError) Error() string {
	var b strings.Builder
	b.WriteString("failed to launch job")
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	fmt.Fprintf(&b, "\ncommand: %s", e.Command)
	fmt.Fprintf(&b, "\nconsole:\n%s", strings.TrimRight(e.Console, "\n"))
	return b.String()
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}
