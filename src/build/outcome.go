package build

import (
	"fmt"
	"time"
)

// OutcomeKind classifies how a task ended.
type OutcomeKind int

const (
	Succeeded OutcomeKind = iota
	Skipped
	BuildFailed
	PushFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case Succeeded:
		return "succeeded"
	case Skipped:
		return "skipped"
	case BuildFailed:
		return "build failed"
	case PushFailed:
		return "push failed"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the terminal state of a single task.
type Outcome struct {
	Kind     OutcomeKind
	Pushed   bool   // a push was attempted and succeeded
	Command  string // literal invocation that failed, if any
	Output   string // captured output of the failed invocation
	Err      error  // runner error or recovered fault
	Duration time.Duration
}

// Failed reports whether the outcome counts against the run.
func (o Outcome) Failed() bool {
	return o.Kind == BuildFailed || o.Kind == PushFailed
}
