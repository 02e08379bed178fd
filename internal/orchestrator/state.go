package orchestrator

import "github.com/ziadkadry99/auto-migrate/internal/assemble"

// FileState is the progress of one file through translation.
type FileState string

const (
	StatePending          FileState = "pending"
	StateCalling          FileState = "calling"
	StateSucceeded        FileState = "succeeded"
	StateTransientFailure FileState = "transient_failure"
	StateFatalFailure     FileState = "fatal_failure"
	StateDemoSubstituted  FileState = "demo_substituted"
)

// fileRun records the states one file passes through.
type fileRun struct {
	state    FileState
	history  []FileState
	attempts int
}

func (r *fileRun) to(s FileState) {
	r.state = s
	r.history = append(r.history, s)
}

func (r *fileRun) file(f assemble.File) File {
	return File{File: f, State: r.state, Attempts: r.attempts, history: r.history}
}
