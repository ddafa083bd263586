package loadtest

import "fmt"

// RunState is the lifecycle position of a definition. It is persisted alongside the definition
type RunState string

const (
	StateNotStarted RunState = "not_started"
	StateRunning    RunState = "running"
	StateCompleted  RunState = "completed"
	StateFailed     RunState = "failed"
	StateCancelled  RunState = "cancelled"
)

var RunStates = []RunState{StateNotStarted, StateRunning, StateCompleted, StateFailed, StateCancelled}

func ParseRunState(in string) (RunState, error) {
	for _, v := range RunStates {
		if string(v) == in {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown run state %q", in)
}

// IsTerminal reports whether a run in this state has finished
func (s RunState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}
