package domain

import (
	"fmt"
)

// ProcessState is the state of a background computation
// for matches, selections and data product processes.
//
// It goes Processing -> Complete or Processing -> Failed, at most once.
// Complete and Failed are terminal.
type ProcessState string

const (
	// The computation is queued or running.
	Processing ProcessState = "processing"

	// The computation has been done, successfully.
	Complete ProcessState = "complete"

	// The computation stopped with error.
	Failed ProcessState = "failed"
)

func (s ProcessState) String() string {
	return string(s)
}

func AsProcessState(s string) (ProcessState, error) {
	switch s {
	case string(Processing):
		return Processing, nil
	case string(Complete):
		return Complete, nil
	case string(Failed):
		return Failed, nil
	default:
		return "", fmt.Errorf("'%s' is not ProcessState", s)
	}
}

// Terminal reports the state will not change anymore.
func (s ProcessState) Terminal() bool {
	return s == Complete || s == Failed
}

// CanChangeTo reports that the state can move to `to`.
func (s ProcessState) CanChangeTo(to ProcessState) bool {
	return s == Processing && to.Terminal()
}

func (s ProcessState) severity() int {
	switch s {
	case Failed:
		return 2
	case Processing:
		return 1
	default:
		return 0
	}
}

// LeastFavorable returns the worst state in states,
// in order failed > processing > complete.
//
// For no states, it returns Complete.
func LeastFavorable(states ...ProcessState) ProcessState {
	worst := Complete
	for _, s := range states {
		if worst.severity() < s.severity() {
			worst = s
		}
	}
	return worst
}
