// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package session

// State is the position of a Session in its linear lifecycle.
type State int32

const (
	StateInit State = iota
	StateFlagsValidated
	StateDryRunDone
	StateTerminatedDryRun
	StateExecuting
	StateStreaming
	StateDone
	StateFailed
	// StateStopped is entered when the consumer stops ranging before the end.
	StateStopped
)

var stateNames = [...]string{
	StateInit:             "INIT",
	StateFlagsValidated:   "FLAGS_VALIDATED",
	StateDryRunDone:       "DRY_RUN_DONE",
	StateTerminatedDryRun: "TERMINATED_DRY_RUN",
	StateExecuting:        "EXECUTING",
	StateStreaming:        "STREAMING",
	StateDone:             "DONE",
	StateFailed:           "FAILED",
	StateStopped:          "STOPPED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateTerminatedDryRun || s == StateDone || s == StateFailed || s == StateStopped
}
