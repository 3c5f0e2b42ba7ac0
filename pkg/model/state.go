package model

// ProcessState represents the lifecycle state of a process control block.
type ProcessState string

const (
	ProcessStateNew        ProcessState = "NEW"
	ProcessStateReady      ProcessState = "READY"
	ProcessStateRunning    ProcessState = "RUNNING"
	ProcessStateWaiting    ProcessState = "WAITING"
	ProcessStateTerminated ProcessState = "TERMINATED"
)

// String returns the string representation of the process state.
func (s ProcessState) String() string {
	return string(s)
}

// IsTerminal returns true if the process is in a final state.
func (s ProcessState) IsTerminal() bool {
	return s == ProcessStateTerminated
}

// IsValid reports whether s is one of the defined process states.
func (s ProcessState) IsValid() bool {
	switch s {
	case ProcessStateNew, ProcessStateReady, ProcessStateRunning, ProcessStateWaiting, ProcessStateTerminated:
		return true
	}
	return false
}

// ValidProcessTransitions defines the allowed state transitions for processes.
var ValidProcessTransitions = map[ProcessState][]ProcessState{
	ProcessStateNew:     {ProcessStateReady},
	ProcessStateReady:   {ProcessStateRunning},
	ProcessStateRunning: {ProcessStateReady, ProcessStateWaiting, ProcessStateTerminated},
	ProcessStateWaiting: {ProcessStateReady},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s ProcessState) CanTransitionTo(next ProcessState) bool {
	for _, allowed := range ValidProcessTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
