package lifecycle

// State is the lifecycle state of a Controller.
type State int

const (
	StateUninitialized State = iota
	StateAwaitingSetup
	StateActive
	StateEnding
	StateTerminated
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateAwaitingSetup:
		return "AwaitingSetup"
	case StateActive:
		return "Active"
	case StateEnding:
		return "Ending"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// Absorbing reports whether no transition leaves s.
func (s State) Absorbing() bool {
	return s == StateActive || s == StateTerminated
}

// EventEmitter is notified of state changes and activation results.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
	OnActivation(variation string, err error)
}
