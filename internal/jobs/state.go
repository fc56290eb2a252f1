package jobs

// State is the lifecycle position of a job.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

var allowedTransitions = map[State][]State{
	StateQueued:    {StateRunning, StateCancelled},
	StateRunning:   {StateSucceeded, StateFailed, StateCancelled},
	StateSucceeded: {},
	StateFailed:    {},
	StateCancelled: {},
}

// CanTransition checks if a state change is allowed.
func CanTransition(from, to State) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	next, ok := allowedTransitions[s]
	return ok && len(next) == 0
}
