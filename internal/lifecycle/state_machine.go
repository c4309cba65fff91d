package lifecycle

// State is a step in the life of the agent process owned by a Manager.
type State int

const (
	StateNotStarted State = iota
	StateBuilding
	StateLaunched
	StateTerminating
	StateTerminated
	// StateSkipped means the agent was already running and is not owned.
	StateSkipped
)

var stateNames = map[State]string{
	StateNotStarted:  "not_started",
	StateBuilding:    "building",
	StateLaunched:    "launched",
	StateTerminating: "terminating",
	StateTerminated:  "terminated",
	StateSkipped:     "skipped",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

var allowedTransitions = map[State]map[State]struct{}{
	StateNotStarted: {
		StateBuilding:   {},
		StateSkipped:    {},
		StateTerminated: {},
	},
	StateBuilding: {
		StateLaunched:   {},
		StateTerminated: {},
	},
	StateLaunched: {
		StateTerminating: {},
	},
	StateTerminating: {
		StateTerminated: {},
	},
}

// CanTransition reports whether a state transition is valid.
func CanTransition(from, to State) bool {
	allowed, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}
