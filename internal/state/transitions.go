package state

var flowStates = []State{
	StateAwaitingAmount,
	StateAwaitingTarget,
	StateAwaitingPromo,
	StateAwaitingAdminEdit,
}

// validTransitions contains the permitted non-emergency transitions in the FSM.
// Starting a flow from inside another flow supersedes it.
var validTransitions = map[State][]State{
	StateIdle:              flowStates,
	StateAwaitingAmount:    flowStates,
	StateAwaitingTarget:    flowStates,
	StateAwaitingPromo:     flowStates,
	StateAwaitingAdminEdit: flowStates,
}

// IsTransitionAllowed reports whether moving from one state to another is valid.
func IsTransitionAllowed(from, to State) bool {
	if to == StateError || to == StateIdle {
		return true
	}

	if from == "" {
		from = StateIdle
	}

	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}

	for _, state := range allowed {
		if state == to {
			return true
		}
	}

	return false
}
