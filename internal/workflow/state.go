package workflow

import "fmt"

// State is one node of the per-extract state machine (§4.5).
type State int8

const (
	StateNew State = iota
	StateDrawing
	StateDraining
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateDrawing:
		return "DRAWING"
	case StateDraining:
		return "DRAINING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// validTransitions lists every edge the §4.5 diagram permits, besides the
// universal "any state may transition to FAILED" escape hatch.
var validTransitions = map[State]State{
	StateNew:      StateDrawing,
	StateDrawing:  StateDraining,
	StateDraining: StateDone,
}

// transition moves the workflow from from to to, rejecting any edge the
// diagram does not draw. Moving to StateFailed is always permitted, from any
// non-terminal state.
func transition(from, to State) error {
	if to == StateFailed {
		if from == StateDone || from == StateFailed {
			return fmt.Errorf("workflow: cannot transition %s -> %s", from, to)
		}

		return nil
	}

	if validTransitions[from] == to {
		return nil
	}

	return fmt.Errorf("workflow: invalid transition %s -> %s", from, to)
}
