package executor

import "encoding/json"

// State is a step of one change-set execution.
//
//	Idle -> Validating -> Executing -> Committed
//	        Validating -> Rejected
//	                      Executing -> RolledBack
type State int

const (
	Idle State = iota
	Validating
	Executing
	Committed
	Rejected
	RolledBack
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Validating:
		return "validating"
	case Executing:
		return "executing"
	case Committed:
		return "committed"
	case Rejected:
		return "rejected"
	case RolledBack:
		return "rolled_back"
	}
	return "unknown"
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Committed || s == Rejected || s == RolledBack
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

var transitions = map[State][]State{
	Idle:       {Validating},
	Validating: {Executing, Rejected},
	Executing:  {Committed, RolledBack},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
