package bootstrap

import "fmt"

// State is the position of a bootstrap run.
type State int

const (
	NotBuilt State = iota
	Built1
	PlainGenerated
	RawGenerated
	Built2
	Failed
)

func (s State) String() string {
	switch s {
	case NotBuilt:
		return "NotBuilt"
	case Built1:
		return "Built1"
	case PlainGenerated:
		return "PlainGenerated"
	case RawGenerated:
		return "RawGenerated"
	case Built2:
		return "Built2"
	case Failed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further stage can run from s.
func (s State) Terminal() bool {
	return s == Built2 || s == Failed
}

// Transition records one state change of a run.
type Transition struct {
	Stage string
	From  State
	To    State
}
