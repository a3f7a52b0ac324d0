package dodge

import "fmt"

// Action is one of the three discrete moves available to the agent.
type Action int

const (
	Left Action = iota
	Stay
	Right
)

// NumActions is the size of the action space.
const NumActions = 3

func (a Action) Valid() bool {
	return a >= Left && a <= Right
}

func (a Action) String() string {
	switch a {
	case Left:
		return "left"
	case Stay:
		return "stay"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

func (a Action) delta() int {
	switch a {
	case Left:
		return -1
	case Right:
		return 1
	default:
		return 0
	}
}

// Outcome classifies how a falling block ended.
type Outcome int

const (
	OutcomeMiss Outcome = iota
	OutcomeDeath
)

func (o Outcome) String() string {
	if o == OutcomeDeath {
		return "death"
	}
	return "miss"
}
