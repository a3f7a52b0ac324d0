package dodge

import (
	"math"

	"github.com/pkg/errors"
)

// ObservationSize is the length of every encoded observation.
const ObservationSize = 4

// Observation is the encoded state handed to the agent.
type Observation [ObservationSize]float64

// Slice returns a copy of the observation as a slice.
func (o Observation) Slice() []float64 {
	out := make([]float64, ObservationSize)
	copy(out, o[:])
	return out
}

// StateMode selects how State is encoded into an Observation.
type StateMode string

const (
	StateAbsolute StateMode = "absolute"
	StateRelative StateMode = "relative"
)

type encoder func(s State, width, height int) Observation

func (m StateMode) encoder() (encoder, error) {
	switch m {
	case StateAbsolute:
		return encodeAbsolute, nil
	case StateRelative:
		return encodeRelative, nil
	default:
		return nil, errors.Errorf("unknown state mode %q", string(m))
	}
}

func encodeAbsolute(s State, _, _ int) Observation {
	return Observation{
		float64(s.AgentX),
		float64(s.BlockLeft),
		float64(s.BlockRight),
		float64(s.BlockY),
	}
}

func encodeRelative(s State, width, height int) Observation {
	var x float64
	if width > 1 {
		x = float64(s.AgentX) / float64(width-1)
	}
	w := float64(width)
	return Observation{
		x,
		float64(s.BlockY) / float64(height),
		float64(s.AgentX-s.BlockLeft) / w,
		float64(s.AgentX-s.BlockRight) / w,
	}
}

// BlockHeight decodes the block row from an observation produced in mode m
// for a grid of the given height.
func (m StateMode) BlockHeight(obs Observation, height int) int {
	if m == StateRelative {
		return int(math.Round(obs[1] * float64(height)))
	}
	return int(math.Round(obs[3]))
}
