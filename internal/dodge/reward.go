package dodge

import "github.com/pkg/errors"

// RewardMode selects one of the reward schemes.
type RewardMode string

const (
	RewardBasic    RewardMode = "basic"
	RewardEnhanced RewardMode = "enhanced"
)

// RewardScheme holds the reward constants for one mode. Step is paid on
// every transition that neither kills the agent nor clears a block.
type RewardScheme struct {
	Death float64 `json:"death"`
	Miss  float64 `json:"miss"`
	Step  float64 `json:"step"`
}

var rewardSchemes = map[RewardMode]RewardScheme{
	RewardBasic:    {Death: -10, Miss: 1, Step: 0},
	RewardEnhanced: {Death: -15, Miss: 10, Step: 0.1},
}

// Scheme resolves the reward constants for m.
func (m RewardMode) Scheme() (RewardScheme, error) {
	scheme, ok := rewardSchemes[m]
	if !ok {
		return RewardScheme{}, errors.Errorf("unknown reward mode %q", string(m))
	}
	return scheme, nil
}

func (r RewardScheme) reward(info Info) float64 {
	switch {
	case info.Death:
		return r.Death
	case info.Miss:
		return r.Miss
	default:
		return r.Step
	}
}
