// Package agent implements a REINFORCE (Monte-Carlo policy gradient) agent
// for the block-dodging environment.
//
// The agent records one trajectory at a time. Every SelectAction must be
// followed by exactly one StoreReward; UpdatePolicy consumes the trajectory,
// applies one clipped Adam step and clears the buffers.
package agent

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"blockdodge-rl/internal/dodge"
	"blockdodge-rl/internal/policy"
	"blockdodge-rl/internal/window"
)

// Phase is the agent's position in its collect/update cycle.
type Phase int

const (
	Collecting Phase = iota
	Updating
)

func (p Phase) String() string {
	if p == Updating {
		return "updating"
	}
	return "collecting"
}

type Config struct {
	HiddenDim         int     `toml:"hidden_dim" json:"hidden_dim"`
	LearningRate      float64 `toml:"learning_rate" json:"learning_rate"`
	Gamma             float64 `toml:"gamma" json:"gamma"`
	EntropyCoef       float64 `toml:"entropy_coef" json:"entropy_coef"`
	UseNormalization  bool    `toml:"use_normalization" json:"use_normalization"`
	UseHeightBaseline bool    `toml:"use_height_baseline" json:"use_height_baseline"`
	MaxGradNorm       float64 `toml:"max_grad_norm" json:"max_grad_norm"`
	OutcomeWindow     int     `toml:"outcome_window" json:"outcome_window"`
	Seed              int64   `toml:"-" json:"seed"`

	// Filled in from the environment configuration.
	StateMode  dodge.StateMode    `toml:"-" json:"state_mode"`
	GridHeight int                `toml:"-" json:"grid_height"`
	Rewards    dodge.RewardScheme `toml:"-" json:"rewards"`
}

func DefaultConfig() Config {
	return Config{
		HiddenDim:     64,
		LearningRate:  1e-3,
		Gamma:         0.99,
		MaxGradNorm:   1.0,
		OutcomeWindow: 100,
		Seed:          42,
		StateMode:     dodge.StateAbsolute,
		GridHeight:    4,
		Rewards:       dodge.RewardScheme{Death: -10, Miss: 1},
	}
}

type Agent struct {
	cfg      Config
	net      *policy.Network
	opt      *policy.Adam
	rand     *rand.Rand
	outcomes *window.Ring[dodge.Outcome]
	log      logrus.FieldLogger
	phase    Phase

	observations []dodge.Observation
	actions      []dodge.Action
	logProbs     []float64
	rewards      []float64
	entropies    []float64
	heights      []int
}

func New(cfg Config, log logrus.FieldLogger) (*Agent, error) {
	if cfg.GridHeight < 1 {
		return nil, errors.Errorf("grid height must be >= 1, got %d", cfg.GridHeight)
	}
	if cfg.Gamma <= 0 || cfg.Gamma > 1 {
		return nil, errors.Errorf("gamma must be in (0, 1], got %v", cfg.Gamma)
	}
	if cfg.LearningRate <= 0 {
		return nil, errors.Errorf("learning rate must be > 0, got %v", cfg.LearningRate)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	net, err := policy.New(dodge.ObservationSize, cfg.HiddenDim, dodge.NumActions, rng)
	if err != nil {
		return nil, errors.Wrap(err, "policy network")
	}
	outcomes, err := window.New[dodge.Outcome](cfg.OutcomeWindow)
	if err != nil {
		return nil, errors.Wrap(err, "outcome window")
	}
	return &Agent{
		cfg:      cfg,
		net:      net,
		opt:      policy.NewAdam(net, cfg.LearningRate),
		rand:     rng,
		outcomes: outcomes,
		log:      log,
	}, nil
}

// Probabilities runs the policy on a single observation.
func (a *Agent) Probabilities(obs dodge.Observation) [dodge.NumActions]float64 {
	var out [dodge.NumActions]float64
	probs := a.net.Forward(mat.NewDense(1, dodge.ObservationSize, obs.Slice()))
	copy(out[:], probs.RawRowView(0))
	return out
}

// SelectAction samples an action and records it in the trajectory.
func (a *Agent) SelectAction(obs dodge.Observation) dodge.Action {
	probs := a.Probabilities(obs)
	action := sampleCategorical(probs[:], a.rand)

	a.observations = append(a.observations, obs)
	a.actions = append(a.actions, action)
	a.logProbs = append(a.logProbs, math.Log(math.Max(probs[action], math.SmallestNonzeroFloat64)))
	a.entropies = append(a.entropies, entropy(probs[:]))
	a.heights = append(a.heights, a.cfg.StateMode.BlockHeight(obs, a.cfg.GridHeight))
	return action
}

// Act samples an action without recording anything.
func (a *Agent) Act(obs dodge.Observation) dodge.Action {
	probs := a.Probabilities(obs)
	return sampleCategorical(probs[:], a.rand)
}

// Greedy returns the most probable action.
func (a *Agent) Greedy(obs dodge.Observation) dodge.Action {
	probs := a.Probabilities(obs)
	return dodge.Action(floats.MaxIdx(probs[:]))
}

func (a *Agent) StoreReward(r float64) {
	a.rewards = append(a.rewards, r)
}

// UpdateEpisodeStats records a miss or death in the outcome window.
func (a *Agent) UpdateEpisodeStats(info dodge.Info) {
	switch {
	case info.Death:
		a.outcomes.Push(dodge.OutcomeDeath)
	case info.Miss:
		a.outcomes.Push(dodge.OutcomeMiss)
	}
}

// Outcomes returns the outcome window, most recent last.
func (a *Agent) Outcomes() []dodge.Outcome {
	return a.outcomes.Items()
}

func (a *Agent) Phase() Phase {
	return a.phase
}

// BufferLen reports the length of every trajectory buffer in the order
// log-probs, rewards, entropies, heights.
func (a *Agent) BufferLen() [4]int {
	return [4]int{len(a.logProbs), len(a.rewards), len(a.entropies), len(a.heights)}
}

func (a *Agent) Config() Config {
	return a.cfg
}

func (a *Agent) Network() *policy.Network {
	return a.net
}

func (a *Agent) ClearBuffers() {
	a.observations = a.observations[:0]
	a.actions = a.actions[:0]
	a.logProbs = a.logProbs[:0]
	a.rewards = a.rewards[:0]
	a.entropies = a.entropies[:0]
	a.heights = a.heights[:0]
}

func sampleCategorical(probs []float64, rng *rand.Rand) dodge.Action {
	threshold := rng.Float64()
	var cumulativeProb float64
	for i, prob := range probs {
		cumulativeProb += prob
		if threshold <= cumulativeProb {
			return dodge.Action(i)
		}
	}
	return dodge.Action(len(probs) - 1)
}

func entropy(probs []float64) float64 {
	var h float64
	for _, p := range probs {
		h -= plogp(p)
	}
	return h
}

func plogp(p float64) float64 {
	if p <= 0 {
		return 0
	}
	return p * math.Log(p)
}
