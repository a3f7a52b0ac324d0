package dodge

import (
	"math/rand"

	"github.com/pkg/errors"
)

// ErrInvalidAction is returned by Step for actions outside {Left, Stay, Right}.
var ErrInvalidAction = errors.New("invalid action")

// Config describes the grid and the falling blocks.
type Config struct {
	GridWidth      int        `toml:"grid_width" json:"grid_width"`
	GridHeight     int        `toml:"grid_height" json:"grid_height"`
	BlockMinWidth  int        `toml:"block_min_width" json:"block_min_width"`
	BlockMaxWidth  int        `toml:"block_max_width" json:"block_max_width"`
	BlockFallSpeed int        `toml:"block_fall_speed" json:"block_fall_speed"`
	AgentStartX    *int       `toml:"agent_start_x" json:"agent_start_x,omitempty"`
	StateMode      StateMode  `toml:"state_mode" json:"state_mode"`
	RewardMode     RewardMode `toml:"reward_mode" json:"reward_mode"`
	Seed           int64      `toml:"-" json:"seed"`
}

// DefaultConfig mirrors the small 5x4 board used for the ablation runs.
func DefaultConfig() Config {
	return Config{
		GridWidth:      5,
		GridHeight:     4,
		BlockMinWidth:  1,
		BlockMaxWidth:  1,
		BlockFallSpeed: 1,
		StateMode:      StateAbsolute,
		RewardMode:     RewardBasic,
		Seed:           42,
	}
}

// State is the raw grid state. The agent sits on row 0; the block counts
// down from row GridHeight-1.
type State struct {
	AgentX     int `json:"agent_x"`
	BlockLeft  int `json:"block_left"`
	BlockRight int `json:"block_right"`
	BlockY     int `json:"block_y"`
}

// Info carries per-step episode metadata.
type Info struct {
	Death         bool `json:"death,omitempty"`
	Miss          bool `json:"miss,omitempty"`
	SurvivedSteps int  `json:"survived_steps"`
}

type Env struct {
	cfg      Config
	encode   encoder
	rewards  RewardScheme
	rand     *rand.Rand
	state    State
	survived int
	done     bool
}

func NewEnv(cfg Config) (*Env, error) {
	if cfg.GridWidth < 1 {
		return nil, errors.Errorf("grid width must be >= 1, got %d", cfg.GridWidth)
	}
	if cfg.GridHeight < 1 {
		return nil, errors.Errorf("grid height must be >= 1, got %d", cfg.GridHeight)
	}
	encode, err := cfg.StateMode.encoder()
	if err != nil {
		return nil, err
	}
	rewards, err := cfg.RewardMode.Scheme()
	if err != nil {
		return nil, err
	}
	env := &Env{
		cfg:     cfg,
		encode:  encode,
		rewards: rewards,
		rand:    rand.New(rand.NewSource(cfg.Seed)),
	}
	env.Reset()
	return env, nil
}

// Reseed replaces the environment's random source. Nothing else reseeds it.
func (e *Env) Reseed(seed int64) {
	e.rand = rand.New(rand.NewSource(seed))
}

func (e *Env) Reset() Observation {
	start := e.cfg.GridWidth / 2
	if e.cfg.AgentStartX != nil {
		start = *e.cfg.AgentStartX
	}
	e.state.AgentX = clip(start, 0, e.cfg.GridWidth-1)
	e.survived = 0
	e.done = false
	e.spawnBlock()
	return e.Observation()
}

// Step applies action and advances the block. Once the episode is over it
// keeps returning the terminal observation with zero reward.
func (e *Env) Step(action Action) (Observation, float64, bool, Info, error) {
	if e.done {
		return e.Observation(), 0, true, Info{SurvivedSteps: e.survived}, nil
	}
	if !action.Valid() {
		return e.Observation(), 0, false, Info{SurvivedSteps: e.survived}, errors.Wrapf(ErrInvalidAction, "action %d", int(action))
	}

	e.state.AgentX = clip(e.state.AgentX+action.delta(), 0, e.cfg.GridWidth-1)

	speed := e.cfg.BlockFallSpeed
	if speed < 1 {
		speed = 1
	}
	e.state.BlockY -= speed

	var info Info
	if e.state.BlockY <= 0 {
		if e.state.BlockLeft <= e.state.AgentX && e.state.AgentX <= e.state.BlockRight {
			info.Death = true
			e.done = true
		} else {
			info.Miss = true
		}
	}
	reward := e.rewards.reward(info)
	if info.Miss {
		e.spawnBlock()
	}
	if !e.done {
		e.survived++
	}
	info.SurvivedSteps = e.survived
	return e.Observation(), reward, e.done, info, nil
}

func (e *Env) Observation() Observation {
	return e.encode(e.state, e.cfg.GridWidth, e.cfg.GridHeight)
}

// State returns the raw grid coordinates, e.g. for a renderer.
func (e *Env) State() State {
	return e.state
}

// SetState overwrites the raw grid state. Coordinates are clipped to the grid.
func (e *Env) SetState(s State) {
	s.AgentX = clip(s.AgentX, 0, e.cfg.GridWidth-1)
	if s.BlockLeft > s.BlockRight {
		s.BlockLeft, s.BlockRight = s.BlockRight, s.BlockLeft
	}
	e.state = s
}

func (e *Env) Done() bool {
	return e.done
}

func (e *Env) Config() Config {
	return e.cfg
}

func (e *Env) spawnBlock() {
	maxWidth := e.cfg.BlockMaxWidth
	if e.cfg.GridWidth > 1 && maxWidth > e.cfg.GridWidth-1 {
		maxWidth = e.cfg.GridWidth - 1
	}
	maxWidth = clip(maxWidth, 1, e.cfg.GridWidth)
	minWidth := clip(e.cfg.BlockMinWidth, 1, maxWidth)

	width := minWidth + e.rand.Intn(maxWidth-minWidth+1)
	left := e.rand.Intn(e.cfg.GridWidth - width + 1)

	e.state.BlockLeft = left
	e.state.BlockRight = left + width - 1
	e.state.BlockY = e.cfg.GridHeight - 1
}

func clip(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
