// Package config assembles the configuration of a training run from
// defaults, an optional TOML file and BLOCKDODGE_* environment variables.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/c2h5oh/datasize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"blockdodge-rl/internal/agent"
	"blockdodge-rl/internal/checkpoint"
	"blockdodge-rl/internal/dodge"
	"blockdodge-rl/internal/trainer"
)

const (
	envPrefix    = "BLOCKDODGE_"
	artifactRoot = "artifacts/ablation"
)

type Config struct {
	ExpName           string            `toml:"exp_name"`
	Seed              int64             `toml:"seed"`
	StatsPath         string            `toml:"stats_path"`
	CheckpointDir     string            `toml:"checkpoint_dir"`
	MaxCheckpointSize datasize.ByteSize `toml:"max_checkpoint_size"`
	MonitorAddr       string            `toml:"monitor_addr"`
	LogLevel          string            `toml:"log_level"`

	Env   dodge.Config   `toml:"env"`
	Agent agent.Config   `toml:"agent"`
	Train trainer.Config `toml:"train"`
}

func Default() Config {
	return Config{
		ExpName:           "baseline",
		Seed:              42,
		MaxCheckpointSize: checkpoint.DefaultMaxSize,
		LogLevel:          "info",
		Env:               dodge.DefaultConfig(),
		Agent:             agent.DefaultConfig(),
		Train:             trainer.DefaultConfig(),
	}
}

// Load reads path (when non-empty) over the defaults, applies environment
// overrides, then resolves and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		meta, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			logrus.WithField("keys", undecoded).Warn("unknown config keys ignored")
		}
	}
	cfg.applyEnv()
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.ExpName = getenv(envPrefix+"EXP_NAME", c.ExpName)
	c.Seed = getenvInt64(envPrefix+"SEED", c.Seed)
	c.StatsPath = getenv(envPrefix+"STATS_PATH", c.StatsPath)
	c.CheckpointDir = getenv(envPrefix+"CHECKPOINT_DIR", c.CheckpointDir)
	c.MonitorAddr = getenv(envPrefix+"MONITOR_ADDR", c.MonitorAddr)
	c.LogLevel = getenv(envPrefix+"LOG_LEVEL", c.LogLevel)
	c.Train.NumEpisodes = getenvInt(envPrefix+"EPISODES", c.Train.NumEpisodes)
	c.Train.MaxStepsPerEpisode = getenvInt(envPrefix+"MAX_STEPS", c.Train.MaxStepsPerEpisode)
}

// Resolve fills derived fields: artifact paths from the experiment name,
// seeds, and the environment facts the agent needs for its baseline.
func (c *Config) Resolve() {
	if c.StatsPath == "" {
		c.StatsPath = filepath.Join(artifactRoot, c.ExpName, "stats.csv")
	}
	if c.CheckpointDir == "" {
		c.CheckpointDir = filepath.Join(artifactRoot, c.ExpName, "checkpoints")
	}
	c.Env.Seed = c.Seed
	c.Agent.Seed = c.Seed + 1
	c.Agent.StateMode = c.Env.StateMode
	c.Agent.GridHeight = c.Env.GridHeight
	if scheme, err := c.Env.RewardMode.Scheme(); err == nil {
		c.Agent.Rewards = scheme
	}
}

func (c Config) Validate() error {
	e, a, t := c.Env, c.Agent, c.Train
	switch {
	case e.GridWidth < 1:
		return errors.Errorf("grid_width must be >= 1, got %d", e.GridWidth)
	case e.GridHeight < 1:
		return errors.Errorf("grid_height must be >= 1, got %d", e.GridHeight)
	case e.BlockMinWidth < 1 || e.BlockMaxWidth < e.BlockMinWidth:
		return errors.Errorf("block widths must satisfy 1 <= min <= max, got %d..%d", e.BlockMinWidth, e.BlockMaxWidth)
	case e.BlockFallSpeed < 1:
		return errors.Errorf("block_fall_speed must be >= 1, got %d", e.BlockFallSpeed)
	case a.Gamma <= 0 || a.Gamma > 1:
		return errors.Errorf("gamma must be in (0, 1], got %v", a.Gamma)
	case a.LearningRate <= 0:
		return errors.Errorf("learning_rate must be > 0, got %v", a.LearningRate)
	case a.EntropyCoef < 0:
		return errors.Errorf("entropy_coef must be >= 0, got %v", a.EntropyCoef)
	case a.HiddenDim < 1:
		return errors.Errorf("hidden_dim must be >= 1, got %d", a.HiddenDim)
	case a.OutcomeWindow < 1:
		return errors.Errorf("outcome_window must be >= 1, got %d", a.OutcomeWindow)
	case t.NumEpisodes < 0 || t.MaxStepsPerEpisode < 1:
		return errors.Errorf("need num_episodes >= 0 and max_steps_per_episode >= 1, got %d and %d", t.NumEpisodes, t.MaxStepsPerEpisode)
	case t.CheckpointEvery < 0 || t.LogEvery < 0 || t.WarmupEpisodes < 0 || t.EarlyStopWindow < 0:
		return errors.New("checkpoint_every, log_every, warmup_episodes and early_stop_window must be >= 0")
	case t.EarlyStopThreshold < 0 || t.EarlyStopThreshold > 1:
		return errors.Errorf("early_stop_threshold must be in [0, 1], got %v", t.EarlyStopThreshold)
	}
	if _, err := e.RewardMode.Scheme(); err != nil {
		return err
	}
	if e.StateMode != dodge.StateAbsolute && e.StateMode != dodge.StateRelative {
		return errors.Errorf("unknown state mode %q", string(e.StateMode))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log_level")
	}
	return nil
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvInt64(key string, fallback int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
