package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/c2h5oh/datasize"

	"blockdodge-rl/internal/dodge"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if cfg.StatsPath != filepath.Join("artifacts/ablation", "baseline", "stats.csv") {
		t.Fatalf("unexpected stats path %q", cfg.StatsPath)
	}
	if cfg.Agent.Rewards.Death != -10 || cfg.Agent.GridHeight != cfg.Env.GridHeight {
		t.Fatalf("agent not resolved from env: %+v", cfg.Agent)
	}
	if cfg.Env.Seed == cfg.Agent.Seed {
		t.Fatal("env and agent must draw from distinct streams")
	}
}

func TestLoadTOMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
exp_name = "relative_enhanced"
seed = 7
max_checkpoint_size = "2MB"

[env]
grid_width = 9
grid_height = 6
block_max_width = 3
state_mode = "relative"
reward_mode = "enhanced"

[agent]
gamma = 0.95
entropy_coef = 0.01
use_normalization = true
use_height_baseline = true

[train]
num_episodes = 300
early_stop_threshold = 0.8
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BLOCKDODGE_EPISODES", "25")
	t.Setenv("BLOCKDODGE_SEED", "not-a-number")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Train.NumEpisodes != 25 {
		t.Fatalf("env override ignored: %d", cfg.Train.NumEpisodes)
	}
	if cfg.Seed != 7 || cfg.Env.Seed != 7 {
		t.Fatalf("bad seed override must fall back, got %d", cfg.Seed)
	}
	if cfg.Env.GridWidth != 9 || cfg.Env.BlockMinWidth != 1 || cfg.Env.StateMode != dodge.StateRelative {
		t.Fatalf("env section not applied: %+v", cfg.Env)
	}
	if cfg.Agent.Rewards.Miss != 10 || cfg.Agent.StateMode != dodge.StateRelative || !cfg.Agent.UseHeightBaseline {
		t.Fatalf("agent section not resolved: %+v", cfg.Agent)
	}
	if cfg.Agent.HiddenDim != 64 || cfg.Train.MaxStepsPerEpisode != 500 {
		t.Fatal("unset keys must keep their defaults")
	}
	if cfg.MaxCheckpointSize != 2*datasize.MB {
		t.Fatalf("max_checkpoint_size: %v", cfg.MaxCheckpointSize)
	}
	if cfg.CheckpointDir != filepath.Join("artifacts/ablation", "relative_enhanced", "checkpoints") {
		t.Fatalf("unexpected checkpoint dir %q", cfg.CheckpointDir)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"width":     func(c *Config) { c.Env.GridWidth = 0 },
		"widths":    func(c *Config) { c.Env.BlockMinWidth, c.Env.BlockMaxWidth = 3, 2 },
		"gamma":     func(c *Config) { c.Agent.Gamma = 1.5 },
		"state":     func(c *Config) { c.Env.StateMode = "polar" },
		"reward":    func(c *Config) { c.Env.RewardMode = "lavish" },
		"threshold": func(c *Config) { c.Train.EarlyStopThreshold = 2 },
		"steps":     func(c *Config) { c.Train.MaxStepsPerEpisode = 0 },
		"level":     func(c *Config) { c.LogLevel = "chatty" },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		cfg.Resolve()
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
