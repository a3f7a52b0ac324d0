package dodge

import (
	"errors"
	"testing"
)

func testConfig() Config {
	start := 3
	return Config{
		GridWidth:      7,
		GridHeight:     6,
		BlockMinWidth:  1,
		BlockMaxWidth:  1,
		BlockFallSpeed: 1,
		AgentStartX:    &start,
		StateMode:      StateAbsolute,
		RewardMode:     RewardBasic,
		Seed:           123,
	}
}

func newTestEnv(t *testing.T, cfg Config) *Env {
	t.Helper()
	env, err := NewEnv(cfg)
	if err != nil {
		t.Fatalf("new env: %v", err)
	}
	return env
}

func TestResetReturnsValidState(t *testing.T) {
	cfg := testConfig()
	cfg.BlockMaxWidth = 4
	env := newTestEnv(t, cfg)

	for i := 0; i < 50; i++ {
		obs := env.Reset()
		s := env.State()
		if obs != encodeAbsolute(s, cfg.GridWidth, cfg.GridHeight) {
			t.Fatalf("observation %v does not encode state %+v", obs, s)
		}
		if s.AgentX != 3 {
			t.Fatalf("expected agent at 3, got %d", s.AgentX)
		}
		if s.BlockLeft < 0 || s.BlockLeft > s.BlockRight || s.BlockRight > cfg.GridWidth-1 {
			t.Fatalf("block out of bounds: %+v", s)
		}
		if s.BlockY != cfg.GridHeight-1 {
			t.Fatalf("expected block at top row %d, got %d", cfg.GridHeight-1, s.BlockY)
		}
		if env.Done() {
			t.Fatal("reset must clear done")
		}
	}
}

func TestResetCentersAgentByDefault(t *testing.T) {
	cfg := testConfig()
	cfg.AgentStartX = nil
	env := newTestEnv(t, cfg)
	if got := env.State().AgentX; got != cfg.GridWidth/2 {
		t.Fatalf("expected centered agent %d, got %d", cfg.GridWidth/2, got)
	}
}

func TestAgentClippedToBoundaries(t *testing.T) {
	cfg := testConfig()
	cfg.GridWidth = 5
	cfg.GridHeight = 50
	env := newTestEnv(t, cfg)

	for i := 0; i < 10; i++ {
		if _, _, _, _, err := env.Step(Left); err != nil {
			t.Fatalf("step: %v", err)
		}
		if x := env.State().AgentX; x < 0 || x > cfg.GridWidth-1 {
			t.Fatalf("agent escaped grid: %d", x)
		}
	}
	if x := env.State().AgentX; x != 0 {
		t.Fatalf("expected agent pinned at 0, got %d", x)
	}

	env.Reset()
	for i := 0; i < 10; i++ {
		if _, _, _, _, err := env.Step(Right); err != nil {
			t.Fatalf("step: %v", err)
		}
	}
	if x := env.State().AgentX; x != cfg.GridWidth-1 {
		t.Fatalf("expected agent pinned at %d, got %d", cfg.GridWidth-1, x)
	}
}

func TestCollisionDetected(t *testing.T) {
	for _, mode := range []RewardMode{RewardBasic, RewardEnhanced} {
		t.Run(string(mode), func(t *testing.T) {
			cfg := testConfig()
			cfg.RewardMode = mode
			env := newTestEnv(t, cfg)
			env.SetState(State{AgentX: 3, BlockLeft: 2, BlockRight: 4, BlockY: 1})

			_, reward, done, info, err := env.Step(Stay)
			if err != nil {
				t.Fatalf("step: %v", err)
			}
			want, _ := mode.Scheme()
			if !done || !info.Death || info.Miss {
				t.Fatalf("expected death, got done=%v info=%+v", done, info)
			}
			if reward != want.Death {
				t.Fatalf("expected reward %v, got %v", want.Death, reward)
			}
		})
	}
}

func TestMissGivesPositiveReward(t *testing.T) {
	for _, mode := range []RewardMode{RewardBasic, RewardEnhanced} {
		t.Run(string(mode), func(t *testing.T) {
			cfg := testConfig()
			cfg.RewardMode = mode
			env := newTestEnv(t, cfg)
			env.SetState(State{AgentX: 3, BlockLeft: 0, BlockRight: 1, BlockY: 1})

			_, reward, done, info, err := env.Step(Stay)
			if err != nil {
				t.Fatalf("step: %v", err)
			}
			want, _ := mode.Scheme()
			if done || !info.Miss {
				t.Fatalf("expected miss, got done=%v info=%+v", done, info)
			}
			if reward != want.Miss {
				t.Fatalf("expected reward %v, got %v", want.Miss, reward)
			}
			if info.SurvivedSteps != 1 {
				t.Fatalf("expected 1 survived step, got %d", info.SurvivedSteps)
			}
			if y := env.State().BlockY; y != cfg.GridHeight-1 {
				t.Fatalf("expected respawn at %d, got %d", cfg.GridHeight-1, y)
			}
		})
	}
}

func TestLivingBonus(t *testing.T) {
	cfg := testConfig()
	cfg.RewardMode = RewardEnhanced
	env := newTestEnv(t, cfg)

	_, reward, done, info, err := env.Step(Stay)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if done || info.Miss || info.Death {
		t.Fatalf("unexpected terminal step: %+v", info)
	}
	if reward != 0.1 {
		t.Fatalf("expected living bonus 0.1, got %v", reward)
	}
}

func TestStepAfterDoneIsNoop(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.SetState(State{AgentX: 3, BlockLeft: 3, BlockRight: 3, BlockY: 1})
	terminal, _, done, _, err := env.Step(Stay)
	if err != nil || !done {
		t.Fatalf("expected terminal step, done=%v err=%v", done, err)
	}

	obs, reward, done, info, err := env.Step(Right)
	if err != nil {
		t.Fatalf("step after done: %v", err)
	}
	if !done || reward != 0 || obs != terminal {
		t.Fatalf("expected no-op, got obs=%v reward=%v done=%v", obs, reward, done)
	}
	if info.Death || info.Miss {
		t.Fatalf("no-op step must not report outcomes: %+v", info)
	}
}

func TestInvalidAction(t *testing.T) {
	env := newTestEnv(t, testConfig())
	before := env.State()
	for _, a := range []Action{-1, 3, 17} {
		_, _, _, _, err := env.Step(a)
		if !errors.Is(err, ErrInvalidAction) {
			t.Fatalf("action %d: expected ErrInvalidAction, got %v", a, err)
		}
	}
	if env.State() != before {
		t.Fatal("invalid action must not mutate state")
	}
}

func TestSpawnLeavesFreeColumn(t *testing.T) {
	cfg := testConfig()
	cfg.GridWidth = 4
	cfg.BlockMinWidth = 4
	cfg.BlockMaxWidth = 10
	env := newTestEnv(t, cfg)
	for i := 0; i < 100; i++ {
		env.Reset()
		s := env.State()
		if width := s.BlockRight - s.BlockLeft + 1; width != cfg.GridWidth-1 {
			t.Fatalf("expected width %d, got %d", cfg.GridWidth-1, width)
		}
	}
}

func TestSingleColumnGrid(t *testing.T) {
	cfg := testConfig()
	cfg.GridWidth = 1
	cfg.GridHeight = 1
	cfg.AgentStartX = nil
	cfg.StateMode = StateRelative
	env := newTestEnv(t, cfg)

	obs := env.Observation()
	if obs[0] != 0 {
		t.Fatalf("expected 0 x feature on single column, got %v", obs[0])
	}
	_, reward, done, _, err := env.Step(Right)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if !done || reward != -10 {
		t.Fatalf("expected unavoidable collision, got done=%v reward=%v", done, reward)
	}
}

func TestSeedDeterminism(t *testing.T) {
	cfg := testConfig()
	cfg.BlockMaxWidth = 3
	a := newTestEnv(t, cfg)
	b := newTestEnv(t, cfg)
	for i := 0; i < 200; i++ {
		action := Action(i % NumActions)
		oa, ra, da, _, _ := a.Step(action)
		ob, rb, db, _, _ := b.Step(action)
		if oa != ob || ra != rb || da != db {
			t.Fatalf("step %d diverged", i)
		}
		if da {
			a.Reset()
			b.Reset()
		}
	}
}

func TestReseedRestartsRandomStream(t *testing.T) {
	cfg := testConfig()
	cfg.BlockMaxWidth = 3
	a := newTestEnv(t, cfg)
	cfg.Seed = 7
	b := newTestEnv(t, cfg)
	a.Reseed(11)
	b.Reseed(11)
	if a.Reset() != b.Reset() {
		t.Fatal("reseeded environments reset to different states")
	}
	for i := 0; i < 200; i++ {
		action := Action(i % NumActions)
		oa, ra, da, _, _ := a.Step(action)
		ob, rb, db, _, _ := b.Step(action)
		if oa != ob || ra != rb || da != db {
			t.Fatalf("step %d diverged after reseeding", i)
		}
		if da {
			if a.Reset() != b.Reset() {
				t.Fatalf("reset after step %d diverged", i)
			}
		}
	}
}

func TestNewEnvRejectsBadConfig(t *testing.T) {
	cases := map[string]func(*Config){
		"width":  func(c *Config) { c.GridWidth = 0 },
		"height": func(c *Config) { c.GridHeight = 0 },
		"state":  func(c *Config) { c.StateMode = "polar" },
		"reward": func(c *Config) { c.RewardMode = "generous" },
	}
	for name, mutate := range cases {
		cfg := testConfig()
		mutate(&cfg)
		if _, err := NewEnv(cfg); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
