package main

import (
	"flag"
	"testing"

	"blockdodge-rl/internal/config"
)

func TestSeedFlagOverridesOnlyWhenSet(t *testing.T) {
	cases := []struct {
		args []string
		want int64
	}{
		{nil, 5},
		{[]string{"-seed", "9"}, 9},
	}
	for _, tc := range cases {
		fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
		seed := fs.Int64("seed", 0, "")
		if err := fs.Parse(tc.args); err != nil {
			t.Fatal(err)
		}
		cfg := config.Default()
		cfg.Seed = 5
		cfg.Resolve()

		overrideSeed(fs, &cfg, *seed)
		if cfg.Seed != tc.want || cfg.Env.Seed != tc.want || cfg.Agent.Seed != tc.want+1 {
			t.Fatalf("args %v: seed=%d env=%d agent=%d, want %d", tc.args, cfg.Seed, cfg.Env.Seed, cfg.Agent.Seed, tc.want)
		}
	}
}
