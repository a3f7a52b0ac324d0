package report

import (
	"bytes"
	"strings"
	"testing"

	"blockdodge-rl/internal/statslog"
)

func TestLearningCurves(t *testing.T) {
	series := []Series{
		{Name: "baseline", Rows: []statslog.Row{{Episode: 10, TotalReward: -8, EpisodeLength: 12, Loss: 0.4}, {Episode: 20, TotalReward: -5, EpisodeLength: 20, Loss: 0.3}}},
		{Name: "entropy_0.01", Rows: []statslog.Row{{Episode: 10, TotalReward: -7, EpisodeLength: 15, Loss: 0.5}, {Episode: 20, TotalReward: -2, EpisodeLength: 40, Loss: 0.1}, {Episode: 30, TotalReward: 1, EpisodeLength: 90, Loss: 0.05}}},
	}
	var buf bytes.Buffer
	if err := LearningCurves(&buf, "ablation", series); err != nil {
		t.Fatal(err)
	}
	page := buf.String()
	for _, want := range []string{"baseline", "entropy_0.01", "running reward", "episode length"} {
		if !strings.Contains(page, want) {
			t.Fatalf("page missing %q", want)
		}
	}
}

func TestLearningCurvesNeedsSeries(t *testing.T) {
	if err := LearningCurves(&bytes.Buffer{}, "empty", nil); err == nil {
		t.Fatal("expected error without series")
	}
}
