package trainer

import (
	"context"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"blockdodge-rl/internal/dodge"
)

type EvalResult struct {
	Episodes   int     `json:"episodes"`
	MeanReward float64 `json:"mean_reward"`
	StdReward  float64 `json:"std_reward"`
	MaxReward  float64 `json:"max_reward"`
	MinReward  float64 `json:"min_reward"`
	MeanLength float64 `json:"mean_length"`
}

// EpisodeFunc is called after every evaluation episode.
type EpisodeFunc func(episode int, reward float64, length int)

// Evaluate plays n episodes without recording trajectories or updating the
// policy. With greedy set the most probable action is taken instead of a
// sampled one.
func (t *Trainer) Evaluate(ctx context.Context, n int, greedy bool, fn EpisodeFunc) (EvalResult, error) {
	if n <= 0 {
		return EvalResult{}, errors.Errorf("evaluation needs at least one episode, got %d", n)
	}
	rewards := make([]float64, 0, n)
	lengths := make([]float64, 0, n)
	for ep := 1; ep <= n; ep++ {
		reward, steps, err := t.playEpisode(ctx, greedy)
		if err != nil {
			return EvalResult{}, errors.Wrapf(err, "evaluation episode %d", ep)
		}
		rewards = append(rewards, reward)
		lengths = append(lengths, float64(steps))
		if fn != nil {
			fn(ep, reward, steps)
		}
	}
	mean, std := stat.PopMeanStdDev(rewards, nil)
	return EvalResult{
		Episodes:   n,
		MeanReward: mean,
		StdReward:  std,
		MaxReward:  floats.Max(rewards),
		MinReward:  floats.Min(rewards),
		MeanLength: stat.Mean(lengths, nil),
	}, nil
}

func (t *Trainer) playEpisode(ctx context.Context, greedy bool) (float64, int, error) {
	obs := t.env.Reset()
	var total float64
	var steps int
	for {
		if err := ctx.Err(); err != nil {
			return total, steps, err
		}
		var action dodge.Action
		if greedy {
			action = t.agent.Greedy(obs)
		} else {
			action = t.agent.Act(obs)
		}
		next, reward, done, _, err := t.env.Step(action)
		if err != nil {
			return total, steps, err
		}
		total += reward
		steps++
		obs = next
		if done || t.capped(steps) {
			return total, steps, nil
		}
	}
}
