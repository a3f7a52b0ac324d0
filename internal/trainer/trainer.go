// Package trainer drives episodes of the block-dodging environment against
// a learning agent and handles the bookkeeping around them: the running
// reward average, best/last checkpoints, early stopping and evaluation.
//
// Everything runs on the caller's goroutine.
package trainer

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"blockdodge-rl/internal/agent"
	"blockdodge-rl/internal/checkpoint"
	"blockdodge-rl/internal/dodge"
	"blockdodge-rl/internal/policy"
	"blockdodge-rl/internal/window"
)

// Smoothing factor of the running reward average.
const runningAlpha = 0.1

type Environment interface {
	Reset() dodge.Observation
	Step(action dodge.Action) (dodge.Observation, float64, bool, dodge.Info, error)
}

type Learner interface {
	SelectAction(obs dodge.Observation) dodge.Action
	Act(obs dodge.Observation) dodge.Action
	Greedy(obs dodge.Observation) dodge.Action
	StoreReward(r float64)
	UpdateEpisodeStats(info dodge.Info)
	UpdatePolicy() (float64, error)
	ClearBuffers()
	Save(s agent.Saver, name string) error
	Weights() policy.Weights
}

type Store interface {
	agent.Saver
	agent.Loader
}

// Recorder receives one row per logged episode.
type Recorder interface {
	LogEpisode(episode int, totalReward float64, length int, loss float64) error
}

// Observer is notified after every episode.
type Observer interface {
	ObserveEpisode(stats EpisodeStats, weights policy.Weights)
}

type Config struct {
	NumEpisodes        int     `toml:"num_episodes" json:"num_episodes"`
	MaxStepsPerEpisode int     `toml:"max_steps_per_episode" json:"max_steps_per_episode"`
	CheckpointEvery    int     `toml:"checkpoint_every" json:"checkpoint_every"`
	LogEvery           int     `toml:"log_every" json:"log_every"`
	WarmupEpisodes     int     `toml:"warmup_episodes" json:"warmup_episodes"`
	EarlyStopWindow    int     `toml:"early_stop_window" json:"early_stop_window"`
	EarlyStopThreshold float64 `toml:"early_stop_threshold" json:"early_stop_threshold"`
}

func DefaultConfig() Config {
	return Config{
		NumEpisodes:        800,
		MaxStepsPerEpisode: 500,
		CheckpointEvery:    100,
		LogEvery:           10,
		WarmupEpisodes:     50,
		EarlyStopWindow:    50,
		EarlyStopThreshold: 0.9,
	}
}

// EpisodeStats summarises one finished training episode.
type EpisodeStats struct {
	Episode       int     `json:"episode"`
	Reward        float64 `json:"reward"`
	Running       float64 `json:"running_reward"`
	Best          float64 `json:"best_running_reward"`
	Length        int     `json:"length"`
	Loss          float64 `json:"loss"`
	Capped        bool    `json:"capped"`
	CappedShare   float64 `json:"capped_share"`
	TotalEpisodes int     `json:"total_episodes"`
}

type Summary struct {
	Episodes     int     `json:"episodes"`
	Running      float64 `json:"running_reward"`
	BestRunning  float64 `json:"best_running_reward"`
	EarlyStopped bool    `json:"early_stopped"`
	Interrupted  bool    `json:"interrupted"`
}

type Trainer struct {
	env      Environment
	agent    Learner
	cfg      Config
	log      logrus.FieldLogger
	store    Store
	recorder Recorder
	observer Observer

	running    float64
	best       float64
	hasRunning bool
	hasBest    bool
	cappedRuns *window.Ring[bool]
}

type Option func(*Trainer)

func WithLogger(log logrus.FieldLogger) Option {
	return func(t *Trainer) { t.log = log }
}

func WithStore(s Store) Option {
	return func(t *Trainer) { t.store = s }
}

func WithRecorder(r Recorder) Option {
	return func(t *Trainer) { t.recorder = r }
}

func WithObserver(o Observer) Option {
	return func(t *Trainer) { t.observer = o }
}

func New(env Environment, ag Learner, cfg Config, opts ...Option) (*Trainer, error) {
	if env == nil || ag == nil {
		return nil, errors.New("trainer needs an environment and an agent")
	}
	if cfg.NumEpisodes < 0 {
		return nil, errors.Errorf("num episodes must be >= 0, got %d", cfg.NumEpisodes)
	}
	t := &Trainer{
		env:   env,
		agent: ag,
		cfg:   cfg,
		log:   logrus.StandardLogger(),
		best:  math.Inf(-1),
	}
	if cfg.EarlyStopWindow > 0 {
		runs, err := window.New[bool](cfg.EarlyStopWindow)
		if err != nil {
			return nil, err
		}
		t.cappedRuns = runs
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// RunEpisode plays one episode with the learning agent, recording the
// trajectory for the next policy update. The episode ends on a collision
// or when MaxStepsPerEpisode is reached.
func (t *Trainer) RunEpisode(ctx context.Context) (float64, int, error) {
	total, steps, _, err := t.runEpisode(ctx)
	return total, steps, err
}

// runEpisode also reports whether the step cap, rather than the
// environment, ended the episode.
func (t *Trainer) runEpisode(ctx context.Context) (total float64, steps int, capped bool, err error) {
	obs := t.env.Reset()
	for {
		if err := ctx.Err(); err != nil {
			return total, steps, false, err
		}
		action := t.agent.SelectAction(obs)
		next, reward, done, info, err := t.env.Step(action)
		if err != nil {
			return total, steps, false, errors.Wrapf(err, "step %d", steps)
		}
		t.agent.StoreReward(reward)
		t.agent.UpdateEpisodeStats(info)

		total += reward
		steps++
		obs = next
		if done {
			return total, steps, false, nil
		}
		if t.capped(steps) {
			return total, steps, true, nil
		}
	}
}

func (t *Trainer) capped(steps int) bool {
	return t.cfg.MaxStepsPerEpisode > 0 && steps >= t.cfg.MaxStepsPerEpisode
}

// Train runs up to NumEpisodes episodes. The last checkpoint is written on
// every exit path, including cancellation of ctx.
func (t *Trainer) Train(ctx context.Context) (summary Summary, err error) {
	defer func() {
		summary.Running = t.running
		summary.BestRunning = t.Best()
		if serr := t.saveCheckpoint(checkpoint.LastName); serr != nil && err == nil {
			err = serr
		}
	}()

	for ep := 1; ep <= t.cfg.NumEpisodes; ep++ {
		reward, steps, capped, err := t.runEpisode(ctx)
		if err != nil {
			t.agent.ClearBuffers()
			if ctx.Err() != nil {
				t.log.WithField("episode", ep).Warn("training interrupted")
				summary.Interrupted = true
				return summary, nil
			}
			return summary, errors.Wrapf(err, "episode %d", ep)
		}
		loss, err := t.agent.UpdatePolicy()
		if err != nil {
			return summary, errors.Wrapf(err, "update after episode %d", ep)
		}
		summary.Episodes = ep

		stats := t.record(ep, reward, steps, capped, loss)
		if err := t.afterEpisode(stats); err != nil {
			return summary, err
		}
		if t.shouldStop() {
			t.log.WithFields(logrus.Fields{
				"episode":      ep,
				"capped_share": stats.CappedShare,
			}).Info("early stop: agent survives the step cap")
			summary.EarlyStopped = true
			return summary, nil
		}
	}
	return summary, nil
}

func (t *Trainer) record(ep int, reward float64, steps int, capped bool, loss float64) EpisodeStats {
	if !t.hasRunning {
		t.running = reward
		t.hasRunning = true
	} else {
		t.running = runningAlpha*reward + (1-runningAlpha)*t.running
	}
	if t.cappedRuns != nil {
		t.cappedRuns.Push(capped)
	}
	return EpisodeStats{
		Episode:       ep,
		Reward:        reward,
		Running:       t.running,
		Best:          t.Best(),
		Length:        steps,
		Loss:          loss,
		Capped:        capped,
		CappedShare:   t.cappedShare(),
		TotalEpisodes: t.cfg.NumEpisodes,
	}
}

func (t *Trainer) afterEpisode(stats EpisodeStats) error {
	if t.running > t.best && stats.Episode >= t.cfg.WarmupEpisodes {
		t.best = t.running
		stats.Best = t.best
		t.hasBest = true
		if err := t.saveCheckpoint(checkpoint.BestName); err != nil {
			return err
		}
		t.log.WithFields(logrus.Fields{
			"episode":        stats.Episode,
			"running_reward": t.running,
		}).Debug("new best checkpoint")
	}
	if t.cfg.CheckpointEvery > 0 && stats.Episode%t.cfg.CheckpointEvery == 0 {
		if err := t.saveCheckpoint(checkpoint.LastName); err != nil {
			return err
		}
	}
	if t.cfg.LogEvery > 0 && stats.Episode%t.cfg.LogEvery == 0 {
		t.log.WithFields(logrus.Fields{
			"episode":        stats.Episode,
			"reward":         stats.Reward,
			"running_reward": stats.Running,
			"length":         stats.Length,
			"loss":           stats.Loss,
		}).Info("episode")
		if t.recorder != nil {
			if err := t.recorder.LogEpisode(stats.Episode, stats.Running, stats.Length, stats.Loss); err != nil {
				return errors.Wrap(err, "record episode")
			}
		}
	}
	if t.observer != nil {
		t.observer.ObserveEpisode(stats, t.agent.Weights())
	}
	return nil
}

// cappedShare is the fraction of episodes in the early-stop window that
// were cut off by the step cap.
func (t *Trainer) cappedShare() float64 {
	if t.cappedRuns == nil || t.cappedRuns.Len() == 0 {
		return 0
	}
	n := t.cappedRuns.Count(func(c bool) bool { return c })
	return float64(n) / float64(t.cappedRuns.Len())
}

func (t *Trainer) shouldStop() bool {
	if t.cappedRuns == nil || !t.cappedRuns.Full() || t.cfg.MaxStepsPerEpisode <= 0 {
		return false
	}
	return t.cappedShare() >= t.cfg.EarlyStopThreshold
}

func (t *Trainer) saveCheckpoint(name string) error {
	if t.store == nil {
		return nil
	}
	if err := t.agent.Save(t.store, name); err != nil {
		return errors.Wrap(err, "checkpoint")
	}
	return nil
}

// Running is the exponentially smoothed episode reward.
func (t *Trainer) Running() float64 {
	return t.running
}

// Best is the highest running reward that produced a best checkpoint, or
// 0 before the first one.
func (t *Trainer) Best() float64 {
	if !t.hasBest {
		return 0
	}
	return t.best
}
