package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/logrusorgru/aurora"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"blockdodge-rl/internal/agent"
	"blockdodge-rl/internal/checkpoint"
	"blockdodge-rl/internal/config"
	"blockdodge-rl/internal/dodge"
	"blockdodge-rl/internal/monitor"
	"blockdodge-rl/internal/trainer"
)

const progressEvery = 10

func main() {
	configPath := flag.String("config", "", "TOML config file the policy was trained with")
	ckpt := flag.String("checkpoint", "", "checkpoint file to evaluate")
	trainerURL := flag.String("trainer-url", "", "pull the live policy from a training monitor instead")
	episodes := flag.Int("num-episodes", 100, "episodes to play")
	seed := flag.Int64("seed", 0, "random seed (default from config)")
	greedy := flag.Bool("greedy", false, "always take the most probable action")
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if (*ckpt == "") == (*trainerURL == "") {
		logrus.Fatal("exactly one of -checkpoint or -trainer-url is required")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	overrideSeed(flag.CommandLine, &cfg, *seed)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	env, err := dodge.NewEnv(cfg.Env)
	if err != nil {
		logrus.WithError(err).Fatal("create environment")
	}
	ag, err := agent.New(cfg.Agent, logrus.StandardLogger())
	if err != nil {
		logrus.WithError(err).Fatal("create agent")
	}

	source := *ckpt
	if *ckpt != "" {
		err = loadCheckpoint(ag, *ckpt, cfg)
	} else {
		source, err = pullPolicy(ctx, ag, *trainerURL)
	}
	if err != nil {
		logrus.WithError(err).Fatal("load policy")
	}

	tr, err := trainer.New(env, ag, cfg.Train, trainer.WithLogger(logrus.StandardLogger()))
	if err != nil {
		logrus.WithError(err).Fatal("create evaluator")
	}

	var sum, sumLen float64
	progress := func(ep int, reward float64, length int) {
		sum += reward
		sumLen += float64(length)
		if ep%progressEvery == 0 {
			fmt.Printf("episode %4d  avg reward %s  avg length %.1f\n",
				ep, aurora.Cyan(fmt.Sprintf("%8.2f", sum/float64(ep))), sumLen/float64(ep))
		}
	}
	res, err := tr.Evaluate(ctx, *episodes, *greedy, progress)
	if err != nil {
		logrus.WithError(err).Fatal("evaluation failed")
	}
	printSummary(source, *greedy, res)
}

// overrideSeed applies -seed only when it was given on the command line, so
// the config file and environment keep precedence otherwise.
func overrideSeed(fs *flag.FlagSet, cfg *config.Config, seed int64) {
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			cfg.Seed = seed
			cfg.Resolve()
		}
	})
}

func loadCheckpoint(ag *agent.Agent, path string, cfg config.Config) error {
	store, err := checkpoint.NewFileStore(filepath.Dir(path), cfg.MaxCheckpointSize)
	if err != nil {
		return err
	}
	err = ag.Load(store, filepath.Base(path))
	switch {
	case errors.Is(err, checkpoint.ErrNotFound):
		return errors.Errorf("no checkpoint at %s", path)
	case errors.Is(err, checkpoint.ErrCorrupt), errors.Is(err, agent.ErrIncompatible):
		return errors.Wrapf(err, "checkpoint %s does not match this config", path)
	}
	return err
}

func pullPolicy(ctx context.Context, ag *agent.Agent, baseURL string) (string, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := monitor.FetchPolicy(ctx, client, baseURL)
	if err != nil {
		return "", err
	}
	if err := ag.SetPolicy(resp.Weights); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s (episode %d)", baseURL, resp.Episode), nil
}

func printSummary(source string, greedy bool, res trainer.EvalResult) {
	mode := "sampled"
	if greedy {
		mode = "greedy"
	}
	fmt.Println(aurora.Bold("evaluation summary"))
	fmt.Printf("  policy       %s (%s)\n", source, mode)
	fmt.Printf("  episodes     %d\n", res.Episodes)
	fmt.Printf("  mean reward  %s ± %.2f\n", aurora.Green(fmt.Sprintf("%.2f", res.MeanReward)), res.StdReward)
	fmt.Printf("  max reward   %.2f\n", res.MaxReward)
	fmt.Printf("  min reward   %s\n", aurora.Red(fmt.Sprintf("%.2f", res.MinReward)))
	fmt.Printf("  mean length  %.1f\n", res.MeanLength)
}
