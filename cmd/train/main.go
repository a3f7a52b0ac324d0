package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/c2h5oh/datasize"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"blockdodge-rl/internal/agent"
	"blockdodge-rl/internal/checkpoint"
	"blockdodge-rl/internal/config"
	"blockdodge-rl/internal/dodge"
	"blockdodge-rl/internal/monitor"
	"blockdodge-rl/internal/statslog"
	"blockdodge-rl/internal/trainer"
)

func main() {
	configPath := flag.String("config", "", "TOML config file")
	name := flag.String("name", "", "experiment name")
	norm := flag.Bool("norm", false, "normalise advantages")
	baseline := flag.Bool("baseline", false, "subtract the analytic height baseline")
	entropy := flag.Float64("entropy", 0, "entropy coefficient")
	state := flag.String("state", "", "state representation: absolute or relative")
	reward := flag.String("reward", "", "reward scheme: basic or enhanced")
	episodes := flag.Int("episodes", 0, "number of training episodes")
	seed := flag.Int64("seed", 0, "random seed")
	monitorAddr := flag.String("monitor", "", "serve training status on this address")
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			cfg.ExpName = *name
			cfg.StatsPath, cfg.CheckpointDir = "", ""
		case "norm":
			cfg.Agent.UseNormalization = *norm
		case "baseline":
			cfg.Agent.UseHeightBaseline = *baseline
		case "entropy":
			cfg.Agent.EntropyCoef = *entropy
		case "state":
			cfg.Env.StateMode = dodge.StateMode(*state)
		case "reward":
			cfg.Env.RewardMode = dodge.RewardMode(*reward)
		case "episodes":
			cfg.Train.NumEpisodes = *episodes
		case "seed":
			cfg.Seed = *seed
		case "monitor":
			cfg.MonitorAddr = *monitorAddr
		}
	})
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Fatal("invalid config")
	}
	level, _ := logrus.ParseLevel(cfg.LogLevel)
	logrus.SetLevel(level)
	log := logrus.WithField("exp", cfg.ExpName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("training failed")
	}
}

func run(ctx context.Context, cfg config.Config, log *logrus.Entry) error {
	env, err := dodge.NewEnv(cfg.Env)
	if err != nil {
		return err
	}
	ag, err := agent.New(cfg.Agent, log)
	if err != nil {
		return err
	}
	store, err := checkpoint.NewFileStore(cfg.CheckpointDir, cfg.MaxCheckpointSize)
	if err != nil {
		return err
	}
	stats, err := statslog.Open(cfg.StatsPath)
	if err != nil {
		return err
	}
	defer stats.Close()

	opts := []trainer.Option{
		trainer.WithLogger(log),
		trainer.WithStore(store),
		trainer.WithRecorder(stats),
	}
	var mon *monitor.Server
	if cfg.MonitorAddr != "" {
		mon = monitor.New(log)
		opts = append(opts, trainer.WithObserver(mon))
	}
	tr, err := trainer.New(env, ag, cfg.Train, opts...)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"state":      cfg.Env.StateMode,
		"reward":     cfg.Env.RewardMode,
		"norm":       cfg.Agent.UseNormalization,
		"baseline":   cfg.Agent.UseHeightBaseline,
		"entropy":    cfg.Agent.EntropyCoef,
		"episodes":   cfg.Train.NumEpisodes,
		"parameters": ag.Network().NumParams(),
		"param_mem":  datasize.ByteSize(ag.Network().NumParams() * 8).HumanReadable(),
	}).Info("starting experiment")

	monCtx, stopMonitor := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(monCtx)
	if mon != nil {
		g.Go(func() error {
			return mon.Serve(gctx, cfg.MonitorAddr)
		})
	}
	g.Go(func() error {
		defer stopMonitor()
		summary, err := tr.Train(gctx)
		if err != nil {
			return err
		}
		size, _ := store.Size(checkpoint.LastName)
		log.WithFields(logrus.Fields{
			"episodes":       summary.Episodes,
			"running_reward": summary.Running,
			"best_running":   summary.BestRunning,
			"early_stopped":  summary.EarlyStopped,
			"interrupted":    summary.Interrupted,
			"checkpoint":     store.Path(checkpoint.LastName),
			"checkpoint_mem": size.HumanReadable(),
		}).Info("training finished")
		return nil
	})
	return g.Wait()
}
