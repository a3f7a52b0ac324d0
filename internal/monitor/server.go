// Package monitor exposes a running training job over HTTP: health, the
// latest episode statistics, the current policy weights and Prometheus
// metrics.
package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"blockdodge-rl/internal/policy"
	"blockdodge-rl/internal/trainer"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	mu      sync.Mutex
	stats   trainer.EpisodeStats
	weights policy.Weights
	seen    bool

	registry      *prometheus.Registry
	runningReward prometheus.Gauge
	episodeReward prometheus.Gauge
	episodeLength prometheus.Gauge
	loss          prometheus.Gauge
	cappedShare   prometheus.Gauge
	episodes      prometheus.Counter

	log logrus.FieldLogger
}

func New(log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		registry: prometheus.NewRegistry(),
		runningReward: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "blockdodge_running_reward",
			Help: "Exponentially smoothed episode reward.",
		}),
		episodeReward: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "blockdodge_episode_reward",
			Help: "Total reward of the last training episode.",
		}),
		episodeLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "blockdodge_episode_length",
			Help: "Steps in the last training episode.",
		}),
		loss: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "blockdodge_loss",
			Help: "Policy-gradient loss of the last update.",
		}),
		cappedShare: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "blockdodge_capped_share",
			Help: "Share of recent episodes that reached the step cap.",
		}),
		episodes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blockdodge_episodes_total",
			Help: "Training episodes completed.",
		}),
		log: log,
	}
	s.registry.MustRegister(s.runningReward, s.episodeReward, s.episodeLength, s.loss, s.cappedShare, s.episodes)
	return s
}

// ObserveEpisode implements trainer.Observer.
func (s *Server) ObserveEpisode(stats trainer.EpisodeStats, weights policy.Weights) {
	s.mu.Lock()
	s.stats = stats
	s.weights = weights
	s.seen = true
	s.mu.Unlock()

	s.runningReward.Set(stats.Running)
	s.episodeReward.Set(stats.Reward)
	s.episodeLength.Set(float64(stats.Length))
	s.loss.Set(stats.Loss)
	s.cappedShare.Set(stats.CappedShare)
	s.episodes.Inc()
}

type PolicyResponse struct {
	Episode int            `json:"episode"`
	Weights policy.Weights `json:"weights"`
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.mu.Lock()
		stats, seen := s.stats, s.seen
		s.mu.Unlock()
		if !seen {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, stats)
	})
	mux.HandleFunc("/policy", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.mu.Lock()
		resp, seen := PolicyResponse{Episode: s.stats.Episode, Weights: s.weights}, s.seen
		s.mu.Unlock()
		if !seen {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, resp)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

func writeJSON(w http.ResponseWriter, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

// Serve listens on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("monitor listening")
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "monitor")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Wrap(server.Shutdown(shutdownCtx), "monitor shutdown")
	}
}
